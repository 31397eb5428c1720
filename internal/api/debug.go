package api

import (
	"encoding/json"
	"net/http"
	"time"

	"pdroute/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":               s.cfg.Port,
			"authMode":           s.cfg.AuthMode,
			"rateRps":            s.cfg.RateRPS,
			"rateBurst":          s.cfg.RateBurst,
			"webhookMaxAttempts": s.cfg.WebhookMaxAttempts,
			"solveTimeout":       s.SolveTimeout.String(),
			"hasDatabaseUrl":     s.cfg.DatabaseURL != "",
			"sqlite":             s.cfg.SQLitePath != "",
			"hasRedisUrl":        s.cfg.RedisURL != "",
			"solver":             configView(s.Defaults),
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}
