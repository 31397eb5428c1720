package api

import (
	"encoding/json"
	"fmt"
	"net/url"

	"pdroute/internal/model"
	"pdroute/internal/opt"
)

const maxSeeds = 64

func validateSolveRequest(req *model.SolveRequest) error {
	if len(req.Vehicles) == 0 {
		return fmt.Errorf("at least one vehicle is required")
	}
	if len(req.Matrix) == 0 {
		return fmt.Errorf("matrix is required")
	}
	if req.Factor < 0 {
		return fmt.Errorf("factor must be >= 0")
	}
	if len(req.Seeds) > maxSeeds {
		return fmt.Errorf("at most %d seeds", maxSeeds)
	}
	if req.CallbackURL != "" {
		u, err := url.Parse(req.CallbackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("callbackUrl must be an absolute http(s) URL")
		}
	}
	if req.CallbackSecret != "" && req.CallbackURL == "" {
		return fmt.Errorf("callbackSecret requires callbackUrl")
	}
	return nil
}

// configView renders cfg with maxRunTime as a duration string.
func configView(cfg opt.Config) map[string]any {
	b, _ := json.Marshal(cfg)
	out := map[string]any{}
	_ = json.Unmarshal(b, &out)
	out["maxRunTime"] = cfg.MaxRunTime.String()
	return out
}
