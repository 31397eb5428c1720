package api

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pdroute/internal/auth"
	"pdroute/internal/config"
	"pdroute/internal/metrics"
	"pdroute/internal/opt"
	"pdroute/internal/store"
	"pdroute/internal/webhooks"
)

type Server struct {
	Store        store.Store
	Pub          *webhooks.Publisher
	Auth         *auth.Verifier
	Broker       EventBroker
	Log          *zap.Logger
	Defaults     opt.Config
	SolveTimeout time.Duration

	cfg     config.Config
	limiter *tenantLimiter
	base    context.Context // parent of async solves
	stop    context.CancelFunc
	running sync.WaitGroup
}

// NewServer wires the store and broker named by cfg. Without DatabaseURL or
// SQLitePath it uses the in-memory store; without RedisURL the in-process broker.
func NewServer(ctx context.Context, cfg config.Config, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var s store.Store
	switch {
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		sp, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := sp.Migrate(ctx); err != nil {
			return nil, err
		}
		s = sp
	case cfg.SQLitePath != "":
		sl, err := store.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sl.Migrate(ctx); err != nil {
			return nil, err
		}
		s = sl
	default:
		s = store.NewMemory()
	}

	var broker EventBroker = NewBroker()
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			log.Warn("redis broker unavailable, using in-process broker", zap.Error(err))
		} else {
			broker = rb
		}
	}

	metrics.RegisterDefault()
	base, stop := context.WithCancel(context.Background())
	return &Server{
		Store:        s,
		Pub:          webhooks.NewPublisher(s),
		Auth:         auth.NewVerifier(cfg.AuthMode, cfg.AuthHMACSecret),
		Broker:       broker,
		Log:          log,
		Defaults:     cfg.Solver,
		SolveTimeout: cfg.SolveTimeout,
		cfg:          cfg,
		limiter:      newTenantLimiter(cfg.RateRPS, cfg.RateBurst),
		base:         base,
		stop:         stop,
	}, nil
}

// Routes returns the service handler with logging, metrics and rate limiting applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Solving
	mux.HandleFunc("POST /v1/solve", s.SolveHandler)
	mux.HandleFunc("POST /v1/compatible-vehicles", s.CompatibleVehiclesHandler)

	// Runs
	mux.HandleFunc("GET /v1/runs", s.RunsIndexHandler)
	mux.HandleFunc("GET /v1/runs/{id}", s.RunByIDHandler)
	mux.HandleFunc("GET /v1/runs/{id}/stream", s.RunStreamHandler)

	// Solver configuration
	mux.HandleFunc("GET /v1/solver/config", s.SolverConfigHandler)
	mux.HandleFunc("GET /v1/admin/solver/config", s.AdminSolverConfigHandler)
	mux.HandleFunc("PUT /v1/admin/solver/config", s.AdminSolverConfigHandler)

	// Admin
	mux.HandleFunc("GET /v1/admin/webhook-deliveries", s.WebhookDeliveriesHandler)

	// Health, metrics, debug
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.HandleFunc("GET /debug", s.DebugJSON)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return s.logMiddleware(s.metricsMiddleware(s.rateLimit(mux)))
}

// NewWebhookWorker creates a background worker for callback deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Log.Named("webhooks"), s.cfg.WebhookMaxAttempts)
}

// Shutdown cancels async solves, which then finish with their best solution
// so far, and waits for them to be persisted or for ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stop()
	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if c, ok := s.Store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
