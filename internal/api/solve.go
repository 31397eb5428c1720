package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pdroute/internal/metrics"
	"pdroute/internal/model"
	"pdroute/internal/opt"
	"pdroute/internal/problem"
)

// progressEvery throttles run.progress events; a new best cost is always sent.
const progressEvery = 250 * time.Millisecond

// SolveHandler handles POST /v1/solve
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	if !p.CanSolve() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var req model.SolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateSolveRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
		return
	}
	cfg, err := s.solverConfig(r.Context(), p.Tenant, req.Config)
	if err != nil {
		s.configProblem(w, r, err)
		return
	}
	prob, repaired, err := req.Problem()
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid problem", err.Error(), r.URL.Path)
		return
	}
	if repaired {
		s.Log.Info("matrix repaired to satisfy the triangle inequality", zap.String("tenant", p.Tenant))
	}

	run := model.Run{
		ID:          uuid.New().String(),
		TenantID:    p.Tenant,
		Status:      model.RunRunning,
		CreatedAt:   time.Now().UTC(),
		Orders:      len(req.Orders),
		Vehicles:    len(req.Vehicles),
		CallbackURL: req.CallbackURL,
	}
	if err := s.Store.CreateRun(r.Context(), run); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path)
		return
	}

	if req.Async {
		s.running.Add(1)
		go func() {
			defer s.running.Done()
			s.execute(s.base, run, prob, cfg, req.Seeds, req.CallbackSecret)
		}()
		w.Header().Set("Location", "/v1/runs/"+run.ID)
		writeJSON(w, http.StatusAccepted, map[string]string{"runId": run.ID, "status": run.Status})
		return
	}
	run = s.execute(r.Context(), run, prob, cfg, req.Seeds, req.CallbackSecret)
	if run.Status == model.RunFailed {
		writeProblem(w, http.StatusInternalServerError, "Solve failed", run.Error, r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// execute runs the seeds, persists the outcome, publishes the terminal event
// and queues the callback. It never returns an error; failures land in the run.
func (s *Server) execute(ctx context.Context, run model.Run, p *problem.Problem, cfg opt.Config, seeds []int64, secret string) model.Run {
	if s.SolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.SolveTimeout)
		defer cancel()
	}
	metrics.RunsInFlight.Inc()
	defer metrics.RunsInFlight.Dec()
	log := s.Log.With(zap.String("run", run.ID), zap.String("tenant", run.TenantID))
	start := time.Now()

	best, all, err := opt.SolveParallel(ctx, p, cfg, seeds,
		opt.WithLogger(log), opt.WithProgress(s.progressPublisher(run.ID)))
	finished := time.Now().UTC()
	run.FinishedAt = &finished
	metrics.SolveDuration.Observe(time.Since(start).Seconds())

	evt := Event{Type: EventRunCompleted}
	if err != nil {
		run.Status = model.RunFailed
		run.Error = err.Error()
		log.Error("solve failed", zap.Error(err))
		metrics.SolveRuns.WithLabelValues("error", run.Status).Inc()
		evt = Event{Type: EventRunFailed, Data: map[string]any{"runId": run.ID, "error": run.Error}}
	} else {
		run.Status = model.RunDone
		run.Apply(best, all)
		log.Info("solve finished",
			zap.Float64("cost", run.Cost),
			zap.Int64("seed", run.Seed),
			zap.Int("iterations", run.Iterations),
			zap.String("reason", run.Reason),
			zap.Int("unassigned", len(run.Unassigned)))
		metrics.SolveRuns.WithLabelValues(run.Reason, run.Status).Inc()
		metrics.SolveIterations.Observe(float64(run.Iterations))
		metrics.SolveCost.WithLabelValues(run.TenantID).Set(run.Cost)
		evt.Data = map[string]any{"run": run.Brief()}
	}

	// ctx may already be cancelled; the outcome is still recorded.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.Store.UpdateRun(pctx, run); err != nil {
		log.Error("persist run", zap.Error(err))
	}
	s.Broker.Publish(run.ID, evt)
	if run.Status == model.RunDone {
		if _, err := s.Pub.NotifyRun(pctx, run, secret); err != nil {
			log.Error("queue callback", zap.Error(err))
		}
	}
	return run
}

// progressPublisher forwards solver progress to stream subscribers. Seeds run
// concurrently, so the throttle state is shared under a mutex.
func (s *Server) progressPublisher(runID string) func(opt.Progress) {
	var mu sync.Mutex
	var last time.Time
	best := -1.0
	return func(pr opt.Progress) {
		mu.Lock()
		improved := best < 0 || pr.BestCost < best
		if !improved && time.Since(last) < progressEvery {
			mu.Unlock()
			return
		}
		if improved {
			best = pr.BestCost
		}
		last = time.Now()
		mu.Unlock()
		s.Broker.Publish(runID, Event{Type: EventRunProgress, Data: map[string]any{
			"runId":      runID,
			"iteration":  pr.Iteration,
			"cost":       pr.Cost,
			"bestCost":   pr.BestCost,
			"unassigned": pr.Unassigned,
			"move":       pr.Move,
		}})
	}
}

// solverConfig layers server defaults, tenant overrides and request overrides.
func (s *Server) solverConfig(ctx context.Context, tenant string, overrides map[string]any) (opt.Config, error) {
	cfg := s.Defaults
	saved, err := s.Store.GetSolverConfig(ctx, tenant)
	if err != nil {
		return cfg, err
	}
	if err := cfg.Override(saved); err != nil {
		return cfg, err
	}
	if err := cfg.Override(overrides); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (s *Server) configProblem(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, opt.ErrConfig) {
		writeProblem(w, http.StatusBadRequest, "Invalid solver config", err.Error(), r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, "Load solver config failed", err.Error(), r.URL.Path)
}
