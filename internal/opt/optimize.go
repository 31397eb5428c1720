package opt

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// State is the optimizer's position in its lifecycle.
type State uint8

const (
	StateInitializing State = iota
	StateSearching
	StateConverged
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateSearching:
		return "searching"
	case StateConverged:
		return "converged"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Reason tells why a run stopped.
type Reason string

const (
	// ReasonConverged means the neighborhood ran dry or every order is served.
	ReasonConverged Reason = "converged"
	// ReasonExhausted means the iteration or time budget ran out, or the context ended.
	ReasonExhausted Reason = "exhausted"
)

// Stats counts what happened during a run.
type Stats struct {
	Improvements  int `json:"improvements"`
	// AllTabuRounds counts rounds that had candidates but no admissible one.
	AllTabuRounds int `json:"allTabuRounds"`
	Aspirations   int `json:"aspirations"`
	Fallbacks     int `json:"fallbacks"`
	Candidates    int `json:"candidates"`
	EmptyRounds   int `json:"emptyRounds"`
}

// Result is the outcome of one Optimize run.
type Result struct {
	Solution   *Solution
	Cost       float64
	Iterations int
	Reason     Reason
	Seed       int64
	Stats      Stats
	Elapsed    time.Duration
}

// Optimize runs tabu search from sol and returns the best solution seen. sol is
// not modified. The budget and ctx are checked once per iteration, before any
// mutation, so cancellation always ends in ReasonExhausted with a whole solution.
func Optimize(ctx context.Context, sol *Solution, cfg Config, opts ...Option) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, fmt.Errorf("optimize: %w", err)
	}
	o := buildOptions(opts)
	log := o.log.With(zap.Int64("seed", cfg.RandomSeed))
	started := time.Now()

	state := StateInitializing
	cur := sol.Clone()
	best := cur.Clone()
	rng := rand.New(rand.NewSource(cfg.RandomSeed))
	nb := newNeighborhood(cur, cfg, rng)
	tabu := NewTabuList(cfg.MaxTabuEntries)
	infeasible := len(cur.p.Infeasible())
	var stats Stats
	iter, empty := 0, 0
	log.Debug("optimize start",
		zap.Float64("cost", cur.cost),
		zap.Int("unassigned", cur.unassigned),
		zap.Int("maxIterations", cfg.MaxIterations),
		zap.Duration("maxRunTime", cfg.MaxRunTime))

	state = StateSearching
	for state == StateSearching {
		switch {
		case ctx.Err() != nil,
			iter >= cfg.MaxIterations,
			cfg.MaxRunTime > 0 && time.Since(started) >= cfg.MaxRunTime:
			state = StateExhausted
			continue
		case cfg.StopOnAllServed && best.unassigned == infeasible:
			state = StateConverged
			continue
		}

		cands := nb.generate(cur)
		stats.Candidates += len(cands)
		aspires := func(m *Move) bool { return tabu.Aspiration(m.Cost, best.cost) }
		k, how := selectMove(cands, tabu, iter, cheaper, aspires, cfg.Fallback)
		if how == selNone {
			if len(cands) > 0 {
				stats.AllTabuRounds++
			}
			stats.EmptyRounds++
			empty++
			iter++
			if empty >= 2 {
				state = StateConverged
			}
			continue
		}
		empty = 0
		switch how {
		case selAspired:
			stats.Aspirations++
		case selFallback:
			stats.Fallbacks++
		}

		m := cands[k]
		cur.apply(&m)
		tabu.forbidMove(&m, iter, tenure(rng, cfg.BaseTenure, cfg.TenureJitter))
		if cur.cost < best.cost-eps {
			best = cur.Clone()
			stats.Improvements++
		}
		iter++
		if o.progress != nil {
			o.progress(Progress{
				Iteration:  iter,
				Cost:       cur.cost,
				BestCost:   best.cost,
				Unassigned: cur.unassigned,
				Move:       m.Kind.String(),
			})
		}
		if ce := log.Check(zap.DebugLevel, "iteration"); ce != nil {
			ce.Write(zap.Int("iteration", iter), zap.Stringer("move", &m), zap.Float64("best", best.cost))
		}
	}

	if err := best.Verify(); err != nil {
		return Result{}, fmt.Errorf("optimize: %w", err)
	}
	res := Result{
		Solution:   best,
		Cost:       best.cost,
		Iterations: iter,
		Reason:     reasonOf(state),
		Seed:       cfg.RandomSeed,
		Stats:      stats,
		Elapsed:    time.Since(started),
	}
	log.Debug("optimize done",
		zap.String("reason", string(res.Reason)),
		zap.Int("iterations", iter),
		zap.Float64("cost", res.Cost),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func reasonOf(s State) Reason {
	if s == StateConverged {
		return ReasonConverged
	}
	return ReasonExhausted
}
