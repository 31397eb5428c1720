package opt

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"pdroute/internal/problem"
)

// Solve builds and optimizes with cfg.RandomSeed.
func Solve(ctx context.Context, p *problem.Problem, cfg Config, opts ...Option) (Result, error) {
	s, err := Build(p, cfg, opts...)
	if err != nil {
		return Result{}, err
	}
	return Optimize(ctx, s, cfg, opts...)
}

// SolveParallel runs one independent Solve per seed, at most cfg.Workers at a
// time, and returns the lowest-cost result (earlier seed on ties) together
// with every run in seed order. The problem and its matrix are shared
// read-only; each run owns its solutions.
func SolveParallel(ctx context.Context, p *problem.Problem, cfg Config, seeds []int64, opts ...Option) (Result, []Result, error) {
	if len(seeds) == 0 {
		seeds = []int64{cfg.RandomSeed}
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, nil, fmt.Errorf("solve: %w", err)
	}
	runs := make([]Result, len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, seed := range seeds {
		c := cfg
		c.RandomSeed = seed
		g.Go(func() error {
			r, err := Solve(gctx, p, c, opts...)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			runs[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, nil, fmt.Errorf("solve: %w", err)
	}
	best := 0
	for i := 1; i < len(runs); i++ {
		if runs[i].Cost < runs[best].Cost-eps {
			best = i
		}
	}
	return runs[best], runs, nil
}
