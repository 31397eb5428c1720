package model

import (
	"fmt"

	"pdroute/internal/opt"
	"pdroute/internal/problem"
)

// maxTriangleCycles bounds the repair passes over a matrix that breaks the triangle inequality.
const maxTriangleCycles = 100

// Problem builds the solver arena from the request. A matrix that breaks the
// triangle inequality is repaired first and repaired reports it.
func (r *SolveRequest) Problem() (p *problem.Problem, repaired bool, err error) {
	if len(r.Matrix) == 0 {
		return nil, false, fmt.Errorf("request: empty matrix: %w", problem.ErrInvalidInput)
	}
	factor := r.Factor
	if factor == 0 {
		factor = 1
	}
	m, err := problem.NewMatrix(r.Cells(), nil, factor)
	if err != nil {
		return nil, false, err
	}
	if !m.ObeysTriangleInequality() {
		m.FixTriangleInequality(maxTriangleCycles)
		repaired = true
	}
	orders, vehicles := r.Inputs()
	p, err = problem.New(orders, vehicles, m)
	if err != nil {
		return nil, repaired, err
	}
	return p, repaired, nil
}

// Apply copies the best result and the per-seed outcomes into the run.
func (run *Run) Apply(best opt.Result, all []opt.Result) {
	sol := best.Solution
	p := sol.Problem()
	run.Seed = best.Seed
	run.Cost = best.Cost
	run.Iterations = best.Iterations
	run.Reason = string(best.Reason)
	run.ElapsedMs = best.Elapsed.Milliseconds()
	run.Stats = best.Stats
	run.Unassigned = orderIDs(p, sol.Unassigned())
	run.Infeasible = orderIDs(p, sol.Infeasible())
	run.Rows = opt.Rows(sol)
	run.Summaries = opt.Summaries(sol)
	run.Seeds = make([]SeedRun, len(all))
	for i, r := range all {
		run.Seeds[i] = SeedRun{Seed: r.Seed, Cost: r.Cost, Iterations: r.Iterations, Reason: string(r.Reason)}
	}
}

func orderIDs(p *problem.Problem, idx []int) []int64 {
	out := make([]int64, len(idx))
	for i, oi := range idx {
		out[i] = p.Orders[oi].ID
	}
	return out
}
