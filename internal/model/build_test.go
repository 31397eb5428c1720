package model

import (
	"context"
	"errors"
	"math"
	"testing"

	"pdroute/internal/opt"
	"pdroute/internal/problem"
)

func lineCells(n int) []CellIn {
	var cells []CellIn
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cells = append(cells, CellIn{From: int64(i), To: int64(j), Cost: math.Abs(float64(i - j))})
		}
	}
	return cells
}

func smallRequest() SolveRequest {
	win := func(loc int64) StopIn { return StopIn{Location: loc, Opens: 0, Closes: 100} }
	return SolveRequest{
		Orders: []OrderIn{
			{ID: 7, Demand: 2, Pickup: win(1), Delivery: win(2)},
			{ID: 8, Demand: 20, Pickup: win(3), Delivery: win(4)},
		},
		Vehicles: []VehicleIn{{ID: 1, Capacity: 10, Start: win(0), End: win(0)}},
		Matrix:   lineCells(5),
	}
}

func TestRequestProblemAndApply(t *testing.T) {
	req := smallRequest()
	p, repaired, err := req.Problem()
	if err != nil {
		t.Fatalf("Problem: %v", err)
	}
	if repaired {
		t.Fatalf("line matrix should not need repair")
	}

	cfg := opt.DefaultConfig()
	cfg.MaxRunTime = 0
	cfg.MaxIterations = 20
	best, all, err := opt.SolveParallel(context.Background(), p, cfg, []int64{3, 4})
	if err != nil {
		t.Fatalf("SolveParallel: %v", err)
	}

	var run Run
	run.Apply(best, all)
	if len(run.Unassigned) != 1 || run.Unassigned[0] != 8 {
		t.Fatalf("want order 8 unassigned, got %v", run.Unassigned)
	}
	if len(run.Infeasible) != 1 || run.Infeasible[0] != 8 {
		t.Fatalf("want order 8 infeasible, got %v", run.Infeasible)
	}
	if len(run.Seeds) != 2 || run.Seeds[0].Seed != 3 || run.Seeds[1].Seed != 4 {
		t.Fatalf("unexpected seeds %+v", run.Seeds)
	}
	if len(run.Rows) != 4 || len(run.Summaries) != 1 {
		t.Fatalf("want 4 rows and 1 summary, got %d and %d", len(run.Rows), len(run.Summaries))
	}
	if run.Cost != best.Cost || run.Reason == "" {
		t.Fatalf("run not filled from best result: %+v", run)
	}
}

func TestRequestRepairsTriangle(t *testing.T) {
	req := smallRequest()
	for i := range req.Matrix {
		if req.Matrix[i].From == 0 && req.Matrix[i].To == 2 {
			req.Matrix[i].Cost = 10
		}
	}
	_, repaired, err := req.Problem()
	if err != nil {
		t.Fatalf("Problem: %v", err)
	}
	if !repaired {
		t.Fatalf("expected triangle repair")
	}
}

func TestRequestRejectsBadInput(t *testing.T) {
	req := smallRequest()
	req.Matrix = nil
	if _, _, err := req.Problem(); !errors.Is(err, problem.ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}

	req = smallRequest()
	req.Orders[0].Pickup.Location = 99
	if _, _, err := req.Problem(); err == nil {
		t.Fatalf("unknown location accepted")
	}
}
