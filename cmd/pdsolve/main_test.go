package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"pdroute/internal/model"
	"pdroute/internal/opt"
)

func TestParseSeeds(t *testing.T) {
	got, err := parseSeeds(" 1, 2,3 ")
	if err != nil || len(got) != 3 || got[2] != 3 {
		t.Fatalf("parseSeeds: %v %v", got, err)
	}
	if got, _ := parseSeeds(""); got != nil {
		t.Fatalf("empty list should be nil, got %v", got)
	}
	if _, err := parseSeeds("1,x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestReadProblemAndPrint(t *testing.T) {
	req, err := readProblem("testdata/line.yaml")
	if err != nil {
		t.Fatalf("readProblem: %v", err)
	}
	if len(req.Orders) != 3 || len(req.Vehicles) != 2 || len(req.Matrix) != 121 || len(req.Seeds) != 2 {
		t.Fatalf("unexpected request: %d orders %d vehicles %d cells", len(req.Orders), len(req.Vehicles), len(req.Matrix))
	}
	cfg := opt.DefaultConfig()
	if err := cfg.Override(req.Config); err != nil {
		t.Fatalf("Override: %v", err)
	}
	if cfg.MaxIterations != 200 {
		t.Fatalf("config block not applied: %d", cfg.MaxIterations)
	}
	p, _, err := req.Problem()
	if err != nil {
		t.Fatalf("Problem: %v", err)
	}
	best, all, err := opt.SolveParallel(context.Background(), p, cfg, req.Seeds)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	var run model.Run
	run.Apply(best, all)

	var buf bytes.Buffer
	printRun(&buf, run)
	out := buf.String()
	for _, want := range []string{"veh_seq", "pickup", "delivery", "reason", "unassigned [3]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}
