package metrics

import "testing"

func TestRegisterDefaultIsIdempotent(t *testing.T) {
	RegisterDefault()
	RegisterDefault()
	SolveRuns.WithLabelValues("converged", "done").Inc()

	families, err := Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	seen := map[string]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				seen[f.GetName()] += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				seen[f.GetName()] += m.GetGauge().GetValue()
			}
		}
	}
	if seen["solve_runs_total"] < 1 {
		t.Fatalf("solve_runs_total not gathered: %v", seen["solve_runs_total"])
	}
	if seen["pdroute_build_info"] != 1 {
		t.Fatalf("want build info 1, got %v", seen["pdroute_build_info"])
	}
}
