package opt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSolveParallelPicksCheapest(t *testing.T) {
	p := randomProblem(t, 21, 20, 4)
	cfg := testConfig()
	cfg.MaxIterations = 60
	cfg.Workers = 2
	seeds := []int64{1, 2, 3, 4}

	best, runs, err := SolveParallel(context.Background(), p, cfg, seeds)
	require.NoError(t, err)
	require.Len(t, runs, len(seeds))
	for i, r := range runs {
		assert.Equal(t, seeds[i], r.Seed)
		assert.GreaterOrEqual(t, r.Cost, best.Cost-1e-9)
		require.NoError(t, r.Solution.Verify())
	}

	// each run matches a sequential run with the same seed
	cfg.RandomSeed = 3
	one, err := Solve(context.Background(), p, cfg)
	require.NoError(t, err)
	assert.Equal(t, one.Solution.Paths(), runs[2].Solution.Paths())
	assert.Equal(t, one.Cost, runs[2].Cost)
}

func TestSolveParallelDefaultsToConfigSeed(t *testing.T) {
	p := randomProblem(t, 22, 6, 2)
	cfg := testConfig()
	cfg.RandomSeed = 77

	best, runs, err := SolveParallel(context.Background(), p, cfg, nil)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(77), best.Seed)
}

func TestSolveParallelValidates(t *testing.T) {
	p := randomProblem(t, 22, 6, 2)
	cfg := testConfig()
	cfg.Workers = 0
	_, _, err := SolveParallel(context.Background(), p, cfg, []int64{1})
	assert.ErrorIs(t, err, ErrConfig)
}
