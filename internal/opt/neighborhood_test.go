package opt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdroute/internal/problem"
)

// checkApplied applies m to a copy of s and checks the result against what
// the move promised.
func checkApplied(t *testing.T, s *Solution, m *Move) {
	t.Helper()
	c := s.Clone()
	c.apply(m)
	require.NoError(t, c.Verify(), "%s", m)
	require.InDelta(t, m.Cost, c.Cost(), 1e-6, "%s", m)
	require.Equal(t, m.Unassigned, c.UnassignedCount(), "%s", m)
}

func TestGeneratedMovesMatchApply(t *testing.T) {
	kinds := map[MoveKind]int{}
	for seed := int64(1); seed <= 15; seed++ {
		p := randomProblem(t, seed, 12, 4)
		cfg := testConfig()
		cfg.RandomSeed = seed
		s, err := Build(p, cfg)
		require.NoError(t, err)

		rng := rand.New(rand.NewSource(seed))
		nb := newNeighborhood(s, cfg, rng)
		for it := 0; it < 30; it++ {
			cands := nb.generate(s)
			if len(cands) == 0 {
				break
			}
			for i := range cands {
				kinds[cands[i].Kind]++
				checkApplied(t, s, &cands[i])
			}
			m := cands[rng.Intn(len(cands))]
			s.apply(&m)
		}
	}
	for _, k := range []MoveKind{MoveRelocate, MoveExchange, MoveTwoOpt, MoveOrOpt} {
		assert.Positive(t, kinds[k], "no %s generated", k)
	}
}

func TestChainMatchesApply(t *testing.T) {
	p := windowConflict(t)
	cfg := testConfig()
	cfg.Construction = ConstructSimple
	s, err := Build(p, cfg)
	require.NoError(t, err)
	require.Equal(t, 1, s.UnassignedCount())

	rank := make([]int, len(p.Orders))
	for r, oi := range priority(p) {
		rank[oi] = r
	}
	nb := newNeighborhood(s, cfg, rand.New(rand.NewSource(1)))
	m, ok := nb.chain(s, 1, rank)
	require.True(t, ok)
	assert.Equal(t, MoveChain, m.Kind)
	require.Len(t, m.Steps, 2)
	assert.Equal(t, MoveEvict, m.Steps[0].Kind)
	assert.Equal(t, MoveInsert, m.Steps[1].Kind)
	assert.Equal(t, 0, m.Unassigned)
	assert.InDelta(t, 26.0, m.Cost, 1e-9)
	checkApplied(t, s, &m)
}

func TestReverseRelocateIsTabu(t *testing.T) {
	p := mustProblem(t,
		[]problem.OrderInput{{ID: 1, Demand: 1, Pickup: at(1, 0, 100), Delivery: at(2, 0, 100)}},
		[]problem.VehicleInput{depot(1, 0, 10), depot(2, 10, 10)},
		lineMatrix(t, 11))
	cfg := testConfig()
	s, err := Build(p, cfg)
	require.NoError(t, err)
	require.Equal(t, 4.0, s.Cost())
	best := s.Clone()

	find := func(cands []Move, from, to int) *Move {
		for i := range cands {
			if cands[i].Kind == MoveRelocate && cands[i].From == from && cands[i].To == to {
				return &cands[i]
			}
		}
		return nil
	}

	nb := newNeighborhood(s, cfg, rand.New(rand.NewSource(1)))
	tl := NewTabuList(cfg.MaxTabuEntries)
	out := find(nb.generate(s), 0, 1)
	require.NotNil(t, out)
	assert.False(t, tl.tabu(out, 0))
	m := *out
	s.apply(&m)
	tl.forbidMove(&m, 0, 5)
	require.Equal(t, 18.0, s.Cost())

	cands := nb.generate(s)
	back := find(cands, 1, 0)
	require.NotNil(t, back)
	assert.InDelta(t, 4.0, back.Cost, 1e-9)
	assert.True(t, tl.tabu(back, 1))

	aspires := func(bestCost float64) func(*Move) bool {
		return func(m *Move) bool { return tl.Aspiration(m.Cost, bestCost) }
	}
	k, how := selectMove(cands, tl, 1, cheaper, aspires(best.Cost()), FallbackStop)
	assert.Equal(t, -1, k, "reverse move does not beat the best solution")
	assert.Equal(t, selNone, how)

	k, how = selectMove(cands, tl, 1, cheaper, aspires(s.Cost()), FallbackStop)
	require.GreaterOrEqual(t, k, 0)
	assert.Equal(t, selAspired, how)
	assert.Same(t, back, &cands[k])

	assert.False(t, tl.tabu(back, 6), "tenure over")
}
