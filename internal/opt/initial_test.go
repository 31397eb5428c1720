package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"

	"pdroute/internal/problem"
)

func TestBuildSequencesByDeadline(t *testing.T) {
	p := mustProblem(t,
		[]problem.OrderInput{
			{ID: 2, Demand: 4, Pickup: at(3, 40, 60), Delivery: at(4, 40, 60)},
			{ID: 1, Demand: 4, Pickup: at(1, 0, 20), Delivery: at(2, 0, 20)},
		},
		[]problem.VehicleInput{depot(1, 0, 10)},
		lineMatrix(t, 5))

	s, err := Build(p, testConfig())
	require.NoError(t, err)
	o2, o1 := p.Orders[0], p.Orders[1]
	v := p.Vehicles[0]
	assert.Equal(t, []int{v.Start, o1.Pickup, o1.Delivery, o2.Pickup, o2.Delivery, v.End}, s.Routes()[0].Path)
	assert.Equal(t, 0, s.UnassignedCount())
	assert.Equal(t, 8.0, s.Cost())
	require.NoError(t, s.Verify())
}

func TestBuildLeavesInfeasibleOrderOut(t *testing.T) {
	p := mustProblem(t,
		[]problem.OrderInput{{ID: 1, Demand: 8, Pickup: at(1, 0, 100), Delivery: at(2, 0, 100)}},
		[]problem.VehicleInput{depot(1, 0, 5)},
		lineMatrix(t, 3))

	s, err := Build(p, testConfig())
	require.NoError(t, err)
	assert.Equal(t, []int{0}, s.Unassigned())
	assert.Equal(t, []int{0}, s.Infeasible())
	assert.Equal(t, 10000.0, s.Cost())
	assert.Equal(t, 0, s.UsedRoutes())
}

func TestBuildPrefersUsedRoutes(t *testing.T) {
	p := mustProblem(t,
		[]problem.OrderInput{
			{ID: 1, Demand: 1, Pickup: at(1, 0, 100), Delivery: at(2, 0, 100)},
			{ID: 2, Demand: 1, Pickup: at(9, 0, 100), Delivery: at(8, 0, 100)},
		},
		[]problem.VehicleInput{depot(1, 0, 10), depot(2, 10, 10)},
		lineMatrix(t, 11))

	s, err := Build(p, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, s.RouteOf(0))
	assert.Equal(t, 0, s.RouteOf(1))
	assert.Equal(t, 18.0, s.Cost())
}

// constructionProblem has order U that only vehicle 1 may serve, and which
// cannot share vehicle 1 with X.
func constructionProblem(t *testing.T) *problem.Problem {
	v2 := depot(2, 3, 10)
	v2.FixedCost = 1
	return mustProblem(t,
		[]problem.OrderInput{
			{ID: 1, Demand: 1, Pickup: problem.Stop{LocationID: 1, Window: problem.TimeWindow{Opens: 0, Closes: 2}, Service: 5}, Delivery: at(2, 0, 20)},
			{ID: 2, Demand: 1, Pickup: problem.Stop{LocationID: 2, Window: problem.TimeWindow{Opens: 0, Closes: 3}, Service: 5}, Delivery: at(3, 0, 20), Vehicles: []int64{1}},
		},
		[]problem.VehicleInput{depot(1, 0, 10), v2},
		lineMatrix(t, 4))
}

func TestBuildSimpleConstruction(t *testing.T) {
	p := constructionProblem(t)
	cfg := testConfig()
	cfg.Construction = ConstructSimple

	s, err := Build(p, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, s.RouteOf(0))
	assert.Equal(t, []int{1}, s.Unassigned())
	assert.Empty(t, s.Infeasible())
	assert.Equal(t, 4+10000.0, s.Cost())
}

func TestBuildTabuConstructionEvicts(t *testing.T) {
	p := constructionProblem(t)

	s, err := Build(p, testConfig())
	require.NoError(t, err)
	assert.Equal(t, 0, s.UnassignedCount())
	assert.Equal(t, 0, s.RouteOf(1), "U on vehicle 1")
	assert.Equal(t, 1, s.RouteOf(0), "X moved to vehicle 2")
	assert.Equal(t, 11.0, s.Cost())
}

func TestBuildFirstInsertion(t *testing.T) {
	p := randomProblem(t, 3, 12, 3)
	cfg := testConfig()
	cfg.InitialInsertion = InsertFirst
	cfg.Construction = ConstructSimple

	s, err := Build(p, cfg)
	require.NoError(t, err)
	require.NoError(t, s.Verify())
}

func TestBuildLocksStartedOrders(t *testing.T) {
	v1 := depot(1, 0, 10)
	v1.Stops = []int64{7, 7}
	p := mustProblem(t,
		[]problem.OrderInput{
			{ID: 7, Demand: 1, Pickup: at(5, 0, 100), Delivery: at(6, 0, 100)},
			{ID: 8, Demand: 1, Pickup: at(5, 10, 100), Delivery: at(6, 10, 100)},
		},
		[]problem.VehicleInput{v1, depot(2, 5, 10)},
		lineMatrix(t, 7))
	cfg := testConfig()
	cfg.ExecutionDate = 1

	s, err := Build(p, cfg)
	require.NoError(t, err)
	assert.True(t, s.Locked(0))
	assert.False(t, s.Locked(1))
	assert.Equal(t, 0, s.RouteOf(0))

	res, err := Optimize(t.Context(), s, cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Solution.RouteOf(0), "locked order never leaves its vehicle")
	assert.True(t, res.Solution.Locked(0))
}

func TestBuildDropsInvalidInitialStops(t *testing.T) {
	cases := map[string][]int64{
		"missing delivery": {7},
		"unknown order":    {99, 99},
		"listed thrice":    {7, 7, 7},
	}
	for name, stops := range cases {
		t.Run(name, func(t *testing.T) {
			v1 := depot(1, 0, 10)
			v1.Stops = stops
			p := mustProblem(t,
				[]problem.OrderInput{{ID: 7, Demand: 1, Pickup: at(2, 0, 100), Delivery: at(3, 0, 100)}},
				[]problem.VehicleInput{v1},
				lineMatrix(t, 4))

			core, logs := observer.New(zapcore.WarnLevel)
			s, err := Build(p, testConfig(), WithLogger(zap.New(core)))
			require.NoError(t, err)
			assert.Equal(t, 0, s.UnassignedCount(), "order inserted normally")
			assert.False(t, s.Locked(0))
			assert.Equal(t, 1, logs.FilterMessage("initial stops dropped").Len())
		})
	}
}

func TestBuildRejectsBadConfig(t *testing.T) {
	p := constructionProblem(t)
	cfg := testConfig()
	cfg.NeighborhoodSampleSize = 0
	_, err := Build(p, cfg)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestPriority(t *testing.T) {
	p := mustProblem(t,
		[]problem.OrderInput{
			{ID: 5, Demand: 1, Pickup: at(1, 0, 50), Delivery: at(2, 0, 90)},
			{ID: 4, Demand: 2, Pickup: at(1, 0, 50), Delivery: at(2, 0, 90)},
			{ID: 3, Demand: 1, Pickup: at(1, 0, 40), Delivery: at(2, 0, 90)},
			{ID: 2, Demand: 1, Pickup: at(1, 0, 90), Delivery: at(2, 0, 80)},
			{ID: 1, Demand: 1, Pickup: at(1, 0, 50), Delivery: at(2, 0, 90)},
		},
		[]problem.VehicleInput{depot(1, 0, 10)},
		lineMatrix(t, 3))
	var ids []int64
	for _, oi := range priority(p) {
		ids = append(ids, p.Orders[oi].ID)
	}
	assert.Equal(t, []int64{2, 3, 4, 1, 5}, ids)
}
