package opt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"pdroute/internal/problem"
)

// lineMatrix places locations 0..n-1 on a line; cost is the distance.
func lineMatrix(t *testing.T, n int) *problem.Matrix {
	t.Helper()
	var cells []problem.Cell
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := float64(i - j)
			if d < 0 {
				d = -d
			}
			cells = append(cells, problem.Cell{From: int64(i), To: int64(j), Cost: d})
		}
	}
	m, err := problem.NewMatrix(cells, nil, 1)
	require.NoError(t, err)
	return m
}

func at(loc int64, opens, closes float64) problem.Stop {
	return problem.Stop{LocationID: loc, Window: problem.TimeWindow{Opens: opens, Closes: closes}}
}

func depot(id, loc int64, capacity float64) problem.VehicleInput {
	return problem.VehicleInput{ID: id, Capacity: capacity, Start: at(loc, 0, 100), End: at(loc, 0, 100)}
}

func mustProblem(t *testing.T, orders []problem.OrderInput, vehicles []problem.VehicleInput, m *problem.Matrix) *problem.Problem {
	t.Helper()
	p, err := problem.New(orders, vehicles, m)
	require.NoError(t, err)
	return p
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxRunTime = 0
	cfg.MaxIterations = 200
	return cfg
}

// randomProblem builds a grid instance with Manhattan distances.
func randomProblem(t *testing.T, seed int64, nOrders, nVehicles int) *problem.Problem {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	type pt struct{ x, y int }
	locs := []pt{{10, 10}}
	for i := 0; i < 2*nOrders; i++ {
		locs = append(locs, pt{rng.Intn(21), rng.Intn(21)})
	}
	var cells []problem.Cell
	for i, a := range locs {
		for j, b := range locs {
			dx, dy := a.x-b.x, a.y-b.y
			if dx < 0 {
				dx = -dx
			}
			if dy < 0 {
				dy = -dy
			}
			cells = append(cells, problem.Cell{From: int64(i), To: int64(j), Cost: float64(dx + dy)})
		}
	}
	m, err := problem.NewMatrix(cells, nil, 1)
	require.NoError(t, err)

	var orders []problem.OrderInput
	for i := 0; i < nOrders; i++ {
		opens := float64(rng.Intn(100))
		orders = append(orders, problem.OrderInput{
			ID:       int64(100 + i),
			Demand:   float64(1 + rng.Intn(4)),
			Pickup:   problem.Stop{LocationID: int64(1 + 2*i), Window: problem.TimeWindow{Opens: opens, Closes: opens + 80}, Service: 2},
			Delivery: problem.Stop{LocationID: int64(2 + 2*i), Window: problem.TimeWindow{Opens: opens, Closes: opens + 200}, Service: 2},
		})
	}
	var vehicles []problem.VehicleInput
	for v := 0; v < nVehicles; v++ {
		vehicles = append(vehicles, problem.VehicleInput{
			ID:        int64(1 + v),
			Capacity:  10,
			Start:     problem.Stop{LocationID: 0, Window: problem.TimeWindow{Opens: 0, Closes: 600}},
			End:       problem.Stop{LocationID: 0, Window: problem.TimeWindow{Opens: 0, Closes: 600}},
			FixedCost: 5,
		})
	}
	p, err := problem.New(orders, vehicles, m)
	require.NoError(t, err)
	return p
}

// windowConflict has two orders on a line of 21 locations and depots at 0 and
// 20. Order 100 is cheapest on the far vehicle, and once there its pickup
// deadline shuts out order 200, which only the far vehicle can reach in time.
// Serving both costs 22 + 4; the greedy start pays the penalty for 200.
func windowConflict(t *testing.T) *problem.Problem {
	t.Helper()
	return mustProblem(t,
		[]problem.OrderInput{
			{ID: 100, Demand: 1, Pickup: at(10, 0, 10), Delivery: at(11, 0, 50)},
			{ID: 200, Demand: 1,
				Pickup:   problem.Stop{LocationID: 18, Window: problem.TimeWindow{Opens: 0, Closes: 5}, Service: 1},
				Delivery: at(19, 0, 100)},
		},
		[]problem.VehicleInput{depot(1, 0, 10), depot(2, 20, 10)},
		lineMatrix(t, 21))
}
