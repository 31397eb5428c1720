package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdroute/internal/problem"
)

func TestPathEdits(t *testing.T) {
	base := []int{0, 1, 2, 3, 9}
	assert.Equal(t, []int{0, 7, 8, 1, 2, 3, 9}, insertPair(nil, base, 0, 0, 7, 8))
	assert.Equal(t, []int{0, 1, 7, 2, 3, 8, 9}, insertPair(nil, base, 1, 3, 7, 8))
	assert.Equal(t, []int{0, 3, 2, 1, 9}, reverseSegment(nil, base, 1, 3))
	assert.Equal(t, []int{0, 3, 9}, removePair(nil, base, 1, 2))

	// lift [1 2] and put it after 3
	assert.Equal(t, []int{0, 3, 1, 2, 9}, moveSegment(nil, base, 1, 2, 1))
	// lift [2 3] and put it after 0
	assert.Equal(t, []int{0, 2, 3, 1, 9}, moveSegment(nil, base, 2, 2, 0))
	assert.Equal(t, 2, firstDiff([]int{1, 2, 3}, []int{1, 2, 4}))
	assert.Equal(t, 2, firstDiff([]int{1, 2}, []int{1, 2, 4}))
}

func TestRouteSchedule(t *testing.T) {
	m := lineMatrix(t, 6)
	p := mustProblem(t,
		[]problem.OrderInput{{ID: 1, Demand: 3, Pickup: problem.Stop{LocationID: 2, Window: problem.TimeWindow{Opens: 5, Closes: 50}, Service: 1}, Delivery: at(4, 0, 50)}},
		[]problem.VehicleInput{{ID: 1, Capacity: 5, Start: at(0, 0, 100), End: at(0, 0, 100), FixedCost: 10, VarCost: 2}},
		m)
	r := newRoute(p, 0)
	assert.True(t, r.Empty())
	assert.Equal(t, 0.0, r.Cost())

	o := p.Orders[0]
	r.setPath(p, []int{p.Vehicles[0].Start, o.Pickup, o.Delivery, p.Vehicles[0].End})
	assert.Equal(t, 2.0, r.Arrival(1))
	assert.Equal(t, 3.0, r.Wait(1))
	assert.Equal(t, 6.0, r.Departure(1))
	assert.Equal(t, 3.0, r.Load(1))
	assert.Equal(t, 8.0, r.Arrival(2))
	assert.Equal(t, 0.0, r.Load(2))
	assert.Equal(t, 8.0, r.Travel())
	assert.Equal(t, 2.0, r.Leg(2))
	assert.Equal(t, 10+2*8.0, r.Cost())
}

func TestProbeRejections(t *testing.T) {
	m := lineMatrix(t, 10)
	p := mustProblem(t,
		[]problem.OrderInput{
			{ID: 1, Demand: 4, Pickup: at(8, 0, 100), Delivery: at(9, 0, 100)},
			{ID: 2, Demand: 4, Pickup: at(3, 0, 100), Delivery: at(4, 0, 5)},
		},
		[]problem.VehicleInput{depot(1, 0, 6)},
		m)
	ev := newEvaluator(p)
	r := newRoute(p, 0)
	start, end := p.Vehicles[0].Start, p.Vehicles[0].End
	o1, o2 := p.Orders[0], p.Orders[1]

	_, ok := ev.probe(&r, []int{start, o1.Pickup, o2.Pickup, o1.Delivery, o2.Delivery, end}, 1)
	assert.False(t, ok, "load 8 > 6")

	_, ok = ev.probe(&r, []int{start, o1.Delivery, o1.Pickup, end}, 1)
	assert.False(t, ok, "delivery before its pickup")

	_, ok = ev.probe(&r, []int{start, o1.Pickup, o1.Delivery, o2.Pickup, o2.Delivery, end}, 1)
	assert.False(t, ok, "order 2 delivery closes at 5")

	c, ok := ev.probe(&r, []int{start, o2.Pickup, o2.Delivery, o1.Pickup, o1.Delivery, end}, 1)
	require.True(t, ok)
	assert.Equal(t, 3+1+4+1+9.0, c)
}

func TestBestInsertionSkipsCurrentPlacement(t *testing.T) {
	m := lineMatrix(t, 10)
	p := mustProblem(t,
		[]problem.OrderInput{{ID: 1, Demand: 1, Pickup: at(1, 0, 100), Delivery: at(2, 0, 100)}},
		[]problem.VehicleInput{depot(1, 0, 5)},
		m)
	ev := newEvaluator(p)
	r := newRoute(p, 0)

	i, j, c, ok := ev.bestInsertion(&r, 0, -1, -1)
	require.True(t, ok)
	assert.Equal(t, [2]int{0, 0}, [2]int{i, j})
	assert.Equal(t, 4.0, c)

	_, _, _, ok = ev.bestInsertion(&r, 0, 0, 0)
	assert.False(t, ok, "the only placement was skipped")
}
