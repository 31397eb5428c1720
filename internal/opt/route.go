package opt

import (
	"pdroute/internal/problem"
)

const eps = problem.Epsilon

// Route is one vehicle's visit sequence, depots included, with the schedule of
// every position cached so candidate paths sharing a prefix are evaluated from
// the first changed position only.
type Route struct {
	Vehicle int
	Path    []int

	arrival   []float64
	wait      []float64
	departure []float64
	load      []float64
	travel    []float64 // cumulative
	cost      float64
}

func newRoute(p *problem.Problem, vi int) Route {
	v := &p.Vehicles[vi]
	r := Route{Vehicle: vi, Path: []int{v.Start, v.End}}
	r.recompute(p, 0)
	return r
}

// Len returns the number of positions including both depots.
func (r *Route) Len() int { return len(r.Path) }

// Empty reports whether the route serves no order.
func (r *Route) Empty() bool { return len(r.Path) <= 2 }

// Cost returns fixed plus variable cost, 0 for an unused vehicle.
func (r *Route) Cost() float64 { return r.cost }

// Travel returns the total travel time of the route.
func (r *Route) Travel() float64 { return r.travel[len(r.travel)-1] }

func (r *Route) Arrival(k int) float64   { return r.arrival[k] }
func (r *Route) Wait(k int) float64      { return r.wait[k] }
func (r *Route) Departure(k int) float64 { return r.departure[k] }
func (r *Route) Load(k int) float64      { return r.load[k] }

// Leg returns the travel time from position k-1 to k.
func (r *Route) Leg(k int) float64 {
	if k == 0 {
		return 0
	}
	return r.travel[k] - r.travel[k-1]
}

func (r *Route) clone() Route {
	return Route{
		Vehicle:   r.Vehicle,
		Path:      append([]int(nil), r.Path...),
		arrival:   append([]float64(nil), r.arrival...),
		wait:      append([]float64(nil), r.wait...),
		departure: append([]float64(nil), r.departure...),
		load:      append([]float64(nil), r.load...),
		travel:    append([]float64(nil), r.travel...),
		cost:      r.cost,
	}
}

// setPath replaces the path and refreshes the cache from the first differing position.
func (r *Route) setPath(p *problem.Problem, path []int) {
	from := firstDiff(r.Path, path)
	r.Path = append(r.Path[:0], path...)
	r.recompute(p, from)
}

func firstDiff(a, b []int) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}

func grow(s []float64, n int) []float64 {
	if cap(s) >= n {
		return s[:n]
	}
	out := make([]float64, n)
	copy(out, s)
	return out
}

// recompute refreshes cached schedule values for positions from..end. It does
// not check feasibility; see probe and Solution.Verify.
func (r *Route) recompute(p *problem.Problem, from int) {
	n := len(r.Path)
	r.arrival = grow(r.arrival, n)
	r.wait = grow(r.wait, n)
	r.departure = grow(r.departure, n)
	r.load = grow(r.load, n)
	r.travel = grow(r.travel, n)
	if from < 1 {
		start := &p.Nodes[r.Path[0]]
		r.arrival[0] = start.Window.Opens
		r.wait[0], r.departure[0] = start.Serve(r.arrival[0])
		r.load[0] = start.Demand
		r.travel[0] = 0
		from = 1
	}
	for k := from; k < n; k++ {
		d := p.Travel(r.Path[k-1], r.Path[k])
		node := &p.Nodes[r.Path[k]]
		r.arrival[k] = r.departure[k-1] + d
		r.wait[k], r.departure[k] = node.Serve(r.arrival[k])
		r.load[k] = r.load[k-1] + node.Demand
		r.travel[k] = r.travel[k-1] + d
	}
	r.cost = p.Vehicles[r.Vehicle].RouteCost(r.travel[n-1], n > 2)
}

// evaluator owns the scratch space used to check candidate paths. One evaluator
// belongs to one search; it is not safe for concurrent use.
type evaluator struct {
	p     *problem.Problem
	seen  []uint32
	stamp uint32
	buf   []int
}

func newEvaluator(p *problem.Problem) *evaluator {
	return &evaluator{p: p, seen: make([]uint32, len(p.Nodes))}
}

// probe checks a candidate path for r's vehicle whose first from positions are
// identical to r.Path, and returns its route cost. Rejection order is capacity,
// then precedence, then time windows over the changed suffix.
func (e *evaluator) probe(r *Route, path []int, from int) (float64, bool) {
	p := e.p
	v := &p.Vehicles[r.Vehicle]
	if from < 1 {
		from = 1
	}

	load := r.load[from-1]
	for k := from; k < len(path); k++ {
		load += p.Nodes[path[k]].Demand
		if load > v.Capacity+eps || load < -eps {
			return 0, false
		}
	}

	if !e.ordered(path) {
		return 0, false
	}

	dep := r.departure[from-1]
	travel := r.travel[from-1]
	for k := from; k < len(path); k++ {
		d := p.Travel(path[k-1], path[k])
		node := &p.Nodes[path[k]]
		arr := dep + d
		if !node.Reachable(arr) {
			return 0, false
		}
		_, dep = node.Serve(arr)
		travel += d
	}
	return v.RouteCost(travel, len(path) > 2), true
}

// ordered reports whether every delivery in path follows its pickup.
func (e *evaluator) ordered(path []int) bool {
	e.stamp++
	if e.stamp == 0 {
		for i := range e.seen {
			e.seen[i] = 0
		}
		e.stamp = 1
	}
	for _, ni := range path {
		n := &e.p.Nodes[ni]
		switch n.Kind {
		case problem.KindPickup:
			e.seen[ni] = e.stamp
		case problem.KindDelivery:
			if e.seen[e.p.Orders[n.Order].Pickup] != e.stamp {
				return false
			}
		}
	}
	return true
}

// removePair writes path without the two given nodes into dst.
func removePair(dst, path []int, a, b int) []int {
	dst = dst[:0]
	for _, n := range path {
		if n != a && n != b {
			dst = append(dst, n)
		}
	}
	return dst
}

// insertPair writes base with pick placed after position i and drop placed
// after position j (j >= i) into dst.
func insertPair(dst, base []int, i, j, pick, drop int) []int {
	dst = dst[:0]
	dst = append(dst, base[:i+1]...)
	dst = append(dst, pick)
	dst = append(dst, base[i+1:j+1]...)
	dst = append(dst, drop)
	dst = append(dst, base[j+1:]...)
	return dst
}

// reverseSegment writes path with positions i..k reversed into dst.
func reverseSegment(dst, path []int, i, k int) []int {
	dst = append(dst[:0], path...)
	for a, b := i, k; a < b; a, b = a+1, b-1 {
		dst[a], dst[b] = dst[b], dst[a]
	}
	return dst
}

// moveSegment writes path with the n nodes starting at i lifted out and placed
// after position j of the shortened path into dst.
func moveSegment(dst, path []int, i, n, j int) []int {
	dst = dst[:0]
	seg := path[i : i+n]
	if j < i {
		dst = append(dst, path[:j+1]...)
		dst = append(dst, seg...)
		dst = append(dst, path[j+1:i]...)
		dst = append(dst, path[i+n:]...)
		return dst
	}
	dst = append(dst, path[:i]...)
	dst = append(dst, path[i+n:j+1+n]...)
	dst = append(dst, seg...)
	dst = append(dst, path[j+1+n:]...)
	return dst
}

// bestInsertion finds the cheapest feasible placement of order oi into base,
// skipping the (skipI, skipJ) placement. Ties keep the earliest positions.
func (e *evaluator) bestInsertion(base *Route, oi, skipI, skipJ int) (i, j int, cost float64, ok bool) {
	o := &e.p.Orders[oi]
	v := &e.p.Vehicles[base.Vehicle]
	pick := &e.p.Nodes[o.Pickup]
	n := len(base.Path)
	cost = 0
	for a := 0; a <= n-2; a++ {
		if base.load[a]+o.Demand > v.Capacity+eps {
			continue
		}
		if !pick.Reachable(base.departure[a] + e.p.Travel(base.Path[a], o.Pickup)) {
			continue
		}
		for b := a; b <= n-2; b++ {
			if b > a && base.load[b]+o.Demand > v.Capacity+eps {
				break
			}
			if a == skipI && b == skipJ {
				continue
			}
			e.buf = insertPair(e.buf, base.Path, a, b, o.Pickup, o.Delivery)
			c, feasible := e.probe(base, e.buf, a+1)
			if !feasible {
				continue
			}
			if !ok || c < cost-eps {
				i, j, cost, ok = a, b, c, true
			}
		}
	}
	return i, j, cost, ok
}
