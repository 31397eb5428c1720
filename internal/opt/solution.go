package opt

import (
	"fmt"
	"math"
	"sort"

	"pdroute/internal/problem"
)

// Solution assigns orders to routes, one route per vehicle. After construction it
// changes only through apply.
type Solution struct {
	p       *problem.Problem
	routes  []Route
	where   []int // order -> route index, -1 when unassigned
	locked  []bool
	penalty float64

	unassigned int
	cost       float64
}

func newSolution(p *problem.Problem, penalty float64) *Solution {
	s := &Solution{
		p:          p,
		routes:     make([]Route, len(p.Vehicles)),
		where:      make([]int, len(p.Orders)),
		locked:     make([]bool, len(p.Orders)),
		penalty:    penalty,
		unassigned: len(p.Orders),
	}
	for vi := range p.Vehicles {
		s.routes[vi] = newRoute(p, vi)
	}
	for oi := range s.where {
		s.where[oi] = -1
	}
	s.refreshCost()
	return s
}

// Problem returns the arena the solution indexes into.
func (s *Solution) Problem() *problem.Problem { return s.p }

// Routes returns the routes in vehicle order. Callers must not modify them.
func (s *Solution) Routes() []Route { return s.routes }

// Cost returns route costs plus the unassigned penalty.
func (s *Solution) Cost() float64 { return s.cost }

// Penalty returns the per-order unassigned penalty.
func (s *Solution) Penalty() float64 { return s.penalty }

// RouteOf returns the route serving order oi, or -1.
func (s *Solution) RouteOf(oi int) int { return s.where[oi] }

// Locked reports whether order oi is pinned to its route.
func (s *Solution) Locked(oi int) bool { return s.locked[oi] }

// UnassignedCount includes infeasible orders.
func (s *Solution) UnassignedCount() int { return s.unassigned }

// Unassigned lists unassigned order indices in ascending order.
func (s *Solution) Unassigned() []int {
	out := make([]int, 0, s.unassigned)
	for oi, r := range s.where {
		if r < 0 {
			out = append(out, oi)
		}
	}
	return out
}

// Infeasible lists orders that no vehicle can serve; they are always unassigned.
func (s *Solution) Infeasible() []int { return s.p.Infeasible() }

// UsedRoutes counts routes that serve at least one order.
func (s *Solution) UsedRoutes() int {
	n := 0
	for i := range s.routes {
		if !s.routes[i].Empty() {
			n++
		}
	}
	return n
}

// Clone deep-copies the routes and indices; the Problem is shared.
func (s *Solution) Clone() *Solution {
	c := &Solution{
		p:          s.p,
		routes:     make([]Route, len(s.routes)),
		where:      append([]int(nil), s.where...),
		locked:     append([]bool(nil), s.locked...),
		penalty:    s.penalty,
		unassigned: s.unassigned,
		cost:       s.cost,
	}
	for i := range s.routes {
		c.routes[i] = s.routes[i].clone()
	}
	return c
}

// Paths returns a copy of every route's node sequence.
func (s *Solution) Paths() [][]int {
	out := make([][]int, len(s.routes))
	for i := range s.routes {
		out[i] = append([]int(nil), s.routes[i].Path...)
	}
	return out
}

func (s *Solution) refreshCost() {
	total := 0.0
	for i := range s.routes {
		total += s.routes[i].cost
	}
	s.cost = total + s.penalty*float64(s.unassigned)
}

// load places a whole path on route ri while a solution is being built.
// Orders on the path must be unassigned.
func (s *Solution) load(ri int, path []int) {
	r := &s.routes[ri]
	for _, ni := range r.Path {
		if oi := s.p.Nodes[ni].Order; oi >= 0 && s.p.Nodes[ni].Kind == problem.KindPickup {
			s.where[oi] = -1
			s.unassigned++
		}
	}
	r.setPath(s.p, path)
	for _, ni := range path {
		if oi := s.p.Nodes[ni].Order; oi >= 0 && s.p.Nodes[ni].Kind == problem.KindPickup {
			s.where[oi] = ri
			s.unassigned--
		}
	}
	s.refreshCost()
}

// Verify re-checks every invariant from scratch, ignoring cached values except
// to compare them against the recomputation.
func (s *Solution) Verify() error {
	p := s.p
	seen := make([]int, len(p.Nodes))
	for i := range seen {
		seen[i] = -1
	}
	total := 0.0
	unassigned := 0
	for ri := range s.routes {
		r := &s.routes[ri]
		v := &p.Vehicles[r.Vehicle]
		if r.Vehicle != ri {
			return fmt.Errorf("route %d holds vehicle %d: %w", ri, r.Vehicle, ErrInconsistent)
		}
		n := len(r.Path)
		if n < 2 || r.Path[0] != v.Start || r.Path[n-1] != v.End {
			return fmt.Errorf("vehicle %d: route must start and end at its depots: %w", v.ID, ErrInconsistent)
		}
		t := p.Nodes[v.Start].Window.Opens
		_, t = p.Nodes[v.Start].Serve(t)
		load, travel := 0.0, 0.0
		for k := 1; k < n; k++ {
			ni := r.Path[k]
			node := &p.Nodes[ni]
			if k < n-1 && node.IsDepot() {
				return fmt.Errorf("vehicle %d: depot inside route at %d: %w", v.ID, k, ErrInconsistent)
			}
			if seen[ni] >= 0 {
				return fmt.Errorf("vehicle %d: node %d visited twice: %w", v.ID, ni, ErrInconsistent)
			}
			seen[ni] = ri
			d := p.Travel(r.Path[k-1], ni)
			travel += d
			arr := t + d
			if !node.Reachable(arr) {
				return fmt.Errorf("vehicle %d: arrival %v at %s of location %d after %v: %w",
					v.ID, arr, node.Kind, node.ID, node.Window.Closes, ErrInconsistent)
			}
			_, t = node.Serve(arr)
			load += node.Demand
			if load > v.Capacity+eps || load < -eps {
				return fmt.Errorf("vehicle %d: load %v exceeds capacity %v at %d: %w", v.ID, load, v.Capacity, k, ErrInconsistent)
			}
			if node.Kind == problem.KindDelivery {
				pick := p.Orders[node.Order].Pickup
				if seen[pick] != ri {
					return fmt.Errorf("vehicle %d: order %d delivered before pickup: %w", v.ID, p.Orders[node.Order].ID, ErrInconsistent)
				}
			}
		}
		c := v.RouteCost(travel, n > 2)
		if math.Abs(c-r.cost) > 1e-6*math.Max(1, math.Abs(c)) {
			return fmt.Errorf("vehicle %d: cached cost %v, recomputed %v: %w", v.ID, r.cost, c, ErrInconsistent)
		}
		total += c
	}
	for oi := range p.Orders {
		o := &p.Orders[oi]
		rp, rd := seen[o.Pickup], seen[o.Delivery]
		if rp != rd {
			return fmt.Errorf("order %d: pickup and delivery on different routes: %w", o.ID, ErrInconsistent)
		}
		if rp != s.where[oi] {
			return fmt.Errorf("order %d: index says route %d, found on %d: %w", o.ID, s.where[oi], rp, ErrInconsistent)
		}
		if rp < 0 {
			unassigned++
			continue
		}
		if !p.Compatible(oi, rp) {
			return fmt.Errorf("order %d: not compatible with vehicle %d: %w", o.ID, p.Vehicles[rp].ID, ErrInconsistent)
		}
	}
	if unassigned != s.unassigned {
		return fmt.Errorf("unassigned count %d, found %d: %w", s.unassigned, unassigned, ErrInconsistent)
	}
	total += s.penalty * float64(unassigned)
	if math.Abs(total-s.cost) > 1e-6*math.Max(1, math.Abs(total)) {
		return fmt.Errorf("cached cost %v, recomputed %v: %w", s.cost, total, ErrInconsistent)
	}
	return nil
}

// priority orders by delivery deadline, pickup deadline, larger demand first,
// then id.
func priority(p *problem.Problem) []int {
	idx := make([]int, len(p.Orders))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		oa, ob := &p.Orders[idx[a]], &p.Orders[idx[b]]
		da, db := p.Nodes[oa.Delivery].Window.Closes, p.Nodes[ob.Delivery].Window.Closes
		if da != db {
			return da < db
		}
		pa, pb := p.Nodes[oa.Pickup].Window.Closes, p.Nodes[ob.Pickup].Window.Closes
		if pa != pb {
			return pa < pb
		}
		if oa.Demand != ob.Demand {
			return oa.Demand > ob.Demand
		}
		return oa.ID < ob.ID
	})
	return idx
}
