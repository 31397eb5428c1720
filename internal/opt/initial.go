package opt

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"pdroute/internal/problem"
)

// Build constructs the starting solution: initial stops first, then every
// remaining order by priority with the simple insertion pass, then the
// tabu-assisted eviction phase when orders are left over and it is enabled.
func Build(p *problem.Problem, cfg Config, opts ...Option) (*Solution, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	o := buildOptions(opts)
	log := o.log.With(zap.Int64("seed", cfg.RandomSeed))

	s := newSolution(p, cfg.UnassignedPenalty)
	ev := newEvaluator(p)
	loadInitialStops(s, ev, cfg, log)

	infeasible := make([]bool, len(p.Orders))
	for _, oi := range p.Infeasible() {
		infeasible[oi] = true
	}
	rank := make([]int, len(p.Orders))
	order := priority(p)
	for r, oi := range order {
		rank[oi] = r
	}
	for _, oi := range order {
		if infeasible[oi] || s.where[oi] >= 0 {
			continue
		}
		insertGreedy(s, ev, oi, cfg.InitialInsertion)
	}
	log.Debug("simple construction done",
		zap.Float64("cost", s.cost),
		zap.Int("unassigned", s.unassigned),
		zap.Int("infeasible", len(p.Infeasible())))

	if cfg.Construction == ConstructTabu && s.unassigned > len(p.Infeasible()) && cfg.ConstructIterations > 0 {
		s = tabuConstruct(s, cfg, rank, log)
	}
	if err := s.Verify(); err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}
	return s, nil
}

// loadInitialStops realises each vehicle's given stop sequence. A sequence that
// names unknown or incompatible orders, or breaks a route constraint, is
// dropped and its orders are inserted normally.
func loadInitialStops(s *Solution, ev *evaluator, cfg Config, log *zap.Logger) {
	p := s.p
	for vi := range p.Vehicles {
		v := &p.Vehicles[vi]
		if len(v.Stops) == 0 {
			continue
		}
		path, orders, err := stopsPath(s, vi)
		if err == nil {
			if _, ok := ev.probe(&s.routes[vi], path, 1); !ok {
				err = errors.New("sequence breaks a route constraint")
			}
		}
		if err != nil {
			log.Warn("initial stops dropped", zap.Int64("vehicle", v.ID), zap.Error(err))
			continue
		}
		s.load(vi, path)
		for _, oi := range orders {
			if p.Nodes[p.Orders[oi].Pickup].Window.Opens < cfg.ExecutionDate {
				s.locked[oi] = true
			}
		}
	}
}

func stopsPath(s *Solution, vi int) ([]int, []int, error) {
	p := s.p
	v := &p.Vehicles[vi]
	count := map[int]int{}
	path := []int{v.Start}
	var orders []int
	for _, id := range v.Stops {
		oi, ok := p.OrderIndex(id)
		if !ok {
			return nil, nil, fmt.Errorf("unknown order %d", id)
		}
		if s.where[oi] >= 0 {
			return nil, nil, fmt.Errorf("order %d already on another vehicle", id)
		}
		if !p.Compatible(oi, vi) {
			return nil, nil, fmt.Errorf("order %d is not compatible", id)
		}
		count[oi]++
		switch count[oi] {
		case 1:
			path = append(path, p.Orders[oi].Pickup)
			orders = append(orders, oi)
		case 2:
			path = append(path, p.Orders[oi].Delivery)
		default:
			return nil, nil, fmt.Errorf("order %d listed more than twice", id)
		}
	}
	for _, oi := range orders {
		if count[oi] != 2 {
			return nil, nil, fmt.Errorf("order %d has no delivery stop", p.Orders[oi].ID)
		}
	}
	return append(path, v.End), orders, nil
}

// insertGreedy places oi on an in-use route, or opens the unused compatible
// vehicle with the cheapest insertion. It leaves oi unassigned when neither works.
func insertGreedy(s *Solution, ev *evaluator, oi int, mode Insertion) bool {
	p := s.p
	var best Move
	found := false
	consider := func(ri int) bool {
		r := &s.routes[ri]
		i, j, c, ok := ev.bestInsertion(r, oi, -1, -1)
		if !ok {
			return false
		}
		delta := c - r.cost - s.penalty
		if !found || delta < best.Delta-eps {
			best = Move{
				Kind: MoveInsert, Order: oi, Order2: -1, From: -1, To: ri, I: i, J: j,
				Delta: delta, Cost: s.cost + delta, Unassigned: s.unassigned - 1,
				KeyID: p.Orders[oi].ID, Touched: 1,
			}
			found = true
		}
		return true
	}
	for ri := range s.routes {
		if s.routes[ri].Empty() || !p.Compatible(oi, ri) {
			continue
		}
		if consider(ri) && mode == InsertFirst {
			break
		}
	}
	if !found {
		for ri := range s.routes {
			if s.routes[ri].Empty() && p.Compatible(oi, ri) {
				consider(ri)
			}
		}
	}
	if !found {
		return false
	}
	s.apply(&best)
	return true
}

// tabuConstruct runs the eviction-chain search and returns the best solution
// by (unassigned, cost).
func tabuConstruct(s *Solution, cfg Config, rank []int, log *zap.Logger) *Solution {
	rng := rand.New(rand.NewSource(cfg.RandomSeed))
	nb := newNeighborhood(s, cfg, rng)
	tabu := NewTabuList(cfg.MaxTabuEntries)
	best := s.Clone()
	var pending []int
	for it := 0; it < cfg.ConstructIterations; it++ {
		pending = pending[:0]
		for _, oi := range nb.pool {
			if s.where[oi] < 0 {
				pending = append(pending, oi)
			}
		}
		if len(pending) == 0 {
			break
		}
		sort.Ints(pending)
		var cands []Move
		for _, oi := range nb.sample(pending, cfg.NeighborhoodSampleSize) {
			if m, ok := nb.chain(s, oi, rank); ok {
				cands = append(cands, m)
			}
		}
		aspires := func(m *Move) bool {
			return m.Unassigned < best.unassigned ||
				(m.Unassigned == best.unassigned && tabu.Aspiration(m.Cost, best.cost))
		}
		k, how := selectMove(cands, tabu, it, fewerUnassigned, aspires, cfg.Fallback)
		if how == selNone {
			break
		}
		m := &cands[k]
		s.apply(m)
		tabu.forbidMove(m, it, tenure(rng, cfg.BaseTenure, cfg.TenureJitter))
		if s.unassigned < best.unassigned || (s.unassigned == best.unassigned && s.cost < best.cost-eps) {
			best = s.Clone()
		}
	}
	log.Debug("tabu construction done",
		zap.Float64("cost", best.cost),
		zap.Int("unassigned", best.unassigned))
	return best
}
