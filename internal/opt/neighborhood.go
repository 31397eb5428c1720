package opt

import (
	"math/rand"
	"sort"

	"pdroute/internal/problem"
)

// twoOptSpan bounds the length of a reversed segment.
const twoOptSpan = 6

// neighborhood generates candidate moves for both the constructor and the
// optimizer. Candidates come from a sample of orders and a sample of target
// routes per order, both drawn from rng.
type neighborhood struct {
	ev     *evaluator
	cfg    Config
	rng    *rand.Rand
	pool   []int   // orders that may move
	compat [][]int // order -> compatible route indices

	tmpA, tmpB Route
	cands      []Move
	sbuf       []int
	tbuf       []int
}

func newNeighborhood(s *Solution, cfg Config, rng *rand.Rand) *neighborhood {
	p := s.p
	n := &neighborhood{
		ev:     newEvaluator(p),
		cfg:    cfg,
		rng:    rng,
		compat: make([][]int, len(p.Orders)),
	}
	for oi := range p.Orders {
		for vi := range p.Vehicles {
			if p.Compatible(oi, vi) {
				n.compat[oi] = append(n.compat[oi], vi)
			}
		}
		if len(n.compat[oi]) > 0 && !s.locked[oi] {
			n.pool = append(n.pool, oi)
		}
	}
	return n
}

// sample draws up to k orders from list with a partial Fisher-Yates shuffle.
// list is permuted in place.
func (n *neighborhood) sample(list []int, k int) []int {
	if k > len(list) {
		k = len(list)
	}
	for i := 0; i < k; i++ {
		j := i + n.rng.Intn(len(list)-i)
		list[i], list[j] = list[j], list[i]
	}
	n.sbuf = append(n.sbuf[:0], list[:k]...)
	return n.sbuf
}

// targets samples up to TargetRoutes compatible routes for oi, leaving out
// exclude and any route in skip. The result is reused by the next call.
func (n *neighborhood) targets(oi, exclude int, skip map[int]bool) []int {
	n.tbuf = n.tbuf[:0]
	for _, ri := range n.compat[oi] {
		if ri != exclude && !skip[ri] {
			n.tbuf = append(n.tbuf, ri)
		}
	}
	k := n.cfg.TargetRoutes
	if len(n.tbuf) > k {
		for i := 0; i < k; i++ {
			j := i + n.rng.Intn(len(n.tbuf)-i)
			n.tbuf[i], n.tbuf[j] = n.tbuf[j], n.tbuf[i]
		}
		n.tbuf = n.tbuf[:k]
		sort.Ints(n.tbuf)
	}
	return n.tbuf
}

// reduce loads dst with route ri minus order oi.
func (n *neighborhood) reduce(dst *Route, s *Solution, ri, oi int) {
	o := &s.p.Orders[oi]
	dst.Vehicle = s.routes[ri].Vehicle
	dst.Path = removePair(dst.Path, s.routes[ri].Path, o.Pickup, o.Delivery)
	dst.recompute(s.p, 0)
}

func position(path []int, ni int) int {
	for k, x := range path {
		if x == ni {
			return k
		}
	}
	return -1
}

// generate returns every candidate for the current iteration. The slice is
// reused by the next call.
func (n *neighborhood) generate(s *Solution) []Move {
	n.cands = n.cands[:0]
	sample := n.sample(n.pool, n.cfg.NeighborhoodSampleSize)
	for _, oi := range sample {
		ri := s.where[oi]
		if ri < 0 {
			n.inserts(s, oi)
			continue
		}
		n.relocations(s, oi, ri)
		o := &s.p.Orders[oi]
		for _, start := range [...]int{o.Pickup, o.Delivery} {
			n.twoOpts(s, oi, ri, start)
			n.orOpts(s, oi, ri, start)
		}
	}
	n.exchanges(s, sample)
	return n.cands
}

func (n *neighborhood) insertMove(s *Solution, oi, ri int) (Move, bool) {
	r := &s.routes[ri]
	i, j, c, ok := n.ev.bestInsertion(r, oi, -1, -1)
	if !ok {
		return Move{}, false
	}
	delta := c - r.cost - s.penalty
	return Move{
		Kind: MoveInsert, Order: oi, Order2: -1, From: -1, To: ri, I: i, J: j,
		Delta: delta, Cost: s.cost + delta, Unassigned: s.unassigned - 1,
		KeyID: s.p.Orders[oi].ID, Touched: 1,
		enter: []Attribute{assignAttr(oi, ri)},
		leave: []Attribute{assignAttr(oi, -1)},
	}, true
}

func (n *neighborhood) inserts(s *Solution, oi int) {
	for _, ri := range n.targets(oi, -1, nil) {
		if m, ok := n.insertMove(s, oi, ri); ok {
			n.cands = append(n.cands, m)
		}
	}
}

func (n *neighborhood) relocations(s *Solution, oi, ri int) {
	p := s.p
	o := &p.Orders[oi]
	src := &s.routes[ri]
	n.reduce(&n.tmpA, s, ri, oi)
	shrink := n.tmpA.cost - src.cost

	for _, ti := range n.targets(oi, ri, nil) {
		dst := &s.routes[ti]
		i, j, c, ok := n.ev.bestInsertion(dst, oi, -1, -1)
		if !ok {
			continue
		}
		delta := shrink + c - dst.cost
		n.cands = append(n.cands, Move{
			Kind: MoveRelocate, Order: oi, Order2: -1, From: ri, To: ti, I: i, J: j,
			Delta: delta, Cost: s.cost + delta, Unassigned: s.unassigned,
			KeyID: o.ID, Touched: 2,
			enter: []Attribute{assignAttr(oi, ti)},
			leave: []Attribute{assignAttr(oi, ri)},
		})
	}

	// same route, different positions
	pi, di := position(src.Path, o.Pickup), position(src.Path, o.Delivery)
	i, j, c, ok := n.ev.bestInsertion(&n.tmpA, oi, pi-1, di-2)
	if !ok {
		return
	}
	rest := n.tmpA.Path
	oldP, oldD := src.Path[pi-1], src.Path[di-1]
	newP, newD := rest[i], o.Pickup
	if j > i {
		newD = rest[j]
	}
	var enter, leave []Attribute
	if newP != oldP {
		enter = append(enter, followAttr(o.Pickup, newP))
		leave = append(leave, followAttr(o.Pickup, oldP))
	}
	if newD != oldD {
		enter = append(enter, followAttr(o.Delivery, newD))
		leave = append(leave, followAttr(o.Delivery, oldD))
	}
	delta := c - src.cost
	n.cands = append(n.cands, Move{
		Kind: MoveRelocate, Order: oi, Order2: -1, From: ri, To: ri, I: i, J: j,
		Delta: delta, Cost: s.cost + delta, Unassigned: s.unassigned,
		KeyID: o.ID, Touched: 1,
		enter: enter, leave: leave,
	})
}

// segmentMovable reports whether no locked order has a node in path[i..k].
func segmentMovable(s *Solution, path []int, i, k int) bool {
	for _, ni := range path[i : k+1] {
		if oi := s.p.Nodes[ni].Order; oi >= 0 && s.locked[oi] {
			return false
		}
	}
	return true
}

func (n *neighborhood) twoOpts(s *Solution, oi, ri, startNode int) {
	r := &s.routes[ri]
	path := r.Path
	i := position(path, startNode)
	last := i + twoOptSpan
	if last > len(path)-2 {
		last = len(path) - 2
	}
	for k := i + 1; k <= last; k++ {
		if !segmentMovable(s, path, i, k) {
			break
		}
		n.ev.buf = reverseSegment(n.ev.buf, path, i, k)
		c, ok := n.ev.probe(r, n.ev.buf, i)
		if !ok {
			continue
		}
		attr := reverseAttr(ri, path[i], path[k])
		delta := c - r.cost
		n.cands = append(n.cands, Move{
			Kind: MoveTwoOpt, Order: oi, Order2: -1, From: ri, To: ri, I: i, J: k,
			Delta: delta, Cost: s.cost + delta, Unassigned: s.unassigned,
			KeyID: s.p.Orders[oi].ID, Touched: 1,
			enter: []Attribute{attr},
			leave: []Attribute{attr},
		})
	}
}

func (n *neighborhood) orOpts(s *Solution, oi, ri, startNode int) {
	r := &s.routes[ri]
	path := r.Path
	i := position(path, startNode)
	for seg := 2; seg <= 3; seg++ {
		if i+seg-1 > len(path)-2 || !segmentMovable(s, path, i, i+seg-1) {
			return
		}
		first, oldPred := path[i], path[i-1]
		restLen := len(path) - seg
		for j := 0; j <= restLen-2; j++ {
			if j == i-1 {
				continue
			}
			n.ev.buf = moveSegment(n.ev.buf, path, i, seg, j)
			from := i
			if j+1 < from {
				from = j + 1
			}
			c, ok := n.ev.probe(r, n.ev.buf, from)
			if !ok {
				continue
			}
			newPred := path[j]
			if j >= i {
				newPred = path[j+seg]
			}
			delta := c - r.cost
			n.cands = append(n.cands, Move{
				Kind: MoveOrOpt, Order: oi, Order2: -1, From: ri, To: ri, I: i, J: j, Len: seg,
				Delta: delta, Cost: s.cost + delta, Unassigned: s.unassigned,
				KeyID: s.p.Orders[oi].ID, Touched: 1,
				enter: []Attribute{followAttr(first, newPred)},
				leave: []Attribute{followAttr(first, oldPred)},
			})
		}
	}
}

func (n *neighborhood) exchanges(s *Solution, sample []int) {
	p := s.p
	for x := 0; x < len(sample); x++ {
		oa := sample[x]
		ra := s.where[oa]
		if ra < 0 {
			continue
		}
		for y := x + 1; y < len(sample); y++ {
			ob := sample[y]
			rb := s.where[ob]
			if rb < 0 || rb == ra || !p.Compatible(oa, rb) || !p.Compatible(ob, ra) {
				continue
			}
			n.reduce(&n.tmpA, s, ra, oa)
			n.reduce(&n.tmpB, s, rb, ob)
			i, j, cb, ok := n.ev.bestInsertion(&n.tmpB, oa, -1, -1)
			if !ok {
				continue
			}
			i2, j2, ca, ok := n.ev.bestInsertion(&n.tmpA, ob, -1, -1)
			if !ok {
				continue
			}
			delta := ca + cb - s.routes[ra].cost - s.routes[rb].cost
			n.cands = append(n.cands, Move{
				Kind: MoveExchange, Order: oa, Order2: ob, From: ra, To: rb,
				I: i, J: j, I2: i2, J2: j2,
				Delta: delta, Cost: s.cost + delta, Unassigned: s.unassigned,
				KeyID: lowestID(p, oa, ob), Touched: 2,
				enter: []Attribute{assignAttr(oa, rb), assignAttr(ob, ra)},
				leave: []Attribute{assignAttr(oa, ra), assignAttr(ob, rb)},
			})
		}
	}
}

// bestInsert is the cheapest plain insertion of oi over sampled routes not in skip.
func (n *neighborhood) bestInsert(s *Solution, oi int, skip map[int]bool) (Move, bool) {
	var best Move
	found := false
	for _, ri := range n.targets(oi, -1, skip) {
		m, ok := n.insertMove(s, oi, ri)
		if ok && (!found || cheaper(&m, &best)) {
			best, found = m, true
		}
	}
	return best, found
}

// bestEvict places oi by taking an unlocked order off a sampled route.
func (n *neighborhood) bestEvict(s *Solution, oi int, skip map[int]bool) (Move, bool) {
	p := s.p
	var best Move
	found := false
	routes := append([]int(nil), n.targets(oi, -1, skip)...)
	for _, ri := range routes {
		r := &s.routes[ri]
		for _, ni := range r.Path {
			node := &p.Nodes[ni]
			if node.Kind != problem.KindPickup {
				continue
			}
			ob := node.Order
			if ob == oi || s.locked[ob] {
				continue
			}
			n.reduce(&n.tmpA, s, ri, ob)
			i, j, c, ok := n.ev.bestInsertion(&n.tmpA, oi, -1, -1)
			if !ok {
				continue
			}
			delta := c - r.cost
			m := Move{
				Kind: MoveEvict, Order: oi, Order2: ob, From: -1, To: ri, I: i, J: j,
				Delta: delta, Cost: s.cost + delta, Unassigned: s.unassigned,
				KeyID: p.Orders[oi].ID, Touched: 1,
				enter: []Attribute{assignAttr(oi, ri), assignAttr(ob, -1)},
				leave: []Attribute{assignAttr(ob, ri), assignAttr(oi, -1)},
			}
			if !found || cheaper(&m, &best) {
				best, found = m, true
			}
		}
	}
	return best, found
}

// chain inserts oi, evicting orders and re-placing them up to EvictionDepth
// times. Each step uses a route not used by an earlier step. A chain may end
// with an evicted order left unassigned only when it ranks below oi.
func (n *neighborhood) chain(s *Solution, oi int, rank []int) (Move, bool) {
	work := s.Clone()
	used := map[int]bool{}
	var steps []Move
	cur := oi
	for depth := 0; ; depth++ {
		if m, ok := n.bestInsert(work, cur, used); ok {
			work.apply(&m)
			steps = append(steps, m)
			used[m.To] = true
			cur = -1
			break
		}
		if depth >= n.cfg.EvictionDepth {
			break
		}
		m, ok := n.bestEvict(work, cur, used)
		if !ok {
			break
		}
		work.apply(&m)
		steps = append(steps, m)
		used[m.To] = true
		cur = m.Order2
	}
	if len(steps) == 0 || (cur >= 0 && rank[cur] <= rank[oi]) {
		return Move{}, false
	}
	return Move{
		Kind: MoveChain, Order: oi, Order2: -1, From: -1, To: steps[0].To,
		Steps: steps,
		Delta: work.cost - s.cost, Cost: work.cost, Unassigned: work.unassigned,
		KeyID: s.p.Orders[oi].ID, Touched: len(used), Len: len(steps),
	}, true
}
