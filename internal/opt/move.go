package opt

import (
	"fmt"

	"pdroute/internal/problem"
)

// MoveKind discriminates the Move payload.
type MoveKind uint8

const (
	// MoveInsert places an unassigned order: Order, To, I, J.
	MoveInsert MoveKind = iota
	// MoveRelocate moves Order from route From to route To (possibly the same) at I, J.
	MoveRelocate
	// MoveExchange puts Order into To at I, J and Order2 into From at I2, J2.
	MoveExchange
	// MoveTwoOpt reverses positions I..J of route From.
	MoveTwoOpt
	// MoveOrOpt lifts Len nodes starting at I out of route From and reinserts them after J.
	MoveOrOpt
	// MoveEvict places Order into To at I, J after taking Order2 off To.
	MoveEvict
	// MoveChain applies Steps in sequence.
	MoveChain
)

func (k MoveKind) String() string {
	switch k {
	case MoveInsert:
		return "insert"
	case MoveRelocate:
		return "relocate"
	case MoveExchange:
		return "exchange"
	case MoveTwoOpt:
		return "two-opt"
	case MoveOrOpt:
		return "or-opt"
	case MoveEvict:
		return "evict"
	case MoveChain:
		return "chain"
	}
	return "unknown"
}

type attrKind uint8

const (
	// order A on route B (B = -1 for the unassigned pool)
	attrAssign attrKind = iota + 1
	// segment between nodes A and B of route C reversed
	attrReverse
	// node A directly after node B
	attrFollow
)

// Attribute is what the tabu list remembers about applied moves.
type Attribute struct {
	Kind    attrKind
	A, B, C int
}

func assignAttr(oi, ri int) Attribute { return Attribute{Kind: attrAssign, A: oi, B: ri} }

func reverseAttr(ri, a, b int) Attribute {
	if a > b {
		a, b = b, a
	}
	return Attribute{Kind: attrReverse, A: a, B: b, C: ri}
}

func followAttr(node, pred int) Attribute { return Attribute{Kind: attrFollow, A: node, B: pred} }

func (a Attribute) less(b Attribute) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	if a.A != b.A {
		return a.A < b.A
	}
	if a.B != b.B {
		return a.B < b.B
	}
	return a.C < b.C
}

// Move is a candidate transformation. It is evaluated against one solution
// state and discarded after the iteration.
type Move struct {
	Kind          MoveKind
	Order, Order2 int
	From, To      int
	I, J, I2, J2  int
	Len           int
	Steps         []Move
	Delta         float64 // change of Cost
	Cost          float64 // solution cost after the move
	Unassigned    int     // unassigned orders after the move
	KeyID         int64   // lowest order id touched
	Touched       int     // routes whose path changes

	enter, leave []Attribute
}

// String is used in debug logs.
func (m *Move) String() string {
	switch m.Kind {
	case MoveTwoOpt:
		return fmt.Sprintf("%s route=%d [%d..%d] cost=%.3f", m.Kind, m.From, m.I, m.J, m.Cost)
	case MoveOrOpt:
		return fmt.Sprintf("%s route=%d seg=%d+%d after=%d cost=%.3f", m.Kind, m.From, m.I, m.Len, m.J, m.Cost)
	case MoveChain:
		return fmt.Sprintf("%s order=%d steps=%d cost=%.3f unassigned=%d", m.Kind, m.Order, len(m.Steps), m.Cost, m.Unassigned)
	}
	return fmt.Sprintf("%s order=%d order2=%d %d->%d cost=%.3f", m.Kind, m.Order, m.Order2, m.From, m.To, m.Cost)
}

// before is the deterministic tie-break between moves of equal cost: fewer
// routes touched, lower order id, kind, then positions.
func (m *Move) before(o *Move) bool {
	if m.Touched != o.Touched {
		return m.Touched < o.Touched
	}
	if m.KeyID != o.KeyID {
		return m.KeyID < o.KeyID
	}
	if m.Kind != o.Kind {
		return m.Kind < o.Kind
	}
	for _, d := range [...][2]int{{m.From, o.From}, {m.To, o.To}, {m.I, o.I}, {m.J, o.J}, {m.I2, o.I2}, {m.J2, o.J2}, {m.Len, o.Len}, {m.Order2, o.Order2}} {
		if d[0] != d[1] {
			return d[0] < d[1]
		}
	}
	return false
}

// cheaper compares by resulting cost, then by tie-break.
func cheaper(a, b *Move) bool {
	if a.Cost < b.Cost-eps {
		return true
	}
	if b.Cost < a.Cost-eps {
		return false
	}
	return a.before(b)
}

// fewerUnassigned compares by unassigned count, then cost, then tie-break.
func fewerUnassigned(a, b *Move) bool {
	if a.Unassigned != b.Unassigned {
		return a.Unassigned < b.Unassigned
	}
	return cheaper(a, b)
}

// paths rebuilds the candidate paths of a single-step move against s.
// The returned slices are freshly allocated.
func (m *Move) paths(s *Solution) (from, to []int) {
	p := s.p
	switch m.Kind {
	case MoveInsert:
		o := &p.Orders[m.Order]
		return nil, insertPair(nil, s.routes[m.To].Path, m.I, m.J, o.Pickup, o.Delivery)
	case MoveRelocate:
		o := &p.Orders[m.Order]
		rest := removePair(nil, s.routes[m.From].Path, o.Pickup, o.Delivery)
		if m.From == m.To {
			return nil, insertPair(nil, rest, m.I, m.J, o.Pickup, o.Delivery)
		}
		return rest, insertPair(nil, s.routes[m.To].Path, m.I, m.J, o.Pickup, o.Delivery)
	case MoveExchange:
		o1, o2 := &p.Orders[m.Order], &p.Orders[m.Order2]
		rest1 := removePair(nil, s.routes[m.From].Path, o1.Pickup, o1.Delivery)
		rest2 := removePair(nil, s.routes[m.To].Path, o2.Pickup, o2.Delivery)
		return insertPair(nil, rest1, m.I2, m.J2, o2.Pickup, o2.Delivery),
			insertPair(nil, rest2, m.I, m.J, o1.Pickup, o1.Delivery)
	case MoveTwoOpt:
		return nil, reverseSegment(nil, s.routes[m.From].Path, m.I, m.J)
	case MoveOrOpt:
		return nil, moveSegment(nil, s.routes[m.From].Path, m.I, m.Len, m.J)
	case MoveEvict:
		o, ev := &p.Orders[m.Order], &p.Orders[m.Order2]
		rest := removePair(nil, s.routes[m.To].Path, ev.Pickup, ev.Delivery)
		return nil, insertPair(nil, rest, m.I, m.J, o.Pickup, o.Delivery)
	}
	panic(fmt.Sprintf("opt: no paths for %s", m.Kind))
}

// apply performs the move on s. It is the only mutation path after construction.
func (s *Solution) apply(m *Move) {
	if m.Kind == MoveChain {
		for i := range m.Steps {
			s.apply(&m.Steps[i])
		}
		return
	}
	from, to := m.paths(s)
	switch m.Kind {
	case MoveInsert:
		s.routes[m.To].setPath(s.p, to)
		s.where[m.Order] = m.To
		s.unassigned--
	case MoveRelocate:
		if from != nil {
			s.routes[m.From].setPath(s.p, from)
		}
		s.routes[m.To].setPath(s.p, to)
		s.where[m.Order] = m.To
	case MoveExchange:
		s.routes[m.From].setPath(s.p, from)
		s.routes[m.To].setPath(s.p, to)
		s.where[m.Order] = m.To
		s.where[m.Order2] = m.From
	case MoveTwoOpt, MoveOrOpt:
		s.routes[m.From].setPath(s.p, to)
	case MoveEvict:
		s.routes[m.To].setPath(s.p, to)
		s.where[m.Order] = m.To
		s.where[m.Order2] = -1
	}
	s.refreshCost()
}

// lowestID returns the lowest order id among the given orders (negative indices ignored).
func lowestID(p *problem.Problem, orders ...int) int64 {
	var id int64
	first := true
	for _, oi := range orders {
		if oi < 0 {
			continue
		}
		if first || p.Orders[oi].ID < id {
			id = p.Orders[oi].ID
			first = false
		}
	}
	return id
}
