package problem

import (
	"fmt"
	"math"
	"sort"
)

// Problem is the immutable arena every solver run reads from. Nodes, orders and
// vehicles reference each other by index only, so one Problem can be shared by
// concurrent runs.
type Problem struct {
	Nodes    []Node
	Orders   []Order
	Vehicles Fleet
	Matrix   *Matrix

	compat     [][]bool // [order][vehicle]
	infeasible []int
	orderIdx   map[int64]int
}

// Pair is an order/vehicle combination that can be served in isolation.
type Pair struct {
	OrderID   int64 `json:"orderId"`
	VehicleID int64 `json:"vehicleId"`
}

// New builds the arena. Vehicle depots come first (start, end per vehicle), then
// pickup and delivery of each order.
func New(orders []OrderInput, vehicles []VehicleInput, m *Matrix) (*Problem, error) {
	if m == nil {
		return nil, fmt.Errorf("new problem: nil matrix: %w", ErrInvalidInput)
	}
	if len(vehicles) == 0 {
		return nil, fmt.Errorf("new problem: no vehicles: %w", ErrInvalidInput)
	}
	p := &Problem{
		Nodes:    make([]Node, 0, 2*len(vehicles)+2*len(orders)),
		Orders:   make([]Order, 0, len(orders)),
		Vehicles: make(Fleet, 0, len(vehicles)),
		Matrix:   m,
		orderIdx: make(map[int64]int, len(orders)),
	}

	seenV := map[int64]bool{}
	for _, vi := range vehicles {
		if seenV[vi.ID] {
			return nil, fmt.Errorf("new problem: duplicate vehicle %d: %w", vi.ID, ErrInvalidInput)
		}
		seenV[vi.ID] = true
		if vi.Capacity <= 0 || math.IsNaN(vi.Capacity) {
			return nil, fmt.Errorf("new problem: vehicle %d capacity %v: %w", vi.ID, vi.Capacity, ErrInvalidInput)
		}
		if vi.FixedCost < 0 || vi.VarCost < 0 {
			return nil, fmt.Errorf("new problem: vehicle %d has negative cost: %w", vi.ID, ErrInvalidInput)
		}
		for _, s := range []struct {
			what string
			stop Stop
		}{{"start", vi.Start}, {"end", vi.End}} {
			if s.stop.Window.Closes < s.stop.Window.Opens || s.stop.Service < 0 {
				return nil, fmt.Errorf("new problem: vehicle %d %s window or service: %w", vi.ID, s.what, ErrInvalidInput)
			}
		}
		v := Vehicle{
			Idx:       len(p.Vehicles),
			ID:        vi.ID,
			Capacity:  vi.Capacity,
			FixedCost: vi.FixedCost,
			VarCost:   vi.VarCost,
			Stops:     append([]int64(nil), vi.Stops...),
			orders:    idSet(vi.Orders),
		}
		if v.VarCost == 0 {
			v.VarCost = 1
		}
		start, err := p.addNode(vi.Start, KindStart, 0, -1, v.Idx)
		if err != nil {
			return nil, fmt.Errorf("new problem: vehicle %d: %w", vi.ID, err)
		}
		end, err := p.addNode(vi.End, KindEnd, 0, -1, v.Idx)
		if err != nil {
			return nil, fmt.Errorf("new problem: vehicle %d: %w", vi.ID, err)
		}
		v.Start, v.End = start, end
		p.Vehicles = append(p.Vehicles, v)
	}

	for _, oi := range orders {
		if _, dup := p.orderIdx[oi.ID]; dup {
			return nil, fmt.Errorf("new problem: duplicate order %d: %w", oi.ID, ErrInvalidInput)
		}
		if oi.Demand <= 0 || math.IsNaN(oi.Demand) {
			return nil, fmt.Errorf("new problem: order %d demand %v: %w", oi.ID, oi.Demand, ErrInvalidInput)
		}
		if err := validateStop(oi.ID, "pickup", oi.Pickup); err != nil {
			return nil, fmt.Errorf("new problem: %w", err)
		}
		if err := validateStop(oi.ID, "delivery", oi.Delivery); err != nil {
			return nil, fmt.Errorf("new problem: %w", err)
		}
		o := Order{
			Idx:      len(p.Orders),
			ID:       oi.ID,
			Demand:   oi.Demand,
			vehicles: idSet(oi.Vehicles),
		}
		pick, err := p.addNode(oi.Pickup, KindPickup, oi.Demand, o.Idx, -1)
		if err != nil {
			return nil, fmt.Errorf("new problem: order %d: %w", oi.ID, err)
		}
		drop, err := p.addNode(oi.Delivery, KindDelivery, -oi.Demand, o.Idx, -1)
		if err != nil {
			return nil, fmt.Errorf("new problem: order %d: %w", oi.ID, err)
		}
		o.Pickup, o.Delivery = pick, drop
		p.orderIdx[o.ID] = o.Idx
		p.Orders = append(p.Orders, o)
	}

	if err := p.checkFinite(); err != nil {
		return nil, err
	}
	p.buildCompatibility()
	return p, nil
}

func idSet(ids []int64) map[int64]struct{} {
	if len(ids) == 0 {
		return nil
	}
	s := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (p *Problem) addNode(s Stop, kind NodeKind, demand float64, order, vehicle int) (int, error) {
	cell, err := p.Matrix.Index(s.LocationID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", kind, err)
	}
	n := Node{
		Idx:     len(p.Nodes),
		ID:      s.LocationID,
		Kind:    kind,
		Window:  s.Window,
		Service: s.Service,
		Demand:  demand,
		Order:   order,
		Vehicle: vehicle,
		cell:    cell,
	}
	p.Nodes = append(p.Nodes, n)
	return n.Idx, nil
}

// checkFinite rejects a matrix with infinite cells between any two used locations.
func (p *Problem) checkFinite() error {
	used := map[int]int64{}
	for _, n := range p.Nodes {
		used[n.cell] = n.ID
	}
	cells := make([]int, 0, len(used))
	for c := range used {
		cells = append(cells, c)
	}
	sort.Ints(cells)
	for _, i := range cells {
		for _, j := range cells {
			if math.IsInf(p.Matrix.At(i, j), 0) {
				return fmt.Errorf("new problem: %d->%d: %w", used[i], used[j], ErrInfinity)
			}
		}
	}
	return nil
}

func (p *Problem) buildCompatibility() {
	p.compat = make([][]bool, len(p.Orders))
	p.infeasible = p.infeasible[:0]
	for oi := range p.Orders {
		row := make([]bool, len(p.Vehicles))
		served := false
		for vi := range p.Vehicles {
			row[vi] = p.servable(oi, vi)
			served = served || row[vi]
		}
		p.compat[oi] = row
		if !served {
			p.infeasible = append(p.infeasible, oi)
		}
	}
}

// servable checks start -> pickup -> delivery -> end for one order alone.
func (p *Problem) servable(oi, vi int) bool {
	o := &p.Orders[oi]
	v := &p.Vehicles[vi]
	if !o.AllowsVehicle(v.ID) || !v.AllowsOrder(o.ID) {
		return false
	}
	if o.Demand > v.Capacity+Epsilon {
		return false
	}
	path := [...]int{v.Start, o.Pickup, o.Delivery, v.End}
	t := p.Nodes[v.Start].Window.Opens
	_, t = p.Nodes[v.Start].Serve(t)
	for k := 1; k < len(path); k++ {
		t += p.Travel(path[k-1], path[k])
		n := &p.Nodes[path[k]]
		if !n.Reachable(t) {
			return false
		}
		_, t = n.Serve(t)
	}
	return true
}

// Travel returns the matrix cost between two node indices.
func (p *Problem) Travel(a, b int) float64 {
	return p.Matrix.At(p.Nodes[a].cell, p.Nodes[b].cell)
}

// Compatible reports whether order oi can be carried by vehicle vi at all.
func (p *Problem) Compatible(oi, vi int) bool { return p.compat[oi][vi] }

// Infeasible lists order indices no vehicle can serve.
func (p *Problem) Infeasible() []int { return append([]int(nil), p.infeasible...) }

// CompatiblePairs lists every order/vehicle combination that passes the
// capacity, restriction and isolated time-window checks, sorted by order id
// then vehicle id.
func (p *Problem) CompatiblePairs() []Pair {
	var out []Pair
	for oi := range p.Orders {
		for vi := range p.Vehicles {
			if p.compat[oi][vi] {
				out = append(out, Pair{OrderID: p.Orders[oi].ID, VehicleID: p.Vehicles[vi].ID})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderID != out[j].OrderID {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].VehicleID < out[j].VehicleID
	})
	return out
}

// OrderIndex maps an order id to its arena index.
func (p *Problem) OrderIndex(id int64) (int, bool) {
	i, ok := p.orderIdx[id]
	return i, ok
}

// VehicleIndex maps a vehicle id to its arena index.
func (p *Problem) VehicleIndex(id int64) (int, bool) { return p.Vehicles.ByID(id) }
