package opt

import (
	"fmt"
	"sort"

	"pdroute/internal/problem"
)

// ScheduleRow is one stop of one used vehicle, in visiting order.
type ScheduleRow struct {
	VehicleSeq int     `json:"vehicleSeq" yaml:"vehicleSeq"`
	VehicleID  int64   `json:"vehicleId" yaml:"vehicleId"`
	StopSeq    int     `json:"stopSeq" yaml:"stopSeq"`
	OrderID    int64   `json:"orderId" yaml:"orderId"` // -1 at depots
	StopID     int64   `json:"stopId" yaml:"stopId"`   // location id
	StopType   string  `json:"stopType" yaml:"stopType"`
	Cargo      float64 `json:"cargo" yaml:"cargo"`
	Travel     float64 `json:"travel" yaml:"travel"` // from the previous stop
	Arrival    float64 `json:"arrival" yaml:"arrival"`
	Wait       float64 `json:"wait" yaml:"wait"`
	Operation  float64 `json:"operation" yaml:"operation"` // start of service
	Service    float64 `json:"service" yaml:"service"`
	Departure  float64 `json:"departure" yaml:"departure"`
}

// RouteSummary aggregates one used vehicle.
type RouteSummary struct {
	VehicleID     int64   `json:"vehicleId"`
	Orders        int     `json:"orders"`
	Travel        float64 `json:"travel"`
	Wait          float64 `json:"wait"`
	Service       float64 `json:"service"`
	Duration      float64 `json:"duration"`
	Cost          float64 `json:"cost"`
	TWViolations  int     `json:"twViolations"`
	CapViolations int     `json:"capViolations"`
}

// Rows flattens the used routes of s into schedule rows.
func Rows(s *Solution) []ScheduleRow {
	p := s.p
	var rows []ScheduleRow
	seq := 0
	for ri := range s.routes {
		r := &s.routes[ri]
		if r.Empty() {
			continue
		}
		seq++
		v := &p.Vehicles[r.Vehicle]
		for k, ni := range r.Path {
			n := &p.Nodes[ni]
			orderID := int64(-1)
			if n.Order >= 0 {
				orderID = p.Orders[n.Order].ID
			}
			rows = append(rows, ScheduleRow{
				VehicleSeq: seq,
				VehicleID:  v.ID,
				StopSeq:    k + 1,
				OrderID:    orderID,
				StopID:     n.ID,
				StopType:   n.Kind.String(),
				Cargo:      r.load[k],
				Travel:     r.Leg(k),
				Arrival:    r.arrival[k],
				Wait:       r.wait[k],
				Operation:  r.arrival[k] + r.wait[k],
				Service:    n.Service,
				Departure:  r.departure[k],
			})
		}
	}
	return rows
}

// Summaries reports per-vehicle totals for the used routes of s. Violation
// counts are recomputed from the schedule and are zero for verified solutions.
func Summaries(s *Solution) []RouteSummary {
	p := s.p
	var out []RouteSummary
	for ri := range s.routes {
		r := &s.routes[ri]
		if r.Empty() {
			continue
		}
		v := &p.Vehicles[r.Vehicle]
		sum := RouteSummary{VehicleID: v.ID, Travel: r.Travel(), Cost: r.cost}
		for k, ni := range r.Path {
			n := &p.Nodes[ni]
			if n.Kind == problem.KindPickup {
				sum.Orders++
			}
			sum.Wait += r.wait[k]
			sum.Service += n.Service
			if !n.Reachable(r.arrival[k]) {
				sum.TWViolations++
			}
			if r.load[k] > v.Capacity+eps {
				sum.CapViolations++
			}
		}
		sum.Duration = r.departure[len(r.Path)-1] - r.departure[0]
		out = append(out, sum)
	}
	return out
}

// FromRows rebuilds a solution from rows produced by Rows for the same problem.
// Rows are grouped by vehicle and ordered by StopSeq; depot rows are optional.
// The result is verified, so rows describing an infeasible schedule fail with
// ErrInconsistent.
func FromRows(p *problem.Problem, rows []ScheduleRow, penalty float64) (*Solution, error) {
	byVehicle := map[int][]ScheduleRow{}
	for _, row := range rows {
		vi, ok := p.VehicleIndex(row.VehicleID)
		if !ok {
			return nil, fmt.Errorf("from rows: vehicle %d: %w", row.VehicleID, ErrRows)
		}
		byVehicle[vi] = append(byVehicle[vi], row)
	}
	s := newSolution(p, penalty)
	vehicles := make([]int, 0, len(byVehicle))
	for vi := range byVehicle {
		vehicles = append(vehicles, vi)
	}
	sort.Ints(vehicles)
	for _, vi := range vehicles {
		vr := byVehicle[vi]
		sort.SliceStable(vr, func(a, b int) bool { return vr[a].StopSeq < vr[b].StopSeq })
		v := &p.Vehicles[vi]
		path := []int{v.Start}
		for _, row := range vr {
			kind, ok := problem.ParseNodeKind(row.StopType)
			if !ok {
				return nil, fmt.Errorf("from rows: stop type %q: %w", row.StopType, ErrRows)
			}
			if kind == problem.KindStart || kind == problem.KindEnd {
				continue
			}
			oi, ok := p.OrderIndex(row.OrderID)
			if !ok {
				return nil, fmt.Errorf("from rows: order %d: %w", row.OrderID, ErrRows)
			}
			ni := p.Orders[oi].Pickup
			if kind == problem.KindDelivery {
				ni = p.Orders[oi].Delivery
			}
			path = append(path, ni)
		}
		path = append(path, v.End)
		for _, ni := range path[1 : len(path)-1] {
			if oi := p.Nodes[ni].Order; s.where[oi] >= 0 {
				return nil, fmt.Errorf("from rows: order %d on two vehicles: %w", p.Orders[oi].ID, ErrRows)
			}
		}
		s.load(vi, path)
	}
	if err := s.Verify(); err != nil {
		return nil, fmt.Errorf("from rows: %w", err)
	}
	return s, nil
}
