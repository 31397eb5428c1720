package model

import (
	"time"

	"pdroute/internal/opt"
	"pdroute/internal/problem"
)

// Wire types for the solve service and the pdsolve problem file.

type StopIn struct {
	Location int64   `json:"location" yaml:"location"`
	Opens    float64 `json:"opens" yaml:"opens"`
	Closes   float64 `json:"closes" yaml:"closes"`
	Service  float64 `json:"service,omitempty" yaml:"service"`
}

type OrderIn struct {
	ID       int64   `json:"id" yaml:"id"`
	Demand   float64 `json:"demand" yaml:"demand"`
	Pickup   StopIn  `json:"pickup" yaml:"pickup"`
	Delivery StopIn  `json:"delivery" yaml:"delivery"`
	Vehicles []int64 `json:"vehicles,omitempty" yaml:"vehicles"`
}

type VehicleIn struct {
	ID        int64   `json:"id" yaml:"id"`
	Capacity  float64 `json:"capacity" yaml:"capacity"`
	Start     StopIn  `json:"start" yaml:"start"`
	End       StopIn  `json:"end" yaml:"end"`
	FixedCost float64 `json:"fixedCost,omitempty" yaml:"fixedCost"`
	VarCost   float64 `json:"varCost,omitempty" yaml:"varCost"`
	Orders    []int64 `json:"orders,omitempty" yaml:"orders"`
	Stops     []int64 `json:"stops,omitempty" yaml:"stops"`
}

type CellIn struct {
	From int64   `json:"from" yaml:"from"`
	To   int64   `json:"to" yaml:"to"`
	Cost float64 `json:"cost" yaml:"cost"`
}

// SolveRequest is the body of POST /v1/solve and the layout of a pdsolve problem file.
type SolveRequest struct {
	Orders   []OrderIn   `json:"orders" yaml:"orders"`
	Vehicles []VehicleIn `json:"vehicles" yaml:"vehicles"`
	Matrix   []CellIn    `json:"matrix" yaml:"matrix"`
	// Factor multiplies every matrix cost; 0 means 1.
	Factor float64 `json:"factor,omitempty" yaml:"factor"`
	// Config overrides solver options by their JSON name; maxRunTime takes a duration string.
	Config         map[string]any `json:"config,omitempty" yaml:"config"`
	Seeds          []int64        `json:"seeds,omitempty" yaml:"seeds"`
	Async          bool           `json:"async,omitempty" yaml:"-"`
	CallbackURL    string         `json:"callbackUrl,omitempty" yaml:"-"`
	CallbackSecret string         `json:"callbackSecret,omitempty" yaml:"-"`
}

// Cells converts the matrix to solver cells.
func (r *SolveRequest) Cells() []problem.Cell {
	out := make([]problem.Cell, len(r.Matrix))
	for i, c := range r.Matrix {
		out[i] = problem.Cell{From: c.From, To: c.To, Cost: c.Cost}
	}
	return out
}

// Inputs converts orders and vehicles to solver inputs.
func (r *SolveRequest) Inputs() ([]problem.OrderInput, []problem.VehicleInput) {
	orders := make([]problem.OrderInput, len(r.Orders))
	for i, o := range r.Orders {
		orders[i] = problem.OrderInput{
			ID:       o.ID,
			Demand:   o.Demand,
			Pickup:   o.Pickup.stop(),
			Delivery: o.Delivery.stop(),
			Vehicles: o.Vehicles,
		}
	}
	vehicles := make([]problem.VehicleInput, len(r.Vehicles))
	for i, v := range r.Vehicles {
		vehicles[i] = problem.VehicleInput{
			ID:        v.ID,
			Capacity:  v.Capacity,
			Start:     v.Start.stop(),
			End:       v.End.stop(),
			FixedCost: v.FixedCost,
			VarCost:   v.VarCost,
			Orders:    v.Orders,
			Stops:     v.Stops,
		}
	}
	return orders, vehicles
}

func (s StopIn) stop() problem.Stop {
	return problem.Stop{
		LocationID: s.Location,
		Window:     problem.TimeWindow{Opens: s.Opens, Closes: s.Closes},
		Service:    s.Service,
	}
}

// Run statuses.
const (
	RunRunning = "running"
	RunDone    = "done"
	RunFailed  = "failed"
)

// SeedRun is one independent search of a run.
type SeedRun struct {
	Seed       int64   `json:"seed"`
	Cost       float64 `json:"cost"`
	Iterations int     `json:"iterations"`
	Reason     string  `json:"reason"`
}

// Run is a persisted solve and its best result.
type Run struct {
	ID          string             `json:"id"`
	TenantID    string             `json:"tenantId"`
	Status      string             `json:"status"`
	Error       string             `json:"error,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	FinishedAt  *time.Time         `json:"finishedAt,omitempty"`
	Orders      int                `json:"orders"`
	Vehicles    int                `json:"vehicles"`
	Seed        int64              `json:"seed"`
	Cost        float64            `json:"cost"`
	Iterations  int                `json:"iterations"`
	Reason      string             `json:"reason,omitempty"`
	ElapsedMs   int64              `json:"elapsedMs"`
	Unassigned  []int64            `json:"unassigned"`
	Infeasible  []int64            `json:"infeasible"`
	Rows        []opt.ScheduleRow  `json:"rows,omitempty"`
	Summaries   []opt.RouteSummary `json:"summaries,omitempty"`
	Stats       opt.Stats          `json:"stats"`
	Seeds       []SeedRun          `json:"seeds,omitempty"`
	CallbackURL string             `json:"callbackUrl,omitempty"`
}

// Brief drops the schedule, for listings.
func (r Run) Brief() Run {
	r.Rows = nil
	r.Summaries = nil
	return r
}

// Finished reports whether the run reached a terminal status.
func (r Run) Finished() bool { return r.Status == RunDone || r.Status == RunFailed }
