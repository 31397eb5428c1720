package problem

// VehicleInput is a validated vehicle record.
type VehicleInput struct {
	ID        int64   `json:"id" yaml:"id"`
	Capacity  float64 `json:"capacity" yaml:"capacity"`
	Start     Stop    `json:"start" yaml:"start"`
	End       Stop    `json:"end" yaml:"end"`
	FixedCost float64 `json:"fixedCost,omitempty" yaml:"fixedCost,omitempty"`
	// VarCost multiplies travel time; 1 when unset.
	VarCost float64 `json:"varCost,omitempty" yaml:"varCost,omitempty"`
	// Orders restricts the vehicle to these order ids when non-empty.
	Orders []int64 `json:"orders,omitempty" yaml:"orders,omitempty"`
	// Stops is an initial sequence of order ids: first occurrence picks up, second delivers.
	Stops []int64 `json:"stops,omitempty" yaml:"stops,omitempty"`
}

// Vehicle is immutable once the Problem is built.
type Vehicle struct {
	Idx       int
	ID        int64
	Capacity  float64
	Start     int // node index
	End       int // node index
	FixedCost float64
	VarCost   float64
	Stops     []int64
	orders    map[int64]struct{}
}

// AllowsOrder reports whether the vehicle's own restriction admits the order id.
func (v *Vehicle) AllowsOrder(id int64) bool {
	if len(v.orders) == 0 {
		return true
	}
	_, ok := v.orders[id]
	return ok
}

// RouteCost is the cost of driving travel time units while serving at least one order.
func (v *Vehicle) RouteCost(travel float64, serving bool) float64 {
	if !serving {
		return 0
	}
	return v.FixedCost + v.VarCost*travel
}

// Fleet is the ordered collection of vehicles.
type Fleet []Vehicle

// ByID finds a vehicle index by id.
func (f Fleet) ByID(id int64) (int, bool) {
	for i := range f {
		if f[i].ID == id {
			return i, true
		}
	}
	return -1, false
}
