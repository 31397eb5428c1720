package problem

import "fmt"

// Stop is the caller-facing description of one end of an order.
type Stop struct {
	LocationID int64      `json:"locationId" yaml:"locationId"`
	Window     TimeWindow `json:"window" yaml:"window"`
	Service    float64    `json:"service" yaml:"service"`
}

// OrderInput is a validated pickup/delivery record.
type OrderInput struct {
	ID       int64   `json:"id" yaml:"id"`
	Demand   float64 `json:"demand" yaml:"demand"`
	Pickup   Stop    `json:"pickup" yaml:"pickup"`
	Delivery Stop    `json:"delivery" yaml:"delivery"`
	// Vehicles restricts the order to these vehicle ids when non-empty.
	Vehicles []int64 `json:"vehicles,omitempty" yaml:"vehicles,omitempty"`
}

// Order binds a pickup node and a delivery node.
type Order struct {
	Idx      int
	ID       int64
	Pickup   int // node index
	Delivery int // node index
	Demand   float64
	vehicles map[int64]struct{}
}

// AllowsVehicle reports whether the order's own restriction admits the vehicle id.
func (o *Order) AllowsVehicle(id int64) bool {
	if len(o.vehicles) == 0 {
		return true
	}
	_, ok := o.vehicles[id]
	return ok
}

func validateStop(orderID int64, what string, s Stop) error {
	if s.Window.Closes < s.Window.Opens {
		return fmt.Errorf("order %d %s: window [%v,%v] is empty: %w", orderID, what, s.Window.Opens, s.Window.Closes, ErrInvalidInput)
	}
	if s.Service < 0 {
		return fmt.Errorf("order %d %s: negative service %v: %w", orderID, what, s.Service, ErrInvalidInput)
	}
	return nil
}
