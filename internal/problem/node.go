package problem

import "math"

// NodeKind tells what a vehicle does at a node.
type NodeKind uint8

const (
	KindStart NodeKind = iota
	KindPickup
	KindDelivery
	KindEnd
)

func (k NodeKind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindPickup:
		return "pickup"
	case KindDelivery:
		return "delivery"
	case KindEnd:
		return "end"
	}
	return "unknown"
}

// ParseNodeKind is the inverse of NodeKind.String.
func ParseNodeKind(s string) (NodeKind, bool) {
	switch s {
	case "start":
		return KindStart, true
	case "pickup":
		return KindPickup, true
	case "delivery":
		return KindDelivery, true
	case "end":
		return KindEnd, true
	}
	return 0, false
}

// TimeWindow is the inclusive interval in which service may start.
type TimeWindow struct {
	Opens  float64 `json:"opens" yaml:"opens"`
	Closes float64 `json:"closes" yaml:"closes"`
}

// Node is a time-windowed visit. Orders own a pickup and a delivery node,
// vehicles own a start and an end node.
type Node struct {
	Idx     int
	ID      int64 // location id, the matrix key
	Kind    NodeKind
	Window  TimeWindow
	Service float64
	Demand  float64 // +demand at pickups, -demand at deliveries
	Order   int     // owning order, -1 for depots
	Vehicle int     // owning vehicle, -1 for order nodes
	cell    int
}

// IsDepot reports whether the node is a vehicle start or end.
func (n *Node) IsDepot() bool { return n.Order < 0 }

// Reachable reports whether arriving at t is within the window.
func (n *Node) Reachable(t float64) bool { return t <= n.Window.Closes+Epsilon }

// Serve returns the waiting time and departure time when arriving at t.
func (n *Node) Serve(arrival float64) (wait, departure float64) {
	start := math.Max(arrival, n.Window.Opens)
	return start - arrival, start + n.Service
}

// Epsilon absorbs floating point noise in time and load comparisons.
const Epsilon = 1e-9
