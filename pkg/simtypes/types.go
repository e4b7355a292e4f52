// Package simtypes holds the wire-level data model shared across agents:
// orders, message performatives, and their JSON bodies. Plain struct
// definitions only, no behavior — grounded on the teacher's pkg/types
// layering (a types package with doc comments and zero internal deps).
package simtypes

import "fmt"

// Status is the vehicle's explicit busy/idle state, replacing the source's
// use of XMPP presence (CHAT/AWAY) as a side channel (SPEC_FULL §9).
type Status string

const (
	StatusAvailable Status = "available"
	StatusBusy      Status = "busy"
)

// RouteStep is one hop of a vehicle's active route: the node visited and,
// if this hop services an order, that order's id. Preserves "the
// route-as-(node, order_id)-pair trick" (SPEC_FULL §9) so colocated
// pickups/drops at the same node can be discharged in sequence.
type RouteStep struct {
	NodeID  int
	OrderID int // 0 means "no order serviced at this hop"
}

// Order is the central work unit: a request to move Quantity units of
// Product from SenderLocation to ReceiverLocation on behalf of Sender
// (seller) and Receiver (buyer).
type Order struct {
	ID               int
	Product          string
	Quantity         int
	Sender           string // seller agent id
	Receiver         string // buyer agent id
	SenderLocation   int
	ReceiverLocation int

	// Precomputed at creation time from the live graph; advisory only —
	// the actual traversal uses the live graph, which may have changed.
	DeliverTime float64
	Fuel        float64
	Route       []int

	Started bool // pickup has occurred (source: "comecou")
}

func (o *Order) String() string {
	return fmt.Sprintf("Order(%d, %s x%d, %s->%s)", o.ID, o.Product, o.Quantity, o.Sender, o.Receiver)
}

// Performative names the message catalog from SPEC_FULL §6.
type Performative string

const (
	PerfStoreBuy             Performative = "store-buy"
	PerfWarehouseAccept      Performative = "warehouse-accept"
	PerfStoreConfirm         Performative = "store-confirm"
	PerfStoreDeny            Performative = "store-deny"
	PerfWarehouseBuy         Performative = "warehouse-buy"
	PerfSupplierAccept       Performative = "supplier-accept"
	PerfWarehouseConfirm     Performative = "warehouse-confirm"
	PerfWarehouseDeny        Performative = "warehouse-deny"
	PerfOrderProposal        Performative = "order-proposal"
	PerfVehicleProposal      Performative = "vehicle-proposal"
	PerfOrderConfirmation    Performative = "order-confirmation"
	PerfVehiclePickup        Performative = "vehicle-pickup"
	PerfVehicleDelivery      Performative = "vehicle-delivery"
	PerfArrival              Performative = "arrival"
	PerfTransit              Performative = "transit"
	PerfSimulateTraffic      Performative = "simulate_traffic"
	PerfTrafficEvents        Performative = "traffic_events"
)

// StoreBuyBody is the body of a store-buy / warehouse-accept /
// store-confirm / warehouse-buy / supplier-accept / warehouse-confirm
// message — all share this shape (SPEC_FULL §6).
type StoreBuyBody struct {
	RequestID int    `json:"request_id"`
	Quantity  int    `json:"quantity"`
	Product   string `json:"product"`
}

// DenyBody is the body of a store-deny / warehouse-deny message.
type DenyBody struct {
	RequestID int `json:"request_id"`
}

// VehicleProposalBody is the body of a vehicle-proposal message.
type VehicleProposalBody struct {
	OrderID      int     `json:"orderid"`
	CanFit       bool    `json:"can_fit"`
	DeliveryTime float64 `json:"delivery_time"`
	VehicleID    string  `json:"vehicle_id"`
}

// OrderConfirmationBody is the body of an order-confirmation message.
type OrderConfirmationBody struct {
	OrderID   int  `json:"orderid"`
	Confirmed bool `json:"confirmed"`
}

// order-proposal, vehicle-pickup, and vehicle-delivery all carry the full
// Order record as their body (SPEC_FULL §6) — no dedicated body struct for
// any of the three.

// ArrivalBody is the body of an arrival message fanned out by the
// scheduler; Vehicles is the list of vehicle ids that arrived at Time.
type ArrivalBody struct {
	Type     string   `json:"type"`
	Time     float64  `json:"time"`
	Vehicles []string `json:"vehicles"`
}

// EdgeUpdate describes one edge weight change delivered in a transit event.
type EdgeUpdate struct {
	Node1            int     `json:"node1"`
	Node2            int     `json:"node2"`
	Weight           float64 `json:"weight"`
	FuelConsumption  float64 `json:"fuel_consumption"`
}

// TransitBody is the body of a transit message.
type TransitBody struct {
	Type string `json:"type"`
	Time float64 `json:"time"`
	Data struct {
		Edges []EdgeUpdate `json:"edges"`
	} `json:"data"`
}

// SimulateTrafficBody is the body of a simulate_traffic request.
type SimulateTrafficBody struct {
	SimulationTime float64 `json:"simulation_time"`
	Requester      string  `json:"requester"`
}

// TrafficEvent is one entry in a traffic_events reply.
type TrafficEvent struct {
	Instant         int     `json:"instant"`
	Node1ID         int     `json:"node1_id"`
	Node2ID         int     `json:"node2_id"`
	NewWeight       float64 `json:"new_time"`
	NewFuelConsumption float64 `json:"new_fuel_consumption"`
}

// TrafficEventsBody is the body of a traffic_events message.
type TrafficEventsBody struct {
	Events []TrafficEvent `json:"events"`
}
