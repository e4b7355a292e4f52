// Package vehicle implements the Vehicle agent: a mailbox-driven worker
// that negotiates orders with warehouses/suppliers, plans routes with
// pkg/routing, and walks its route to completion as arrival and transit
// events arrive from the scheduler. Grounded on two teacher sources: the
// mutex-guarded map-of-state shape of pkg/worker/worker.go (Worker{...
// containers map[string]*types.Container, stopCh ...} generalizes to
// Vehicle{... pendingConfirmations map[int]*pendingOrder, stopCh ...}) and
// veiculos/veiculos.py's three behaviours — ReceiveOrdersBehaviour,
// WaitConfirmationBehaviour, MovementBehaviour — for the state machine
// itself.
package vehicle

import (
	"sync"
	"time"

	"github.com/cuemby/fleetsim/pkg/bus"
	"github.com/cuemby/fleetsim/pkg/graph"
	"github.com/cuemby/fleetsim/pkg/log"
	"github.com/cuemby/fleetsim/pkg/metrics"
	"github.com/cuemby/fleetsim/pkg/routing"
	"github.com/cuemby/fleetsim/pkg/simtypes"
)

// pendingOrder is one order awaiting the seller's order-confirmation,
// keyed by order id in Vehicle.pendingConfirmations.
type pendingOrder struct {
	order     *simtypes.Order
	canFit    bool
	delivery  float64
	sellerID  string
}

// Config bundles a Vehicle's fixed identity and tuning.
type Config struct {
	ID              string
	MaxFuel         float64
	Capacity        int
	MaxOrders       int
	WeightKg        float64
	StartLocation   int
}

// Vehicle is the agent described in SPEC_FULL §4.4.
type Vehicle struct {
	bus     *bus.Bus
	cfg     Config
	graph   *graph.Graph
	planner *routing.Planner

	mu                   sync.Mutex
	status               simtypes.Status
	currentLocation      int
	currentFuel          float64
	currentLoad          int
	nextNode             int
	timeToFinishTask     float64
	committedOrders      []*simtypes.Order
	pendingOrders        []*simtypes.Order
	activeRoute          []simtypes.RouteStep
	pendingConfirmations map[int]*pendingOrder

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Vehicle bound to bus b and graph g, and connects its mailbox.
func New(b *bus.Bus, g *graph.Graph, cfg Config) *Vehicle {
	b.Connect(cfg.ID)
	return &Vehicle{
		bus:                  b,
		cfg:                  cfg,
		graph:                g,
		planner:              routing.NewPlanner(g, cfg.WeightKg),
		status:               simtypes.StatusAvailable,
		currentLocation:      cfg.StartLocation,
		currentFuel:          cfg.MaxFuel,
		pendingConfirmations: make(map[int]*pendingOrder),
		stopCh:               make(chan struct{}),
	}
}

// Start launches the vehicle's receive loop.
func (v *Vehicle) Start() {
	v.wg.Add(1)
	go v.receiveLoop()
}

// Stop halts the receive loop and waits for it to exit.
func (v *Vehicle) Stop() {
	close(v.stopCh)
	v.wg.Wait()
}

func (v *Vehicle) receiveLoop() {
	defer v.wg.Done()
	for {
		select {
		case <-v.stopCh:
			return
		default:
		}
		msg, ok := v.bus.Receive(v.cfg.ID, 100*time.Millisecond)
		if !ok {
			continue
		}
		switch msg.Performative {
		case simtypes.PerfOrderProposal:
			v.handleOrderProposal(msg)
		case simtypes.PerfOrderConfirmation:
			v.handleOrderConfirmation(msg)
		case simtypes.PerfArrival:
			v.handleArrival(msg)
		case simtypes.PerfTransit:
			v.handleTransit(msg)
		default:
			log.Warn("vehicle: unexpected message performative, discarding")
		}
	}
}

func (v *Vehicle) handleOrderProposal(msg bus.Message) {
	order := &simtypes.Order{}
	if err := msg.Decode(order); err != nil {
		log.Warn("vehicle: malformed order-proposal, discarding")
		return
	}

	// The sender's advisory Route/DeliverTime/Fuel reflect the graph at
	// proposal time; recompute against this vehicle's own live graph.
	res := v.graph.Dijkstra(order.SenderLocation, order.ReceiverLocation, v.cfg.WeightKg)
	order.Route = res.Path
	order.DeliverTime = res.TotalTime
	order.Fuel = res.TotalFuel

	v.mu.Lock()
	canFit, deliveryTime := v.canFitInCurrentRoute(order)
	v.pendingConfirmations[order.ID] = &pendingOrder{order: order, canFit: canFit, delivery: deliveryTime, sellerID: msg.From}
	v.mu.Unlock()

	_ = v.bus.Send(v.cfg.ID, msg.From, simtypes.PerfVehicleProposal, simtypes.VehicleProposalBody{
		OrderID:      order.ID,
		CanFit:       canFit,
		DeliveryTime: deliveryTime,
		VehicleID:    v.cfg.ID,
	})
}

// canFitInCurrentRoute walks the active route simulating load, as
// veiculos.py's can_fit_in_current_route does: if the vehicle is idle, the
// order always fits; otherwise it walks the (node, order_id) pairs,
// tracking cumulative time and load, inserting the proposed pickup at its
// sender location and failing the instant load would exceed capacity.
func (v *Vehicle) canFitInCurrentRoute(order *simtypes.Order) (bool, float64) {
	if v.status == simtypes.StatusAvailable {
		return true, order.DeliverTime
	}

	load := v.currentLoad
	picked, delivered := false, false
	cumulative := 0.0

	for i, step := range v.activeRoute {
		if i > 0 {
			prev := v.activeRoute[i-1]
			cumulative += v.graph.Dijkstra(prev.NodeID, step.NodeID, v.cfg.WeightKg).TotalTime
		}

		if step.NodeID == order.SenderLocation && !picked {
			if load+order.Quantity > v.cfg.Capacity {
				return false, v.futureDeliveryTime(order)
			}
			load += order.Quantity
			picked = true
		} else if step.NodeID == order.ReceiverLocation && picked && !delivered {
			return true, cumulative
		}

		if step.OrderID != 0 {
			if existing := v.findCommittedOrder(step.OrderID); existing != nil {
				if step.NodeID == existing.SenderLocation {
					if load+existing.Quantity > v.cfg.Capacity {
						return false, v.futureDeliveryTime(order)
					}
					load += existing.Quantity
				} else if step.NodeID == existing.ReceiverLocation {
					load -= existing.Quantity
				}
			}
		}
	}
	return false, v.futureDeliveryTime(order)
}

func (v *Vehicle) findCommittedOrder(id int) *simtypes.Order {
	for _, o := range v.committedOrders {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// futureDeliveryTime computes the remaining time on the current route plus
// an A* plan over pending_orders+order from the route's final location
// (veiculos.py's calculate_future_delivery_time).
func (v *Vehicle) futureDeliveryTime(order *simtypes.Order) float64 {
	finalLocation := v.currentLocation
	if len(v.activeRoute) > 0 {
		finalLocation = v.activeRoute[len(v.activeRoute)-1].NodeID
	}
	future := append(append([]*simtypes.Order{}, v.pendingOrders...), order)
	res := v.planner.Plan(finalLocation, future, v.cfg.Capacity, v.cfg.MaxFuel)
	return v.timeToFinishTask + res.TotalTime
}

func (v *Vehicle) handleOrderConfirmation(msg bus.Message) {
	var body simtypes.OrderConfirmationBody
	if err := msg.Decode(&body); err != nil {
		log.Warn("vehicle: malformed order-confirmation, discarding")
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	pending, ok := v.pendingConfirmations[body.OrderID]
	if !ok {
		log.Warn("vehicle: order-confirmation for unknown order id, discarding")
		return
	}
	delete(v.pendingConfirmations, body.OrderID)

	if !body.Confirmed {
		return
	}

	if pending.canFit {
		v.committedOrders = append(v.committedOrders, pending.order)
		v.recalculateRoute()
	} else {
		v.pendingOrders = append(v.pendingOrders, pending.order)
	}
	v.status = simtypes.StatusBusy
	metrics.VehicleLoad.WithLabelValues(v.cfg.ID).Set(float64(v.currentLoad))
}

// recalculateRoute replans the active route over every committed order from
// the vehicle's current location.
func (v *Vehicle) recalculateRoute() {
	if len(v.committedOrders) == 0 {
		return
	}
	res := v.planner.Plan(v.currentLocation, v.committedOrders, v.cfg.Capacity, v.cfg.MaxFuel)
	v.activeRoute = res.Route
	v.timeToFinishTask = res.TotalTime
}

func (v *Vehicle) handleArrival(msg bus.Message) {
	var body simtypes.ArrivalBody
	if err := msg.Decode(&body); err != nil {
		log.Warn("vehicle: malformed arrival message, discarding")
		return
	}
	arrived := false
	for _, id := range body.Vehicles {
		if id == v.cfg.ID {
			arrived = true
			break
		}
	}
	if !arrived {
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.activeRoute) == 0 {
		return
	}
	step := v.activeRoute[0]
	v.activeRoute = v.activeRoute[1:]
	v.currentLocation = step.NodeID
	v.processNodeArrival(step.NodeID, step.OrderID)

	for len(v.activeRoute) > 0 && v.activeRoute[0].NodeID == v.currentLocation {
		next := v.activeRoute[0]
		v.activeRoute = v.activeRoute[1:]
		v.processNodeArrival(next.NodeID, next.OrderID)
	}

	if len(v.activeRoute) == 0 {
		if len(v.pendingOrders) == 0 {
			v.status = simtypes.StatusAvailable
			return
		}
		res := v.planner.Plan(v.currentLocation, v.pendingOrders, v.cfg.Capacity, v.cfg.MaxFuel)
		v.activeRoute = res.Route
		v.timeToFinishTask = res.TotalTime
		v.committedOrders = append([]*simtypes.Order{}, v.pendingOrders...)
		v.pendingOrders = nil
	}

	if len(v.activeRoute) > 0 {
		v.nextNode = v.activeRoute[0].NodeID
		res := v.graph.Dijkstra(v.currentLocation, v.nextNode, v.cfg.WeightKg)
		v.timeToFinishTask = res.TotalTime
	}
}

// processNodeArrival handles one (node, order_id) pair from the active
// route: pickup if this is the order's sender location and it hasn't
// started, delivery if it's the receiver location and it has.
func (v *Vehicle) processNodeArrival(nodeID, orderID int) {
	if orderID == 0 {
		return
	}
	var order *simtypes.Order
	for _, o := range v.committedOrders {
		if o.ID == orderID {
			order = o
			break
		}
	}
	if order == nil {
		return
	}

	switch {
	case nodeID == order.SenderLocation && !order.Started:
		v.currentLoad += order.Quantity
		v.currentFuel = v.cfg.MaxFuel
		order.Started = true
		metrics.VehicleLoad.WithLabelValues(v.cfg.ID).Set(float64(v.currentLoad))
		metrics.VehicleFuel.WithLabelValues(v.cfg.ID).Set(v.currentFuel)
		_ = v.bus.Send(v.cfg.ID, order.Sender, simtypes.PerfVehiclePickup, order)
	case nodeID == order.ReceiverLocation && order.Started:
		v.currentLoad -= order.Quantity
		v.currentFuel = v.cfg.MaxFuel
		v.committedOrders = removeOrder(v.committedOrders, order.ID)
		metrics.VehicleLoad.WithLabelValues(v.cfg.ID).Set(float64(v.currentLoad))
		metrics.VehicleFuel.WithLabelValues(v.cfg.ID).Set(v.currentFuel)
		metrics.VehicleOrdersCompletedTotal.WithLabelValues(v.cfg.ID).Inc()
		_ = v.bus.Send(v.cfg.ID, order.Receiver, simtypes.PerfVehicleDelivery, order)
	}
}

func removeOrder(orders []*simtypes.Order, id int) []*simtypes.Order {
	out := orders[:0:0]
	for _, o := range orders {
		if o.ID != id {
			out = append(out, o)
		}
	}
	return out
}

func (v *Vehicle) handleTransit(msg bus.Message) {
	var body simtypes.TransitBody
	if err := msg.Decode(&body); err != nil {
		log.Warn("vehicle: malformed transit message, discarding")
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for _, e := range body.Data.Edges {
		if edge := v.graph.GetEdge(e.Node1, e.Node2); edge != nil {
			edge.Weight = e.Weight
		}
	}

	if len(v.activeRoute) == 0 {
		return
	}
	v.currentLocation = v.advanceByDelta(body.Time)

	if len(v.activeRoute) > 0 {
		v.nextNode = v.activeRoute[0].NodeID
		res := v.graph.Dijkstra(v.currentLocation, v.nextNode, v.cfg.WeightKg)
		v.timeToFinishTask = res.TotalTime
	}
}

// advanceByDelta walks the Dijkstra route from the current location to the
// next pending route node, consuming edge weights until Δt is exhausted or
// the route completes. If Δt runs out mid-edge, the vehicle stays at the
// last fully-reached node — no fractional positions
// (veiculos.py's update_location_and_time).
func (v *Vehicle) advanceByDelta(delta float64) int {
	nextNodeID := v.activeRoute[0].NodeID
	res := v.graph.Dijkstra(v.currentLocation, nextNodeID, v.cfg.WeightKg)
	route := res.Path
	if len(route) == 0 {
		return v.currentLocation
	}

	remaining := delta
	pos := v.currentLocation
	for i := 0; i+1 < len(route) && remaining > 0; i++ {
		edge := v.graph.GetEdge(route[i], route[i+1])
		if edge == nil {
			break
		}
		if remaining >= edge.Weight {
			pos = route[i+1]
			remaining -= edge.Weight
		} else {
			break
		}
	}
	return pos
}
