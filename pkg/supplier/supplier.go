// Package supplier implements the Supplier agent: as a Warehouse, but with
// conceptually infinite stock, so every warehouse-buy is accepted
// immediately. Grounded on supplier.py's ReceiveBuyRequest/AcceptBuyRequest/
// ReceiveWarehouseConfirmation chain for the accept-everything half, and
// reuses pkg/warehouse's vehicle-assignment shape almost verbatim for the
// "proceeds identically after warehouse-confirm" half spec.md §4.7 calls
// for — both packages share pkg/negotiation's PickVehicle for that reason.
package supplier

import (
	"sync"
	"time"

	"github.com/cuemby/fleetsim/pkg/bus"
	"github.com/cuemby/fleetsim/pkg/graph"
	"github.com/cuemby/fleetsim/pkg/log"
	"github.com/cuemby/fleetsim/pkg/metrics"
	"github.com/cuemby/fleetsim/pkg/negotiation"
	"github.com/cuemby/fleetsim/pkg/simtypes"
	"github.com/google/uuid"
)

// Config bundles a Supplier's fixed identity, contacts, and tuning. There
// is no stock/capacity field: supply is infinite (SPEC_FULL §4.7).
type Config struct {
	ID       string
	Location int

	VehicleTimeout time.Duration // T_veh

	VehicleIDs    []string
	PeerLocations map[string]int

	Graph    *graph.Graph
	WeightKg float64
}

type pendingAccept struct {
	warehouseID string
	product     string
	quantity    int
}

type pendingOrder struct {
	order *simtypes.Order
}

type vehicleAssignment struct {
	sessionID  uuid.UUID
	orderID    int
	attempt    int
	deadline   time.Time
	candidates []negotiation.VehicleCandidate
}

// Supplier is the agent described in SPEC_FULL §4.7.
type Supplier struct {
	bus   *bus.Bus
	cfg   Config
	graph *graph.Graph

	mu             sync.Mutex
	nextOrderID    int
	pendingAccepts map[int]pendingAccept
	pendingOrders  map[int]pendingOrder
	assignments    map[int]*vehicleAssignment

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Supplier bound to bus b and connects its mailbox.
func New(b *bus.Bus, cfg Config) *Supplier {
	b.Connect(cfg.ID)
	return &Supplier{
		bus:            b,
		cfg:            cfg,
		graph:          cfg.Graph,
		pendingAccepts: make(map[int]pendingAccept),
		pendingOrders:  make(map[int]pendingOrder),
		assignments:    make(map[int]*vehicleAssignment),
		stopCh:         make(chan struct{}),
	}
}

// Start launches the receive loop and the periodic tick loop.
func (s *Supplier) Start() {
	s.wg.Add(2)
	go s.receiveLoop()
	go s.tickLoop()
}

// Stop halts both loops and waits for them to exit.
func (s *Supplier) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Supplier) receiveLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		msg, ok := s.bus.Receive(s.cfg.ID, 100*time.Millisecond)
		if !ok {
			continue
		}
		switch msg.Performative {
		case simtypes.PerfWarehouseBuy:
			s.handleWarehouseBuy(msg)
		case simtypes.PerfWarehouseConfirm:
			s.handleWarehouseConfirm(msg)
		case simtypes.PerfWarehouseDeny:
			s.handleWarehouseDeny(msg)
		case simtypes.PerfVehicleProposal:
			s.handleVehicleProposal(msg)
		case simtypes.PerfVehiclePickup:
			s.handleVehiclePickup(msg)
		case simtypes.PerfArrival, simtypes.PerfTransit:
			// Passive: a supplier has no position of its own to update.
		default:
			log.Warn("supplier: unexpected message performative, discarding")
		}
	}
}

// handleWarehouseBuy always accepts: stock is infinite, so there is no
// availability check here, unlike pkg/warehouse.handleStoreBuy.
func (s *Supplier) handleWarehouseBuy(msg bus.Message) {
	var body simtypes.StoreBuyBody
	if err := msg.Decode(&body); err != nil {
		log.Warn("supplier: malformed warehouse-buy, discarding")
		return
	}

	s.mu.Lock()
	s.pendingAccepts[body.RequestID] = pendingAccept{warehouseID: msg.From, product: body.Product, quantity: body.Quantity}
	s.mu.Unlock()

	_ = s.bus.Send(s.cfg.ID, msg.From, simtypes.PerfSupplierAccept, simtypes.StoreBuyBody{
		RequestID: body.RequestID, Quantity: body.Quantity, Product: body.Product,
	})
}

func (s *Supplier) handleWarehouseDeny(msg bus.Message) {
	var body simtypes.DenyBody
	if err := msg.Decode(&body); err != nil {
		log.Warn("supplier: malformed warehouse-deny, discarding")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pendingAccepts, body.RequestID)
}

// handleWarehouseConfirm creates the sale order, records the supplied
// quantity (advisory only — SPEC_FULL §9's total_supplied resolution), and
// kicks off a vehicle-assignment sub-negotiation identical to pkg/warehouse's.
func (s *Supplier) handleWarehouseConfirm(msg bus.Message) {
	var body simtypes.StoreBuyBody
	if err := msg.Decode(&body); err != nil {
		log.Warn("supplier: malformed warehouse-confirm, discarding")
		return
	}

	s.mu.Lock()
	accept, ok := s.pendingAccepts[body.RequestID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.pendingAccepts, body.RequestID)

	s.nextOrderID++
	order := &simtypes.Order{
		ID:               s.nextOrderID,
		Product:          body.Product,
		Quantity:         body.Quantity,
		Sender:           s.cfg.ID,
		Receiver:         msg.From,
		SenderLocation:   s.cfg.Location,
		ReceiverLocation: s.cfg.PeerLocations[msg.From],
	}
	if s.graph != nil {
		res := s.graph.Dijkstra(order.SenderLocation, order.ReceiverLocation, s.cfg.WeightKg)
		order.Route, order.DeliverTime, order.Fuel = res.Path, res.TotalTime, res.TotalFuel
	}
	s.pendingOrders[order.ID] = pendingOrder{order: order}

	assignment := &vehicleAssignment{
		sessionID: uuid.New(),
		orderID:   order.ID,
		deadline:  time.Now().Add(s.cfg.VehicleTimeout),
	}
	s.assignments[order.ID] = assignment
	s.mu.Unlock()

	metrics.SupplierTotalSuppliedTotal.WithLabelValues(s.cfg.ID, accept.product).Add(float64(accept.quantity))

	log.WithComponent("supplier").With().
		Str("supplier_id", s.cfg.ID).
		Str("session_id", assignment.sessionID.String()).
		Int("order_id", order.ID).
		Logger().Debug().Msg("broadcasting order-proposal to vehicles")
	s.bus.Broadcast(s.cfg.ID, s.cfg.VehicleIDs, simtypes.PerfOrderProposal, order)
}

func (s *Supplier) handleVehicleProposal(msg bus.Message) {
	var body simtypes.VehicleProposalBody
	if err := msg.Decode(&body); err != nil {
		log.Warn("supplier: malformed vehicle-proposal, discarding")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	assignment, ok := s.assignments[body.OrderID]
	if !ok {
		return
	}
	assignment.candidates = append(assignment.candidates, negotiation.VehicleCandidate{
		VehicleID:    body.VehicleID,
		CanFit:       body.CanFit,
		DeliveryTime: body.DeliveryTime,
	})
}

// handleVehiclePickup clears the pending order. There is no stock to
// decrement — supply is infinite — unlike pkg/warehouse's handler.
func (s *Supplier) handleVehiclePickup(msg bus.Message) {
	var order simtypes.Order
	if err := msg.Decode(&order); err != nil {
		log.Warn("supplier: malformed vehicle-pickup, discarding")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pendingOrders, order.ID)
}

func (s *Supplier) tickLoop() {
	defer s.wg.Done()
	interval := s.cfg.VehicleTimeout
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepAssignmentDeadlines()
		}
	}
}

// sweepAssignmentDeadlines is identical in shape to
// pkg/warehouse.sweepAssignmentDeadlines: retry once on a zero-candidate
// timeout, then give up; otherwise pick the winning vehicle and notify all
// candidates.
func (s *Supplier) sweepAssignmentDeadlines() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for orderID, a := range s.assignments {
		if time.Now().Before(a.deadline) {
			continue
		}
		if len(a.candidates) == 0 {
			if a.attempt == 0 {
				a.attempt++
				a.deadline = time.Now().Add(s.cfg.VehicleTimeout)
				if order, ok := s.pendingOrders[orderID]; ok {
					s.bus.Broadcast(s.cfg.ID, s.cfg.VehicleIDs, simtypes.PerfOrderProposal, order.order)
				}
				continue
			}
			delete(s.assignments, orderID)
			metrics.NegotiationOutcomesTotal.WithLabelValues("vehicle-assignment", "unassignable").Inc()
			continue
		}

		winner, _ := negotiation.PickVehicle(a.candidates)
		for _, c := range a.candidates {
			_ = s.bus.Send(s.cfg.ID, c.VehicleID, simtypes.PerfOrderConfirmation, simtypes.OrderConfirmationBody{
				OrderID: orderID, Confirmed: c.VehicleID == winner.VehicleID,
			})
		}
		delete(s.assignments, orderID)
		metrics.NegotiationOutcomesTotal.WithLabelValues("vehicle-assignment", "assigned").Inc()
	}
}
