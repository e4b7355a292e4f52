// Package warehouse implements the Warehouse agent: holds per-product
// stock, answers store buy requests, keeps stock topped up from suppliers,
// and assigns a vehicle to every confirmed sale. Grounded on two teacher
// sources: warehouse.py's ReceiveBuyRequest/AcceptBuyRequest/
// ReceiveConfirmation chain for the store-facing half (the prototype's
// AssignVehicle/BuyMaterial behaviours were left as stubs — their bodies
// come from spec.md §4.5), and pkg/reconciler/reconciler.go's
// ticker+stopCh shape for the periodic resupply check and negotiation
// timeout sweep.
package warehouse

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

// Config bundles a Warehouse's fixed identity, contacts, and tuning.
type Config struct {
	ID       string
	Location int

	InitialStock          map[string]int
	MaxCapacity           int
	ResupplyThreshold     int
	ResupplyBatch         int
	ResupplyCheckInterval time.Duration

	NegotiationTimeout time.Duration // T_neg, for the outbound supplier buy
	VehicleTimeout     time.Duration // T_veh, for vehicle assignment

	SupplierIDs []string
	VehicleIDs  []string

	// PeerLocations resolves a facility agent id to its fixed graph node.
	// Facility placement is static simulation setup, not something agents
	// negotiate over the wire, so this is known at construction time
	// rather than discovered through messages.
	PeerLocations map[string]int

	Graph    *graph.Graph
	WeightKg float64
}

type reservation struct {
	storeID  string
	product  string
	quantity int
}

type pendingOrder struct {
	order *simtypes.Order
}

type outboundBuy struct {
	sessionID  uuid.UUID
	requestID  int
	product    string
	quantity   int
	deadline   time.Time
	candidates []negotiation.SellerCandidate
}

type vehicleAssignment struct {
	sessionID  uuid.UUID
	orderID    int
	attempt    int
	deadline   time.Time
	candidates []negotiation.VehicleCandidate
}

// Warehouse is the agent described in SPEC_FULL §4.5.
type Warehouse struct {
	bus   *bus.Bus
	cfg   Config
	graph *graph.Graph

	mu            sync.Mutex
	stock         map[string]int
	reserved      map[string]int
	nextRequestID int
	nextOrderID   int
	reservations  map[int]reservation
	pendingOrders map[int]pendingOrder
	outbound      *outboundBuy
	assignments   map[int]*vehicleAssignment

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Warehouse bound to bus b, connects its mailbox, and seeds
// its stock from cfg.InitialStock.
func New(b *bus.Bus, cfg Config) *Warehouse {
	b.Connect(cfg.ID)
	stock := make(map[string]int, len(cfg.InitialStock))
	reserved := make(map[string]int, len(cfg.InitialStock))
	for product, qty := range cfg.InitialStock {
		stock[product] = qty
		reserved[product] = 0
	}
	w := &Warehouse{
		bus:           b,
		cfg:           cfg,
		graph:         cfg.Graph,
		stock:         stock,
		reserved:      reserved,
		reservations:  make(map[int]reservation),
		pendingOrders: make(map[int]pendingOrder),
		assignments:   make(map[int]*vehicleAssignment),
		stopCh:        make(chan struct{}),
	}
	for product := range stock {
		metrics.WarehouseStock.WithLabelValues(cfg.ID, product).Set(float64(stock[product]))
		metrics.WarehouseReserved.WithLabelValues(cfg.ID, product).Set(0)
	}
	return w
}

// Start launches the receive loop and the periodic tick loop.
func (w *Warehouse) Start() {
	w.wg.Add(2)
	go w.receiveLoop()
	go w.tickLoop()
}

// Stop halts both loops and waits for them to exit.
func (w *Warehouse) Stop() {
	close(w.stopCh)
	w.wg.Wait()
}

func (w *Warehouse) receiveLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		default:
		}
		msg, ok := w.bus.Receive(w.cfg.ID, 100*time.Millisecond)
		if !ok {
			continue
		}
		switch msg.Performative {
		case simtypes.PerfStoreBuy:
			w.handleStoreBuy(msg)
		case simtypes.PerfStoreConfirm:
			w.handleStoreConfirm(msg)
		case simtypes.PerfStoreDeny:
			w.handleStoreDeny(msg)
		case simtypes.PerfSupplierAccept:
			w.handleSupplierAccept(msg)
		case simtypes.PerfVehicleProposal:
			w.handleVehicleProposal(msg)
		case simtypes.PerfVehiclePickup:
			w.handleVehiclePickup(msg)
		case simtypes.PerfVehicleDelivery:
			w.handleVehicleDelivery(msg)
		case simtypes.PerfArrival, simtypes.PerfTransit:
			// Passive: a warehouse has no position of its own to update.
		default:
			log.Warn("warehouse: unexpected message performative, discarding")
		}
	}
}

func (w *Warehouse) handleStoreBuy(msg bus.Message) {
	var body simtypes.StoreBuyBody
	if err := msg.Decode(&body); err != nil {
		log.Warn("warehouse: malformed store-buy, discarding")
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	available := w.stock[body.Product] - w.reserved[body.Product]
	if available < body.Quantity {
		return
	}
	w.reserved[body.Product] += body.Quantity
	w.reservations[body.RequestID] = reservation{storeID: msg.From, product: body.Product, quantity: body.Quantity}
	metrics.WarehouseReserved.WithLabelValues(w.cfg.ID, body.Product).Set(float64(w.reserved[body.Product]))

	_ = w.bus.Send(w.cfg.ID, msg.From, simtypes.PerfWarehouseAccept, simtypes.StoreBuyBody{
		RequestID: body.RequestID, Quantity: body.Quantity, Product: body.Product,
	})
}

func (w *Warehouse) handleStoreDeny(msg bus.Message) {
	var body simtypes.DenyBody
	if err := msg.Decode(&body); err != nil {
		log.Warn("warehouse: malformed store-deny, discarding")
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	res, ok := w.reservations[body.RequestID]
	if !ok {
		return
	}
	delete(w.reservations, body.RequestID)
	w.reserved[res.product] -= res.quantity
	metrics.WarehouseReserved.WithLabelValues(w.cfg.ID, res.product).Set(float64(w.reserved[res.product]))
}

// handleStoreConfirm creates the sale order and kicks off the vehicle
// assignment sub-negotiation (spec.md §4.5's "Vehicle assignment").
func (w *Warehouse) handleStoreConfirm(msg bus.Message) {
	var body simtypes.StoreBuyBody
	if err := msg.Decode(&body); err != nil {
		log.Warn("warehouse: malformed store-confirm, discarding")
		return
	}

	w.mu.Lock()
	delete(w.reservations, body.RequestID)

	w.nextOrderID++
	order := &simtypes.Order{
		ID:               w.nextOrderID,
		Product:          body.Product,
		Quantity:         body.Quantity,
		Sender:           w.cfg.ID,
		Receiver:         msg.From,
		SenderLocation:   w.cfg.Location,
		ReceiverLocation: w.cfg.PeerLocations[msg.From],
	}
	if w.graph != nil {
		res := w.graph.Dijkstra(order.SenderLocation, order.ReceiverLocation, w.cfg.WeightKg)
		order.Route, order.DeliverTime, order.Fuel = res.Path, res.TotalTime, res.TotalFuel
	}
	w.pendingOrders[order.ID] = pendingOrder{order: order}

	assignment := &vehicleAssignment{
		sessionID: uuid.New(),
		orderID:   order.ID,
		deadline:  time.Now().Add(w.cfg.VehicleTimeout),
	}
	w.assignments[order.ID] = assignment
	w.mu.Unlock()

	log.WithComponent("warehouse").With().
		Str("warehouse_id", w.cfg.ID).
		Str("session_id", assignment.sessionID.String()).
		Int("order_id", order.ID).
		Logger().Debug().Msg("broadcasting order-proposal to vehicles")
	w.bus.Broadcast(w.cfg.ID, w.cfg.VehicleIDs, simtypes.PerfOrderProposal, order)
}

func (w *Warehouse) handleSupplierAccept(msg bus.Message) {
	var body simtypes.StoreBuyBody
	if err := msg.Decode(&body); err != nil {
		log.Warn("warehouse: malformed supplier-accept, discarding")
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.outbound == nil || w.outbound.requestID != body.RequestID {
		return
	}
	w.outbound.candidates = append(w.outbound.candidates, negotiation.SellerCandidate{
		SellerID: msg.From,
		Location: w.cfg.PeerLocations[msg.From],
	})
}

func (w *Warehouse) handleVehicleProposal(msg bus.Message) {
	var body simtypes.VehicleProposalBody
	if err := msg.Decode(&body); err != nil {
		log.Warn("warehouse: malformed vehicle-proposal, discarding")
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	assignment, ok := w.assignments[body.OrderID]
	if !ok {
		return
	}
	assignment.candidates = append(assignment.candidates, negotiation.VehicleCandidate{
		VehicleID:    body.VehicleID,
		CanFit:       body.CanFit,
		DeliveryTime: body.DeliveryTime,
	})
}

// handleVehiclePickup releases the reservation and decrements stock once
// the assigned vehicle collects the order.
func (w *Warehouse) handleVehiclePickup(msg bus.Message) {
	var order simtypes.Order
	if err := msg.Decode(&order); err != nil {
		log.Warn("warehouse: malformed vehicle-pickup, discarding")
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.pendingOrders[order.ID]; !ok {
		return
	}
	delete(w.pendingOrders, order.ID)
	w.stock[order.Product] -= order.Quantity
	w.reserved[order.Product] -= order.Quantity
	metrics.WarehouseStock.WithLabelValues(w.cfg.ID, order.Product).Set(float64(w.stock[order.Product]))
	metrics.WarehouseReserved.WithLabelValues(w.cfg.ID, order.Product).Set(float64(w.reserved[order.Product]))
}

// handleVehicleDelivery is the receiving side of the warehouse's own
// outbound supplier buys: stock goes up when the assigned vehicle arrives.
func (w *Warehouse) handleVehicleDelivery(msg bus.Message) {
	var order simtypes.Order
	if err := msg.Decode(&order); err != nil {
		log.Warn("warehouse: malformed vehicle-delivery, discarding")
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stock[order.Product] += order.Quantity
	if w.stock[order.Product] > w.cfg.MaxCapacity {
		w.stock[order.Product] = w.cfg.MaxCapacity
	}
	metrics.WarehouseStock.WithLabelValues(w.cfg.ID, order.Product).Set(float64(w.stock[order.Product]))
}

func (w *Warehouse) tickLoop() {
	defer w.wg.Done()
	interval := w.cfg.ResupplyCheckInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.resupplyCheck()
			w.sweepOutboundDeadline()
			w.sweepAssignmentDeadlines()
		}
	}
}

// resupplyCheck implements buy_material: when available stock for any
// product drops below ResupplyThreshold, open an outbound buy negotiation
// with every supplier contact.
func (w *Warehouse) resupplyCheck() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.outbound != nil {
		return // one outbound negotiation in flight at a time
	}
	for product, stock := range w.stock {
		if stock-w.reserved[product] >= w.cfg.ResupplyThreshold {
			continue
		}
		quantity := w.cfg.ResupplyBatch
		if stock+quantity > w.cfg.MaxCapacity {
			quantity = w.cfg.MaxCapacity - stock
		}
		if quantity <= 0 {
			continue
		}
		w.nextRequestID++
		w.outbound = &outboundBuy{
			sessionID: uuid.New(),
			requestID: w.nextRequestID,
			product:   product,
			quantity:  quantity,
			deadline:  time.Now().Add(w.cfg.NegotiationTimeout),
		}
		w.bus.Broadcast(w.cfg.ID, w.cfg.SupplierIDs, simtypes.PerfWarehouseBuy, simtypes.StoreBuyBody{
			RequestID: w.outbound.requestID, Quantity: quantity, Product: product,
		})
		return
	}
}

func (w *Warehouse) sweepOutboundDeadline() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.outbound == nil || time.Now().Before(w.outbound.deadline) {
		return
	}
	ob := w.outbound
	w.outbound = nil

	winner, ok := negotiation.Nearest(ob.candidates, w.cfg.Location, w.travelTimeLocked)
	if !ok {
		metrics.NegotiationOutcomesTotal.WithLabelValues("warehouse-buy", "no-candidates").Inc()
		return
	}
	for _, c := range ob.candidates {
		if c.SellerID == winner.SellerID {
			_ = w.bus.Send(w.cfg.ID, c.SellerID, simtypes.PerfWarehouseConfirm, simtypes.StoreBuyBody{
				RequestID: ob.requestID, Quantity: ob.quantity, Product: ob.product,
			})
		} else {
			_ = w.bus.Send(w.cfg.ID, c.SellerID, simtypes.PerfWarehouseDeny, simtypes.DenyBody{RequestID: ob.requestID})
		}
	}
	metrics.NegotiationOutcomesTotal.WithLabelValues("warehouse-buy", "confirmed").Inc()
}

func (w *Warehouse) sweepAssignmentDeadlines() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for orderID, a := range w.assignments {
		if time.Now().Before(a.deadline) {
			continue
		}
		if len(a.candidates) == 0 {
			if a.attempt == 0 {
				a.attempt++
				a.deadline = time.Now().Add(w.cfg.VehicleTimeout)
				if order, ok := w.pendingOrders[orderID]; ok {
					w.bus.Broadcast(w.cfg.ID, w.cfg.VehicleIDs, simtypes.PerfOrderProposal, order.order)
				}
				continue
			}
			delete(w.assignments, orderID)
			metrics.NegotiationOutcomesTotal.WithLabelValues("vehicle-assignment", "unassignable").Inc()
			continue
		}

		winner, _ := negotiation.PickVehicle(a.candidates)
		for _, c := range a.candidates {
			_ = w.bus.Send(w.cfg.ID, c.VehicleID, simtypes.PerfOrderConfirmation, simtypes.OrderConfirmationBody{
				OrderID: orderID, Confirmed: c.VehicleID == winner.VehicleID,
			})
		}
		delete(w.assignments, orderID)
		metrics.NegotiationOutcomesTotal.WithLabelValues("vehicle-assignment", "assigned").Inc()
	}
}

func (w *Warehouse) travelTimeLocked(from, to int) float64 {
	if w.graph == nil {
		return 0
	}
	return w.graph.Dijkstra(from, to, w.cfg.WeightKg).TotalTime
}
