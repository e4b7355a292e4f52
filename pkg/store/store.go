// Package store implements the Store agent: periodically buys a random
// product in bulk from warehouse contacts, picks the nearest acceptor, and
// restocks as vehicles deliver. Grounded on store.py's BuyProduct/
// RecieveAcceptance/SendConfirmation chain, collapsed from three OneShot
// behaviours plus a blocking timeout receive into one goroutine with a
// ticker (periodic buy attempt) and a mailbox select loop (replies) —
// matching the same negotiation-deadline-sweep shape pkg/warehouse uses for
// its own outbound buy.
package store

import (
	"math/rand"
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

// Config bundles a Store's fixed identity, contacts, and buying behaviour.
type Config struct {
	ID       string
	Location int

	Products       []string
	MaxBuyQuantity int
	BuyFrequency   time.Duration
	BuyProbability float64

	NegotiationTimeout time.Duration // T_neg

	WarehouseIDs  []string
	PeerLocations map[string]int

	Graph    *graph.Graph
	WeightKg float64

	// Rand is injectable so tests can pin the product/quantity/probability
	// draw; a nil Rand falls back to a new source of the store's own,
	// seeded with 1.
	Rand *rand.Rand
}

type outboundBuy struct {
	sessionID  uuid.UUID
	requestID  int
	product    string
	quantity   int
	deadline   time.Time
	candidates []negotiation.SellerCandidate
}

// Store is the agent described in SPEC_FULL §4.6.
type Store struct {
	bus   *bus.Bus
	cfg   Config
	graph *graph.Graph
	rand  *rand.Rand

	mu            sync.Mutex
	stock         map[string]int
	nextRequestID int
	outbound      *outboundBuy

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Store bound to bus b and connects its mailbox.
func New(b *bus.Bus, cfg Config) *Store {
	b.Connect(cfg.ID)
	r := cfg.Rand
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}
	s := &Store{
		bus:    b,
		cfg:    cfg,
		graph:  cfg.Graph,
		rand:   r,
		stock:  make(map[string]int, len(cfg.Products)),
		stopCh: make(chan struct{}),
	}
	for _, p := range cfg.Products {
		metrics.StoreStock.WithLabelValues(cfg.ID, p).Set(0)
	}
	return s
}

// Start launches the receive loop and the periodic buy-attempt loop.
func (s *Store) Start() {
	s.wg.Add(2)
	go s.receiveLoop()
	go s.tickLoop()
}

// Stop halts both loops and waits for them to exit.
func (s *Store) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *Store) receiveLoop() {
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
		case simtypes.PerfWarehouseAccept:
			s.handleWarehouseAccept(msg)
		case simtypes.PerfVehicleDelivery:
			s.handleVehicleDelivery(msg)
		case simtypes.PerfArrival, simtypes.PerfTransit:
			// Passive: a store has no position of its own to update.
		default:
			log.Warn("store: unexpected message performative, discarding")
		}
	}
}

func (s *Store) handleWarehouseAccept(msg bus.Message) {
	var body simtypes.StoreBuyBody
	if err := msg.Decode(&body); err != nil {
		log.Warn("store: malformed warehouse-accept, discarding")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outbound == nil || s.outbound.requestID != body.RequestID {
		return
	}
	s.outbound.candidates = append(s.outbound.candidates, negotiation.SellerCandidate{
		SellerID: msg.From,
		Location: s.cfg.PeerLocations[msg.From],
	})
}

// handleVehicleDelivery is the only path that raises stock: a store never
// sees its own buy quantities until the assigned vehicle actually arrives.
func (s *Store) handleVehicleDelivery(msg bus.Message) {
	var order simtypes.Order
	if err := msg.Decode(&order); err != nil {
		log.Warn("store: malformed vehicle-delivery, discarding")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[order.Product] += order.Quantity
	metrics.StoreStock.WithLabelValues(s.cfg.ID, order.Product).Set(float64(s.stock[order.Product]))
}

func (s *Store) tickLoop() {
	defer s.wg.Done()
	interval := s.cfg.BuyFrequency
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
			s.maybeBuy()
			s.sweepOutboundDeadline()
		}
	}
}

// maybeBuy implements BuyProduct: with probability buy_probability, pick a
// random product and quantity and broadcast store-buy to every warehouse
// contact. Only one request is ever in flight at a time (store.py's
// docstring: "Only ONE request must be sent at once").
func (s *Store) maybeBuy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outbound != nil || len(s.cfg.Products) == 0 || len(s.cfg.WarehouseIDs) == 0 {
		return
	}
	if s.rand.Float64() >= s.cfg.BuyProbability {
		return
	}

	product := s.cfg.Products[s.rand.Intn(len(s.cfg.Products))]
	quantity := s.rand.Intn(s.cfg.MaxBuyQuantity) + 1

	s.nextRequestID++
	s.outbound = &outboundBuy{
		sessionID: uuid.New(),
		requestID: s.nextRequestID,
		product:   product,
		quantity:  quantity,
		deadline:  time.Now().Add(s.cfg.NegotiationTimeout),
	}
	s.bus.Broadcast(s.cfg.ID, s.cfg.WarehouseIDs, simtypes.PerfStoreBuy, simtypes.StoreBuyBody{
		RequestID: s.outbound.requestID, Quantity: quantity, Product: product,
	})
}

func (s *Store) sweepOutboundDeadline() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outbound == nil || time.Now().Before(s.outbound.deadline) {
		return
	}
	ob := s.outbound
	s.outbound = nil

	winner, ok := negotiation.Nearest(ob.candidates, s.cfg.Location, s.travelTimeLocked)
	if !ok {
		metrics.NegotiationOutcomesTotal.WithLabelValues("store-buy", "no-candidates").Inc()
		return
	}
	for _, c := range ob.candidates {
		if c.SellerID == winner.SellerID {
			_ = s.bus.Send(s.cfg.ID, c.SellerID, simtypes.PerfStoreConfirm, simtypes.StoreBuyBody{
				RequestID: ob.requestID, Quantity: ob.quantity, Product: ob.product,
			})
		} else {
			_ = s.bus.Send(s.cfg.ID, c.SellerID, simtypes.PerfStoreDeny, simtypes.DenyBody{RequestID: ob.requestID})
		}
	}
	metrics.NegotiationOutcomesTotal.WithLabelValues("store-buy", "confirmed").Inc()
}

func (s *Store) travelTimeLocked(from, to int) float64 {
	if s.graph == nil {
		return 0
	}
	return s.graph.Dijkstra(from, to, s.cfg.WeightKg).TotalTime
}
