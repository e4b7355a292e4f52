package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/cuemby/fleetsim/pkg/bus"
	"github.com/cuemby/fleetsim/pkg/log"
	"github.com/cuemby/fleetsim/pkg/metrics"
	"github.com/cuemby/fleetsim/pkg/simtypes"
)

// bootstrapVehicleID is the reserved fictitious vehicle id used for the
// bootstrap arrival broadcast, so it never collides with a real vehicle id.
const bootstrapVehicleID = "vehicle_init_signal_999"

// bootstrapEpsilon is the fictitious time the bootstrap arrival carries.
const bootstrapEpsilon = 0.001

// arrivalEvent is one buffered arrival report from a single vehicle.
type arrivalEvent struct {
	vehicleID string
	time      float64
}

// transitEvent is one active edge-weight change still pending delivery.
// id lets the processing tick remove specific entries from the active list
// without relying on value equality.
type transitEvent struct {
	id   int
	time float64
	edge simtypes.EdgeUpdate
}

// Config bundles the registered agent ids and timing knobs a Scheduler
// needs. ID is the scheduler's own bus address.
type Config struct {
	ID                 string
	WorldID            string
	VehicleIDs         []string
	StoreIDs           []string
	WindowLength       int
	SimulationInterval time.Duration
}

// Scheduler is the simulation clock: it turns buffered arrivals and active
// transit events into ordered, batched notifications.
type Scheduler struct {
	bus *bus.Bus
	cfg Config

	mu               sync.Mutex
	arrivalBuffer    []arrivalEvent
	transitEvents    []transitEvent
	nextTransitID    int
	firstArrivalSeen bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New builds a Scheduler bound to bus b. It connects its own mailbox.
func New(b *bus.Bus, cfg Config) *Scheduler {
	b.Connect(cfg.ID)
	return &Scheduler{
		bus:    b,
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

// recipients returns the union of vehicle and store ids: the fixed
// recipient set for both arrival and transit notifications.
func (s *Scheduler) recipients() []string {
	out := make([]string, 0, len(s.cfg.VehicleIDs)+len(s.cfg.StoreIDs))
	out = append(out, s.cfg.VehicleIDs...)
	out = append(out, s.cfg.StoreIDs...)
	return out
}

// Start performs the bootstrap sequence and launches the scheduler's two
// loops: message reception and the periodic processing tick.
func (s *Scheduler) Start() {
	s.bootstrap()

	s.wg.Add(2)
	go s.receiveLoop()
	go s.tickLoop()
}

// Stop halts both loops and waits for them to exit.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

// bootstrap sends the fictitious arrival broadcast so idle vehicles have a
// first event to react to, and requests the initial traffic window from
// the world.
func (s *Scheduler) bootstrap() {
	s.bus.Broadcast(s.cfg.ID, s.cfg.VehicleIDs, simtypes.PerfArrival, simtypes.ArrivalBody{
		Type:     "arrival",
		Time:     bootstrapEpsilon,
		Vehicles: []string{bootstrapVehicleID},
	})
	s.requestResimulate()
}

func (s *Scheduler) requestResimulate() {
	if s.cfg.WorldID == "" {
		log.Warn("scheduler: no world address configured, dropping simulate_traffic request")
		return
	}
	_ = s.bus.Send(s.cfg.ID, s.cfg.WorldID, simtypes.PerfSimulateTraffic, simtypes.SimulateTrafficBody{
		SimulationTime: float64(s.cfg.WindowLength),
		Requester:      s.cfg.ID,
	})
	metrics.SchedulerResimulateRequestsTotal.Inc()
}

// receiveLoop drains the scheduler's mailbox, classifying each message into
// the arrival buffer or the active transit list. Malformed messages are
// logged and discarded; there are no retries.
func (s *Scheduler) receiveLoop() {
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
		metrics.SchedulerEventsReceivedTotal.Inc()
		switch msg.Performative {
		case simtypes.PerfArrival:
			s.handleArrival(msg)
		case simtypes.PerfTrafficEvents:
			s.handleTrafficEvents(msg)
		default:
			log.Warn("scheduler: unexpected message performative, discarding")
		}
	}
}

func (s *Scheduler) handleArrival(msg bus.Message) {
	var body simtypes.ArrivalBody
	if err := msg.Decode(&body); err != nil {
		log.Warn("scheduler: malformed arrival message, discarding")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range body.Vehicles {
		if v != bootstrapVehicleID {
			s.firstArrivalSeen = true
		}
		s.arrivalBuffer = append(s.arrivalBuffer, arrivalEvent{vehicleID: v, time: body.Time})
	}
}

func (s *Scheduler) handleTrafficEvents(msg bus.Message) {
	var body simtypes.TrafficEventsBody
	if err := msg.Decode(&body); err != nil {
		log.Warn("scheduler: malformed traffic_events message, discarding")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range body.Events {
		s.nextTransitID++
		s.transitEvents = append(s.transitEvents, transitEvent{
			id:   s.nextTransitID,
			time: float64(ev.Instant),
			edge: simtypes.EdgeUpdate{
				Node1:           ev.Node1ID,
				Node2:           ev.Node2ID,
				Weight:          ev.NewWeight,
				FuelConsumption: ev.NewFuelConsumption,
			},
		})
	}
}

// tickLoop fires processTick on a fixed wall-clock period until stopped.
func (s *Scheduler) tickLoop() {
	defer s.wg.Done()
	interval := s.cfg.SimulationInterval
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
			s.processTick()
		}
	}
}

// queueEntry is one element of the transient priority queue built fresh for
// each processing tick.
type queueEntry struct {
	time    float64
	arrival *arrivalEvent
	transit *transitEvent
}

type entryHeap []*queueEntry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].time < h[j].time }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)        { *h = append(*h, x.(*queueEntry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// processTick drains the buffered arrivals and active transit events into
// one priority queue, pops the earliest-time batch, notifies the
// registered vehicles and stores, and requests a fresh traffic window if
// the batch emptied the active transit list.
func (s *Scheduler) processTick() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulerTickDuration)

	s.mu.Lock()
	if !s.firstArrivalSeen {
		s.mu.Unlock()
		return
	}

	q := &entryHeap{}
	heap.Init(q)
	for i := range s.arrivalBuffer {
		a := s.arrivalBuffer[i]
		heap.Push(q, &queueEntry{time: a.time, arrival: &a})
	}
	s.arrivalBuffer = nil
	for i := range s.transitEvents {
		t := s.transitEvents[i]
		heap.Push(q, &queueEntry{time: t.time, transit: &t})
	}

	if q.Len() == 0 {
		s.mu.Unlock()
		return
	}

	first := heap.Pop(q).(*queueEntry)
	batchTime := first.time
	batch := []*queueEntry{first}
	for q.Len() > 0 && (*q)[0].time == batchTime {
		batch = append(batch, heap.Pop(q).(*queueEntry))
	}

	consumed := make(map[int]bool)
	batchHadTransit := false
	for _, e := range batch {
		if e.transit != nil {
			consumed[e.transit.id] = true
			batchHadTransit = true
		}
	}
	remaining := s.transitEvents[:0:0]
	for _, t := range s.transitEvents {
		if !consumed[t.id] {
			remaining = append(remaining, t)
		}
	}
	s.transitEvents = remaining
	windowDrained := batchHadTransit && len(s.transitEvents) == 0

	for i := range s.transitEvents {
		s.transitEvents[i].time -= batchTime
	}
	s.mu.Unlock()

	metrics.SchedulerBatchSize.Observe(float64(len(batch)))
	metrics.SchedulerEventsProcessedTotal.Add(float64(len(batch)))

	s.notifyEvents(batch, batchTime)

	if windowDrained {
		s.requestResimulate()
	}
	// The main queue is local to this tick and discarded here: any
	// leftover future entries are rebuilt from scratch next tick.
}

// notifyEvents classifies a batch popped from the main queue and fans out
// the resulting messages: arrivals coalesce into one message per recipient,
// transit events are sent individually with only the first carrying real
// time.
func (s *Scheduler) notifyEvents(batch []*queueEntry, batchTime float64) {
	var arrivedVehicles []string
	var transits []*transitEvent
	for _, e := range batch {
		switch {
		case e.arrival != nil:
			arrivedVehicles = append(arrivedVehicles, e.arrival.vehicleID)
		case e.transit != nil:
			transits = append(transits, e.transit)
		}
	}

	recipients := s.recipients()

	if len(arrivedVehicles) > 0 {
		s.bus.Broadcast(s.cfg.ID, recipients, simtypes.PerfArrival, simtypes.ArrivalBody{
			Type:     "arrival",
			Time:     batchTime,
			Vehicles: arrivedVehicles,
		})
	}

	for i, t := range transits {
		reportedTime := 0.0
		if i == 0 {
			reportedTime = batchTime
		}
		body := simtypes.TransitBody{Type: "transit", Time: reportedTime}
		body.Data.Edges = []simtypes.EdgeUpdate{t.edge}
		s.bus.Broadcast(s.cfg.ID, recipients, simtypes.PerfTransit, body)
	}
}
