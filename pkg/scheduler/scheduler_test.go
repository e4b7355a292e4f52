package scheduler

import (
	"testing"
	"time"

	"github.com/cuemby/fleetsim/pkg/bus"
	"github.com/cuemby/fleetsim/pkg/simtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T) (*Scheduler, *bus.Bus) {
	t.Helper()
	b := bus.New()
	for _, id := range []string{"vehicle-1", "vehicle-2", "store-1", "world"} {
		b.Connect(id)
	}
	s := New(b, Config{
		ID:                 "scheduler",
		WorldID:            "world",
		VehicleIDs:         []string{"vehicle-1", "vehicle-2"},
		StoreIDs:           []string{"store-1"},
		WindowLength:       10,
		SimulationInterval: 20 * time.Millisecond,
	})
	return s, b
}

// TestBootstrapBroadcastsFictitiousArrivalAndRequestsWindow verifies the
// scheduler's initialization sequence: a fictitious arrival reaches every
// vehicle, and a simulate_traffic request reaches the world.
func TestBootstrapBroadcastsFictitiousArrivalAndRequestsWindow(t *testing.T) {
	s, b := newTestScheduler(t)
	s.bootstrap()

	msg, ok := b.Receive("vehicle-1", time.Second)
	require.True(t, ok)
	assert.Equal(t, simtypes.PerfArrival, msg.Performative)
	var arrival simtypes.ArrivalBody
	require.NoError(t, msg.Decode(&arrival))
	assert.Equal(t, []string{bootstrapVehicleID}, arrival.Vehicles)

	worldMsg, ok := b.Receive("world", time.Second)
	require.True(t, ok)
	assert.Equal(t, simtypes.PerfSimulateTraffic, worldMsg.Performative)
}

// TestProcessTickIdlesUntilFirstRealArrival verifies step 1: no batch is
// emitted before a real (non-bootstrap) arrival has been observed.
func TestProcessTickIdlesUntilFirstRealArrival(t *testing.T) {
	s, b := newTestScheduler(t)
	s.bootstrap()
	_, _ = b.Receive("vehicle-1", time.Second)
	_, _ = b.Receive("world", time.Second)

	s.processTick()

	_, ok := b.TryReceive("vehicle-1")
	assert.False(t, ok, "no notification should be sent before any real arrival is seen")
}

// TestProcessTickCoalescesArrivalBatchAndNotifiesVehiclesAndStores covers
// steps 2-9: two arrivals at the same time form one batch, delivered as a
// single coalesced message to every vehicle and store.
func TestProcessTickCoalescesArrivalBatchAndNotifiesVehiclesAndStores(t *testing.T) {
	s, b := newTestScheduler(t)
	s.bootstrap()
	_, _ = b.Receive("vehicle-1", time.Second)
	_, _ = b.Receive("world", time.Second)

	s.handleArrivalForTest("vehicle-1", 5.0)
	s.handleArrivalForTest("vehicle-2", 5.0)

	s.processTick()

	for _, id := range []string{"vehicle-1", "vehicle-2", "store-1"} {
		msg, ok := b.Receive(id, time.Second)
		require.True(t, ok, "recipient %s should receive a notification", id)
		assert.Equal(t, simtypes.PerfArrival, msg.Performative)
		var body simtypes.ArrivalBody
		require.NoError(t, msg.Decode(&body))
		assert.Equal(t, 5.0, body.Time)
		assert.ElementsMatch(t, []string{"vehicle-1", "vehicle-2"}, body.Vehicles)
	}
}

// TestProcessTickRequestsFreshWindowWhenTransitListDrains covers step 10:
// once the only active transit event is consumed, a fresh simulate_traffic
// request is sent to the world.
func TestProcessTickRequestsFreshWindowWhenTransitListDrains(t *testing.T) {
	s, b := newTestScheduler(t)
	s.bootstrap()
	_, _ = b.Receive("vehicle-1", time.Second)
	_, _ = b.Receive("world", time.Second)

	s.handleArrivalForTest("vehicle-1", 1.0)
	s.handleTrafficEventsForTest([]simtypes.TrafficEvent{
		{Instant: 1, Node1ID: 1, Node2ID: 2, NewWeight: 4, NewFuelConsumption: 0.5},
	})

	s.processTick()

	for _, id := range []string{"vehicle-1", "vehicle-2", "store-1"} {
		_, _ = b.Receive(id, time.Second)
		_, _ = b.Receive(id, time.Second)
	}
	worldMsg, ok := b.Receive("world", time.Second)
	require.True(t, ok, "world should receive a fresh simulate_traffic request once the window drains")
	assert.Equal(t, simtypes.PerfSimulateTraffic, worldMsg.Performative)
}

func (s *Scheduler) handleArrivalForTest(vehicleID string, t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.firstArrivalSeen = true
	s.arrivalBuffer = append(s.arrivalBuffer, arrivalEvent{vehicleID: vehicleID, time: t})
}

func (s *Scheduler) handleTrafficEventsForTest(events []simtypes.TrafficEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range events {
		s.nextTransitID++
		s.transitEvents = append(s.transitEvents, transitEvent{
			id:   s.nextTransitID,
			time: float64(ev.Instant),
			edge: simtypes.EdgeUpdate{Node1: ev.Node1ID, Node2: ev.Node2ID, Weight: ev.NewWeight, FuelConsumption: ev.NewFuelConsumption},
		})
	}
}
