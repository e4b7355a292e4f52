package scheduler

import (
	"container/heap"
	"testing"

	"github.com/cuemby/fleetsim/pkg/bus"
	"github.com/cuemby/fleetsim/pkg/simtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEntryHeapOrdersByTime verifies the transient per-tick priority queue
// pops entries in ascending time order regardless of push order.
func TestEntryHeapOrdersByTime(t *testing.T) {
	q := &entryHeap{}
	heap.Init(q)
	heap.Push(q, &queueEntry{time: 3})
	heap.Push(q, &queueEntry{time: 1})
	heap.Push(q, &queueEntry{time: 2})

	var popped []float64
	for q.Len() > 0 {
		popped = append(popped, heap.Pop(q).(*queueEntry).time)
	}
	assert.Equal(t, []float64{1, 2, 3}, popped)
}

// TestRecipientsIsUnionOfVehiclesAndStores verifies the fixed recipient set
// used for both arrival and transit notifications.
func TestRecipientsIsUnionOfVehiclesAndStores(t *testing.T) {
	s := &Scheduler{cfg: Config{
		VehicleIDs: []string{"vehicle-1", "vehicle-2"},
		StoreIDs:   []string{"store-1"},
	}}
	assert.ElementsMatch(t, []string{"vehicle-1", "vehicle-2", "store-1"}, s.recipients())
}

// TestNotifyEventsSendsIndividualTransitMessagesWithOnlyFirstCarryingTime
// verifies the "transit events sent individually, zero subsequent times in
// a batch" rule.
func TestNotifyEventsSendsIndividualTransitMessagesWithOnlyFirstCarryingTime(t *testing.T) {
	b := bus.New()
	for _, id := range []string{"scheduler", "vehicle-1", "store-1"} {
		b.Connect(id)
	}
	s := &Scheduler{bus: b, cfg: Config{ID: "scheduler", VehicleIDs: []string{"vehicle-1"}, StoreIDs: []string{"store-1"}}}

	t1 := &transitEvent{id: 1, time: 3, edge: simtypes.EdgeUpdate{Node1: 1, Node2: 2, Weight: 5}}
	t2 := &transitEvent{id: 2, time: 3, edge: simtypes.EdgeUpdate{Node1: 3, Node2: 4, Weight: 7}}

	s.notifyEvents([]*queueEntry{{time: 3, transit: t1}, {time: 3, transit: t2}}, 3)

	first, ok := b.Receive("vehicle-1", 0)
	require.True(t, ok)
	var firstBody simtypes.TransitBody
	require.NoError(t, first.Decode(&firstBody))
	assert.Equal(t, 3.0, firstBody.Time)

	second, ok := b.Receive("vehicle-1", 0)
	require.True(t, ok)
	var secondBody simtypes.TransitBody
	require.NoError(t, second.Decode(&secondBody))
	assert.Equal(t, 0.0, secondBody.Time)
}

// TestNotifyEventsSkipsArrivalMessageWhenBatchHasNoArrivals verifies a
// batch of only transit events never produces a spurious arrival message.
func TestNotifyEventsSkipsArrivalMessageWhenBatchHasNoArrivals(t *testing.T) {
	b := bus.New()
	for _, id := range []string{"scheduler", "vehicle-1"} {
		b.Connect(id)
	}
	s := &Scheduler{bus: b, cfg: Config{ID: "scheduler", VehicleIDs: []string{"vehicle-1"}}}

	transit := &transitEvent{id: 1, time: 2, edge: simtypes.EdgeUpdate{Node1: 1, Node2: 2, Weight: 5}}
	s.notifyEvents([]*queueEntry{{time: 2, transit: transit}}, 2)

	msg, ok := b.Receive("vehicle-1", 0)
	require.True(t, ok)
	assert.Equal(t, simtypes.PerfTransit, msg.Performative)

	_, ok = b.TryReceive("vehicle-1")
	assert.False(t, ok, "no second message should arrive")
}
