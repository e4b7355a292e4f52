package warehouse

import (
	"testing"
	"time"

	"github.com/cuemby/fleetsim/pkg/bus"
	"github.com/cuemby/fleetsim/pkg/graph"
	"github.com/cuemby/fleetsim/pkg/simtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lineGraph() *graph.Graph {
	g := graph.New()
	for i := 1; i <= 4; i++ {
		g.AddNode(&graph.Node{ID: i})
	}
	g.AddEdge(1, 2, 1, 100)
	g.AddEdge(2, 3, 1, 100)
	g.AddEdge(3, 4, 1, 100)
	return g
}

func newTestWarehouse(t *testing.T, extra ...string) (*Warehouse, *bus.Bus) {
	t.Helper()
	b := bus.New()
	ids := append([]string{"warehouse-1", "store-1", "supplier-1", "supplier-2", "vehicle-1", "vehicle-2"}, extra...)
	for _, id := range ids {
		b.Connect(id)
	}
	w := New(b, Config{
		ID:                    "warehouse-1",
		Location:              1,
		InitialStock:          map[string]int{"A": 10},
		MaxCapacity:           100,
		ResupplyThreshold:     5,
		ResupplyBatch:         20,
		ResupplyCheckInterval: time.Hour, // tests call sweep/check methods directly
		NegotiationTimeout:    time.Hour,
		VehicleTimeout:        time.Hour,
		SupplierIDs:           []string{"supplier-1", "supplier-2"},
		VehicleIDs:            []string{"vehicle-1", "vehicle-2"},
		PeerLocations:         map[string]int{"store-1": 4, "supplier-1": 2, "supplier-2": 3},
		Graph:                 lineGraph(),
		WeightKg:              1500,
	})
	return w, b
}

func deliverTo(t *testing.T, b *bus.Bus, from, to string, perf simtypes.Performative, body any) bus.Message {
	t.Helper()
	require.NoError(t, b.Send(from, to, perf, body))
	msg, ok := b.Receive(to, time.Second)
	require.True(t, ok)
	return msg
}

func TestHandleStoreBuy_AcceptsWhenStockSufficient(t *testing.T) {
	w, b := newTestWarehouse(t)

	w.handleStoreBuy(deliverTo(t, b, "store-1", w.cfg.ID, simtypes.PerfStoreBuy, simtypes.StoreBuyBody{RequestID: 1, Quantity: 5, Product: "A"}))

	msg, ok := b.Receive("store-1", time.Second)
	require.True(t, ok)
	assert.Equal(t, simtypes.PerfWarehouseAccept, msg.Performative)
	assert.Equal(t, 5, w.reserved["A"])
}

func TestHandleStoreBuy_DeclinesWhenStockInsufficient(t *testing.T) {
	w, b := newTestWarehouse(t)

	w.handleStoreBuy(deliverTo(t, b, "store-1", w.cfg.ID, simtypes.PerfStoreBuy, simtypes.StoreBuyBody{RequestID: 1, Quantity: 50, Product: "A"}))

	_, ok := b.TryReceive("store-1")
	assert.False(t, ok, "an unsatisfiable request gets no reply")
	assert.Equal(t, 0, w.reserved["A"])
}

func TestHandleStoreDeny_ReleasesReservation(t *testing.T) {
	w, b := newTestWarehouse(t)
	w.handleStoreBuy(deliverTo(t, b, "store-1", w.cfg.ID, simtypes.PerfStoreBuy, simtypes.StoreBuyBody{RequestID: 1, Quantity: 5, Product: "A"}))
	_, _ = b.Receive("store-1", time.Second)

	w.handleStoreDeny(deliverTo(t, b, "store-1", w.cfg.ID, simtypes.PerfStoreDeny, simtypes.DenyBody{RequestID: 1}))

	assert.Equal(t, 0, w.reserved["A"])
}

func TestHandleStoreConfirm_CreatesOrderAndBroadcastsProposal(t *testing.T) {
	w, b := newTestWarehouse(t)
	w.handleStoreBuy(deliverTo(t, b, "store-1", w.cfg.ID, simtypes.PerfStoreBuy, simtypes.StoreBuyBody{RequestID: 1, Quantity: 5, Product: "A"}))
	_, _ = b.Receive("store-1", time.Second)

	w.handleStoreConfirm(deliverTo(t, b, "store-1", w.cfg.ID, simtypes.PerfStoreConfirm, simtypes.StoreBuyBody{RequestID: 1, Quantity: 5, Product: "A"}))

	assert.Len(t, w.pendingOrders, 1)
	assert.Len(t, w.assignments, 1)

	for _, id := range []string{"vehicle-1", "vehicle-2"} {
		msg, ok := b.Receive(id, time.Second)
		require.True(t, ok)
		assert.Equal(t, simtypes.PerfOrderProposal, msg.Performative)
		var order simtypes.Order
		require.NoError(t, msg.Decode(&order))
		assert.Equal(t, "A", order.Product)
		assert.Equal(t, 5, order.Quantity)
		assert.Equal(t, "store-1", order.Receiver)
	}
}

func TestSweepAssignmentDeadlines_PicksWinnerAndConfirms(t *testing.T) {
	w, b := newTestWarehouse(t)
	w.handleStoreBuy(deliverTo(t, b, "store-1", w.cfg.ID, simtypes.PerfStoreBuy, simtypes.StoreBuyBody{RequestID: 1, Quantity: 5, Product: "A"}))
	_, _ = b.Receive("store-1", time.Second)
	w.handleStoreConfirm(deliverTo(t, b, "store-1", w.cfg.ID, simtypes.PerfStoreConfirm, simtypes.StoreBuyBody{RequestID: 1, Quantity: 5, Product: "A"}))
	_, _ = b.Receive("vehicle-1", time.Second)
	_, _ = b.Receive("vehicle-2", time.Second)

	var orderID int
	for id := range w.pendingOrders {
		orderID = id
	}
	w.handleVehicleProposal(deliverTo(t, b, "vehicle-1", w.cfg.ID, simtypes.PerfVehicleProposal, simtypes.VehicleProposalBody{OrderID: orderID, CanFit: false, DeliveryTime: 1, VehicleID: "vehicle-1"}))
	w.handleVehicleProposal(deliverTo(t, b, "vehicle-2", w.cfg.ID, simtypes.PerfVehicleProposal, simtypes.VehicleProposalBody{OrderID: orderID, CanFit: true, DeliveryTime: 10, VehicleID: "vehicle-2"}))

	w.assignments[orderID].deadline = time.Now().Add(-time.Second)
	w.sweepAssignmentDeadlines()

	msg1, ok := b.Receive("vehicle-1", time.Second)
	require.True(t, ok)
	var body1 simtypes.OrderConfirmationBody
	require.NoError(t, msg1.Decode(&body1))
	assert.False(t, body1.Confirmed)

	msg2, ok := b.Receive("vehicle-2", time.Second)
	require.True(t, ok)
	var body2 simtypes.OrderConfirmationBody
	require.NoError(t, msg2.Decode(&body2))
	assert.True(t, body2.Confirmed, "the can_fit vehicle wins even with a worse delivery time")

	assert.Empty(t, w.assignments)
}

func TestSweepAssignmentDeadlines_RetriesOnceThenUnassignable(t *testing.T) {
	w, b := newTestWarehouse(t)
	w.handleStoreBuy(deliverTo(t, b, "store-1", w.cfg.ID, simtypes.PerfStoreBuy, simtypes.StoreBuyBody{RequestID: 1, Quantity: 5, Product: "A"}))
	_, _ = b.Receive("store-1", time.Second)
	w.handleStoreConfirm(deliverTo(t, b, "store-1", w.cfg.ID, simtypes.PerfStoreConfirm, simtypes.StoreBuyBody{RequestID: 1, Quantity: 5, Product: "A"}))
	_, _ = b.Receive("vehicle-1", time.Second)
	_, _ = b.Receive("vehicle-2", time.Second)

	var orderID int
	for id := range w.pendingOrders {
		orderID = id
	}
	w.assignments[orderID].deadline = time.Now().Add(-time.Second)
	w.sweepAssignmentDeadlines()

	assert.Len(t, w.assignments, 1, "a zero-response assignment retries once rather than vanishing")
	assert.Equal(t, 1, w.assignments[orderID].attempt)
	_, _ = b.Receive("vehicle-1", time.Second)
	_, _ = b.Receive("vehicle-2", time.Second)

	w.assignments[orderID].deadline = time.Now().Add(-time.Second)
	w.sweepAssignmentDeadlines()

	assert.Empty(t, w.assignments, "a second zero-response sweep gives up")
	assert.Len(t, w.pendingOrders, 1, "the order stays in pending_orders, unassignable but not discarded")
}

func TestResupplyCheck_OpensOutboundBuyBelowThreshold(t *testing.T) {
	w, b := newTestWarehouse(t)
	w.stock["A"] = 3 // below ResupplyThreshold of 5

	w.resupplyCheck()

	require.NotNil(t, w.outbound)
	for _, id := range []string{"supplier-1", "supplier-2"} {
		msg, ok := b.Receive(id, time.Second)
		require.True(t, ok)
		assert.Equal(t, simtypes.PerfWarehouseBuy, msg.Performative)
	}
}

func TestSweepOutboundDeadline_ConfirmsNearestSupplier(t *testing.T) {
	w, b := newTestWarehouse(t)
	w.stock["A"] = 3
	w.resupplyCheck()
	_, _ = b.Receive("supplier-1", time.Second)
	_, _ = b.Receive("supplier-2", time.Second)

	requestID := w.outbound.requestID
	w.handleSupplierAccept(deliverTo(t, b, "supplier-1", w.cfg.ID, simtypes.PerfSupplierAccept, simtypes.StoreBuyBody{RequestID: requestID, Quantity: 20, Product: "A"}))
	w.handleSupplierAccept(deliverTo(t, b, "supplier-2", w.cfg.ID, simtypes.PerfSupplierAccept, simtypes.StoreBuyBody{RequestID: requestID, Quantity: 20, Product: "A"}))

	w.outbound.deadline = time.Now().Add(-time.Second)
	w.sweepOutboundDeadline()

	// supplier-1 is at node 2 (closer), supplier-2 at node 3: supplier-1 wins.
	confirm, ok := b.Receive("supplier-1", time.Second)
	require.True(t, ok)
	assert.Equal(t, simtypes.PerfWarehouseConfirm, confirm.Performative)

	deny, ok := b.Receive("supplier-2", time.Second)
	require.True(t, ok)
	assert.Equal(t, simtypes.PerfWarehouseDeny, deny.Performative)

	assert.Nil(t, w.outbound)
}

func TestHandleVehiclePickup_DecrementsStockAndReservation(t *testing.T) {
	w, b := newTestWarehouse(t)
	w.handleStoreBuy(deliverTo(t, b, "store-1", w.cfg.ID, simtypes.PerfStoreBuy, simtypes.StoreBuyBody{RequestID: 1, Quantity: 5, Product: "A"}))
	_, _ = b.Receive("store-1", time.Second)
	w.handleStoreConfirm(deliverTo(t, b, "store-1", w.cfg.ID, simtypes.PerfStoreConfirm, simtypes.StoreBuyBody{RequestID: 1, Quantity: 5, Product: "A"}))
	_, _ = b.Receive("vehicle-1", time.Second)
	_, _ = b.Receive("vehicle-2", time.Second)

	var order *simtypes.Order
	for _, p := range w.pendingOrders {
		order = p.order
	}

	w.handleVehiclePickup(deliverTo(t, b, "vehicle-1", w.cfg.ID, simtypes.PerfVehiclePickup, order))

	assert.Equal(t, 5, w.stock["A"])
	assert.Equal(t, 0, w.reserved["A"])
	assert.Empty(t, w.pendingOrders)
}

func TestHandleVehicleDelivery_IncrementsStockCappedAtMaxCapacity(t *testing.T) {
	w, b := newTestWarehouse(t)
	w.cfg.MaxCapacity = 12
	order := &simtypes.Order{ID: 99, Product: "A", Quantity: 20}

	w.handleVehicleDelivery(deliverTo(t, b, "supplier-1", w.cfg.ID, simtypes.PerfVehicleDelivery, order))

	assert.Equal(t, 12, w.stock["A"])
}
