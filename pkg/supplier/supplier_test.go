package supplier

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

func newTestSupplier(t *testing.T) (*Supplier, *bus.Bus) {
	t.Helper()
	b := bus.New()
	for _, id := range []string{"supplier-1", "warehouse-1", "vehicle-1", "vehicle-2"} {
		b.Connect(id)
	}
	s := New(b, Config{
		ID:             "supplier-1",
		Location:       1,
		VehicleTimeout: time.Hour,
		VehicleIDs:     []string{"vehicle-1", "vehicle-2"},
		PeerLocations:  map[string]int{"warehouse-1": 4},
		Graph:          lineGraph(),
		WeightKg:       1500,
	})
	return s, b
}

func deliverTo(t *testing.T, b *bus.Bus, from, to string, perf simtypes.Performative, body any) bus.Message {
	t.Helper()
	require.NoError(t, b.Send(from, to, perf, body))
	msg, ok := b.Receive(to, time.Second)
	require.True(t, ok)
	return msg
}

func TestHandleWarehouseBuy_AlwaysAccepts(t *testing.T) {
	s, b := newTestSupplier(t)

	s.handleWarehouseBuy(deliverTo(t, b, "warehouse-1", s.cfg.ID, simtypes.PerfWarehouseBuy, simtypes.StoreBuyBody{RequestID: 1, Quantity: 1000, Product: "A"}))

	msg, ok := b.Receive("warehouse-1", time.Second)
	require.True(t, ok)
	assert.Equal(t, simtypes.PerfSupplierAccept, msg.Performative)
	assert.Contains(t, s.pendingAccepts, 1)
}

func TestHandleWarehouseDeny_DropsPendingAccept(t *testing.T) {
	s, b := newTestSupplier(t)
	s.handleWarehouseBuy(deliverTo(t, b, "warehouse-1", s.cfg.ID, simtypes.PerfWarehouseBuy, simtypes.StoreBuyBody{RequestID: 1, Quantity: 50, Product: "A"}))
	_, _ = b.Receive("warehouse-1", time.Second)

	s.handleWarehouseDeny(deliverTo(t, b, "warehouse-1", s.cfg.ID, simtypes.PerfWarehouseDeny, simtypes.DenyBody{RequestID: 1}))

	assert.NotContains(t, s.pendingAccepts, 1)
}

func TestHandleWarehouseConfirm_CreatesOrderAndBroadcastsProposal(t *testing.T) {
	s, b := newTestSupplier(t)
	s.handleWarehouseBuy(deliverTo(t, b, "warehouse-1", s.cfg.ID, simtypes.PerfWarehouseBuy, simtypes.StoreBuyBody{RequestID: 1, Quantity: 50, Product: "A"}))
	_, _ = b.Receive("warehouse-1", time.Second)

	s.handleWarehouseConfirm(deliverTo(t, b, "warehouse-1", s.cfg.ID, simtypes.PerfWarehouseConfirm, simtypes.StoreBuyBody{RequestID: 1, Quantity: 50, Product: "A"}))

	assert.Len(t, s.pendingOrders, 1)
	assert.Len(t, s.assignments, 1)
	for _, id := range []string{"vehicle-1", "vehicle-2"} {
		msg, ok := b.Receive(id, time.Second)
		require.True(t, ok)
		assert.Equal(t, simtypes.PerfOrderProposal, msg.Performative)
		var order simtypes.Order
		require.NoError(t, msg.Decode(&order))
		assert.Equal(t, "A", order.Product)
		assert.Equal(t, 50, order.Quantity)
		assert.Equal(t, "warehouse-1", order.Receiver)
	}
}

func TestSweepAssignmentDeadlines_PicksWinner(t *testing.T) {
	s, b := newTestSupplier(t)
	s.handleWarehouseBuy(deliverTo(t, b, "warehouse-1", s.cfg.ID, simtypes.PerfWarehouseBuy, simtypes.StoreBuyBody{RequestID: 1, Quantity: 50, Product: "A"}))
	_, _ = b.Receive("warehouse-1", time.Second)
	s.handleWarehouseConfirm(deliverTo(t, b, "warehouse-1", s.cfg.ID, simtypes.PerfWarehouseConfirm, simtypes.StoreBuyBody{RequestID: 1, Quantity: 50, Product: "A"}))
	_, _ = b.Receive("vehicle-1", time.Second)
	_, _ = b.Receive("vehicle-2", time.Second)

	var orderID int
	for id := range s.pendingOrders {
		orderID = id
	}
	s.handleVehicleProposal(deliverTo(t, b, "vehicle-1", s.cfg.ID, simtypes.PerfVehicleProposal, simtypes.VehicleProposalBody{OrderID: orderID, CanFit: true, DeliveryTime: 5, VehicleID: "vehicle-1"}))
	s.handleVehicleProposal(deliverTo(t, b, "vehicle-2", s.cfg.ID, simtypes.PerfVehicleProposal, simtypes.VehicleProposalBody{OrderID: orderID, CanFit: true, DeliveryTime: 2, VehicleID: "vehicle-2"}))

	s.assignments[orderID].deadline = time.Now().Add(-time.Second)
	s.sweepAssignmentDeadlines()

	msg1, ok := b.Receive("vehicle-1", time.Second)
	require.True(t, ok)
	var body1 simtypes.OrderConfirmationBody
	require.NoError(t, msg1.Decode(&body1))
	assert.False(t, body1.Confirmed)

	msg2, ok := b.Receive("vehicle-2", time.Second)
	require.True(t, ok)
	var body2 simtypes.OrderConfirmationBody
	require.NoError(t, msg2.Decode(&body2))
	assert.True(t, body2.Confirmed, "lower delivery time wins")

	assert.Empty(t, s.assignments)
}

func TestHandleVehiclePickup_ClearsPendingOrderWithoutStock(t *testing.T) {
	s, b := newTestSupplier(t)
	s.handleWarehouseBuy(deliverTo(t, b, "warehouse-1", s.cfg.ID, simtypes.PerfWarehouseBuy, simtypes.StoreBuyBody{RequestID: 1, Quantity: 50, Product: "A"}))
	_, _ = b.Receive("warehouse-1", time.Second)
	s.handleWarehouseConfirm(deliverTo(t, b, "warehouse-1", s.cfg.ID, simtypes.PerfWarehouseConfirm, simtypes.StoreBuyBody{RequestID: 1, Quantity: 50, Product: "A"}))
	_, _ = b.Receive("vehicle-1", time.Second)
	_, _ = b.Receive("vehicle-2", time.Second)

	var order *simtypes.Order
	for _, p := range s.pendingOrders {
		order = p.order
	}

	s.handleVehiclePickup(deliverTo(t, b, "vehicle-1", s.cfg.ID, simtypes.PerfVehiclePickup, order))

	assert.Empty(t, s.pendingOrders)
}
