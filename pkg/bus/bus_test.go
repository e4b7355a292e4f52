package bus

import (
	"testing"
	"time"

	"github.com/cuemby/fleetsim/pkg/simtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	b := New()
	b.Connect("vehicle-1")

	err := b.Send("warehouse-1", "vehicle-1", simtypes.PerfOrderProposal, simtypes.Order{ID: 42})
	require.NoError(t, err)

	msg, ok := b.Receive("vehicle-1", time.Second)
	require.True(t, ok)
	assert.Equal(t, simtypes.PerfOrderProposal, msg.Performative)

	var order simtypes.Order
	require.NoError(t, msg.Decode(&order))
	assert.Equal(t, 42, order.ID)
}

func TestSendToUnknownRecipientIsDropped(t *testing.T) {
	b := New()
	err := b.Send("a", "ghost", simtypes.PerfStoreBuy, simtypes.StoreBuyBody{})
	assert.NoError(t, err)
}

func TestReceiveTimesOutOnEmptyMailbox(t *testing.T) {
	b := New()
	b.Connect("store-1")
	_, ok := b.Receive("store-1", 10*time.Millisecond)
	assert.False(t, ok)
}

func TestOrderingPreservedBetweenTwoAgents(t *testing.T) {
	b := New()
	b.Connect("vehicle-1")

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Send("warehouse-1", "vehicle-1", simtypes.PerfOrderProposal, simtypes.Order{ID: i}))
	}

	for i := 0; i < 5; i++ {
		msg, ok := b.Receive("vehicle-1", time.Second)
		require.True(t, ok)
		var order simtypes.Order
		require.NoError(t, msg.Decode(&order))
		assert.Equal(t, i, order.ID)
	}
}

func TestMailboxNeverDropsUnderBurst(t *testing.T) {
	b := New()
	b.Connect("store-1")

	const n = mailboxBuffer * 3
	for i := 0; i < n; i++ {
		require.NoError(t, b.Send("warehouse-1", "store-1", simtypes.PerfWarehouseAccept, simtypes.StoreBuyBody{RequestID: i}))
	}

	received := 0
	for {
		_, ok := b.Receive("store-1", 20*time.Millisecond)
		if !ok {
			break
		}
		received++
	}
	assert.Equal(t, n, received)
}
