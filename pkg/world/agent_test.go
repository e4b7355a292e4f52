package world

import (
	"testing"
	"time"

	"github.com/cuemby/fleetsim/pkg/bus"
	"github.com/cuemby/fleetsim/pkg/config"
	"github.com/cuemby/fleetsim/pkg/simtypes"
	"github.com/stretchr/testify/require"
)

func TestAgent_AnswersSimulateTrafficWithEvents(t *testing.T) {
	cfg := config.Default()
	cfg.Width, cfg.Height = 4, 4
	w, err := New(cfg, testStore(t))
	require.NoError(t, err)

	b := bus.New()
	b.Connect("scheduler-1")
	a := NewAgent(b, "world-1", w)
	a.Start()
	defer a.Stop()

	require.NoError(t, b.Send("scheduler-1", "world-1", simtypes.PerfSimulateTraffic, simtypes.SimulateTrafficBody{
		SimulationTime: 50,
		Requester:      "scheduler-1",
	}))

	msg, ok := b.Receive("scheduler-1", 2*time.Second)
	require.True(t, ok)
	require.Equal(t, simtypes.PerfTrafficEvents, msg.Performative)
	var body simtypes.TrafficEventsBody
	require.NoError(t, msg.Decode(&body))
}
