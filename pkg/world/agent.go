package world

import (
	"sync"
	"time"

	"github.com/cuemby/fleetsim/pkg/bus"
	"github.com/cuemby/fleetsim/pkg/log"
	"github.com/cuemby/fleetsim/pkg/simtypes"
)

// Agent puts a World on the bus: it answers simulate_traffic requests with
// the traffic_events a simulated window produced. Grounded on
// world_agent.py's TimeDeltaBehaviour, collapsed to the single
// "simulate_traffic" request this repo's Scheduler actually sends (the
// Python original's separate time-delta-tick request has no caller in
// SPEC_FULL's message catalog, so it isn't reproduced here).
type Agent struct {
	bus   *bus.Bus
	id    string
	world *World

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewAgent wires world onto bus b under id, connecting its mailbox.
func NewAgent(b *bus.Bus, id string, world *World) *Agent {
	b.Connect(id)
	return &Agent{bus: b, id: id, world: world, stopCh: make(chan struct{})}
}

// Start launches the agent's receive loop.
func (a *Agent) Start() {
	a.wg.Add(1)
	go a.receiveLoop()
}

// Stop halts the receive loop and waits for it to exit.
func (a *Agent) Stop() {
	close(a.stopCh)
	a.wg.Wait()
}

func (a *Agent) receiveLoop() {
	defer a.wg.Done()
	for {
		select {
		case <-a.stopCh:
			return
		default:
		}
		msg, ok := a.bus.Receive(a.id, 100*time.Millisecond)
		if !ok {
			continue
		}
		switch msg.Performative {
		case simtypes.PerfSimulateTraffic:
			a.handleSimulateTraffic(msg)
		default:
			log.Warn("world: unexpected message performative, discarding")
		}
	}
}

func (a *Agent) handleSimulateTraffic(msg bus.Message) {
	var body simtypes.SimulateTrafficBody
	if err := msg.Decode(&body); err != nil {
		log.Warn("world: malformed simulate_traffic, discarding")
		return
	}
	events := a.world.Simulate(int(body.SimulationTime))
	_ = a.bus.Send(a.id, body.Requester, simtypes.PerfTrafficEvents, simtypes.TrafficEventsBody{Events: events})
}
