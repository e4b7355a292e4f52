// Package simulation wires a complete run: one World behind a bus agent,
// one Scheduler, and N Vehicles/Warehouses/Stores/Suppliers, all sharing a
// single in-process pkg/bus.Bus. Grounded on pkg/manager/manager.go's role
// as the thing that owns and sequences every subsystem's lifecycle
// (construct → start → ... → shutdown), generalized from a Raft-backed
// cluster manager to a single-process simulation coordinator, and on
// test/integration's habit of wiring real components together rather than
// mocking collaborators.
package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/fleetsim/pkg/bus"
	"github.com/cuemby/fleetsim/pkg/config"
	"github.com/cuemby/fleetsim/pkg/scheduler"
	"github.com/cuemby/fleetsim/pkg/seedstore"
	"github.com/cuemby/fleetsim/pkg/store"
	"github.com/cuemby/fleetsim/pkg/supplier"
	"github.com/cuemby/fleetsim/pkg/vehicle"
	"github.com/cuemby/fleetsim/pkg/warehouse"
	"github.com/cuemby/fleetsim/pkg/world"
)

const (
	schedulerID = "scheduler-1"
	worldID     = "world-1"
)

// agent is the common lifecycle every spawned agent exposes.
type agent interface {
	Start()
	Stop()
}

// Simulation is a fully wired run: every agent sharing one bus, started
// and stopped together.
type Simulation struct {
	bus        *bus.Bus
	world      *world.World
	worldAgent *world.Agent
	scheduler  *scheduler.Scheduler
	rest       []agent // everything but the world agent and scheduler
}

// Build constructs every agent described by cfg and wires them onto a
// fresh bus, but does not start them. seedStore backs the World's cost
// matrix persistence (SPEC_FULL §4.2's determinism requirement).
func Build(cfg *config.Config, seedStore *seedstore.Store) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	w, err := world.New(cfg, seedStore)
	if err != nil {
		return nil, fmt.Errorf("build world: %w", err)
	}

	b := bus.New()
	sim := &Simulation{bus: b, world: w}

	warehouseIDs := idList("warehouse", cfg.Warehouse.Count)
	supplierIDs := idList("supplier", cfg.Supplier.Count)
	storeIDs := idList("store", cfg.Store.Count)
	vehicleIDs := idList("vehicle", cfg.Vehicle.Count)

	locations := facilityLocations(w.Facilities.Warehouses, warehouseIDs)
	mergeLocations(locations, facilityLocations(w.Facilities.Suppliers, supplierIDs))
	mergeLocations(locations, facilityLocations(w.Facilities.Stores, storeIDs))

	negTimeout := time.Duration(cfg.NegotiationTimeout * float64(time.Second))
	vehTimeout := time.Duration(cfg.VehicleTimeout * float64(time.Second))
	resupplyInterval := time.Duration(cfg.Warehouse.ResupplyCheckInterval * float64(time.Second))
	buyFrequency := time.Duration(cfg.Store.BuyFrequency * float64(time.Second))

	sim.worldAgent = world.NewAgent(b, worldID, w)

	sim.scheduler = scheduler.New(b, scheduler.Config{
		ID:                 schedulerID,
		WorldID:            worldID,
		VehicleIDs:         vehicleIDs,
		StoreIDs:           storeIDs,
		WindowLength:       cfg.WindowLength,
		SimulationInterval: time.Duration(cfg.SimulationInterval * float64(time.Second)),
	})

	startLocation := 1
	if len(w.Facilities.Warehouses) > 0 {
		startLocation = w.Facilities.Warehouses[0]
	}
	for _, id := range vehicleIDs {
		v := vehicle.New(b, w.Graph, vehicle.Config{
			ID:            id,
			MaxFuel:       cfg.Vehicle.MaxFuel,
			Capacity:      cfg.Vehicle.Capacity,
			MaxOrders:     cfg.Vehicle.MaxOrders,
			WeightKg:      cfg.Vehicle.WeightKg,
			StartLocation: startLocation,
		})
		sim.rest = append(sim.rest, v)
	}

	for i, id := range warehouseIDs {
		wh := warehouse.New(b, warehouse.Config{
			ID:                    id,
			Location:              w.Facilities.Warehouses[i],
			InitialStock:          map[string]int{"A": cfg.Warehouse.MaxCapacity / 2},
			MaxCapacity:           cfg.Warehouse.MaxCapacity,
			ResupplyThreshold:     cfg.Warehouse.ResupplyThreshold,
			ResupplyBatch:         cfg.Warehouse.ResupplyBatch,
			ResupplyCheckInterval: resupplyInterval,
			NegotiationTimeout:    negTimeout,
			VehicleTimeout:        vehTimeout,
			SupplierIDs:           supplierIDs,
			VehicleIDs:            vehicleIDs,
			PeerLocations:         locations,
			Graph:                 w.Graph,
			WeightKg:              cfg.Vehicle.WeightKg,
		})
		sim.rest = append(sim.rest, wh)
	}

	for i, id := range supplierIDs {
		sp := supplier.New(b, supplier.Config{
			ID:             id,
			Location:       w.Facilities.Suppliers[i],
			VehicleTimeout: vehTimeout,
			VehicleIDs:     vehicleIDs,
			PeerLocations:  locations,
			Graph:          w.Graph,
			WeightKg:       cfg.Vehicle.WeightKg,
		})
		sim.rest = append(sim.rest, sp)
	}

	for i, id := range storeIDs {
		st := store.New(b, store.Config{
			ID:                 id,
			Location:           w.Facilities.Stores[i],
			Products:           []string{"A"},
			MaxBuyQuantity:     cfg.Store.BuyQuantity,
			BuyFrequency:       buyFrequency,
			BuyProbability:     cfg.Store.BuyProbability,
			NegotiationTimeout: negTimeout,
			WarehouseIDs:       warehouseIDs,
			PeerLocations:      locations,
			Graph:              w.Graph,
			WeightKg:           cfg.Vehicle.WeightKg,
		})
		sim.rest = append(sim.rest, st)
	}

	return sim, nil
}

// Start launches every agent. The world agent and scheduler start first so
// vehicles have a bootstrap arrival and an initial traffic window waiting
// for them.
func (s *Simulation) Start() {
	s.worldAgent.Start()
	s.scheduler.Start()
	for _, a := range s.rest {
		a.Start()
	}
}

// Stop halts every agent.
func (s *Simulation) Stop() {
	for _, a := range s.rest {
		a.Stop()
	}
	s.scheduler.Stop()
	s.worldAgent.Stop()
}

// Run starts the simulation, lets it run for duration, then stops it.
func (s *Simulation) Run(ctx context.Context, duration time.Duration) {
	s.Start()
	defer s.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(duration):
	}
}

// World returns the underlying World model, for callers that need to
// inspect final grid/facility state after a run (e.g. scenario tests).
func (s *Simulation) World() *world.World {
	return s.world
}

func idList(prefix string, n int) []string {
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = fmt.Sprintf("%s-%d", prefix, i+1)
	}
	return ids
}

func facilityLocations(nodes []int, ids []string) map[string]int {
	out := make(map[string]int, len(ids))
	for i, id := range ids {
		if i < len(nodes) {
			out[id] = nodes[i]
		}
	}
	return out
}

func mergeLocations(dst, src map[string]int) {
	for k, v := range src {
		dst[k] = v
	}
}
