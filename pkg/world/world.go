// Package world implements the TrafficModel: it owns the ground-truth
// graph, generates the initial cost matrix deterministically under a seed,
// assigns facility roles to nodes, and advances traffic over simulated time
// windows. Grounded on original_source/world/world.py (grid construction,
// cost-matrix generation, facility assignment, highway edge) generalized
// from its single tick()/traffic() pair into the windowed simulate()
// SPEC_FULL §4.2 calls for.
package world

import (
	"fmt"
	"math/rand"

	"github.com/cuemby/fleetsim/pkg/config"
	"github.com/cuemby/fleetsim/pkg/graph"
	"github.com/cuemby/fleetsim/pkg/seedstore"
	"github.com/cuemby/fleetsim/pkg/simtypes"
)

// Facilities groups node ids by the role they were assigned.
type Facilities struct {
	Warehouses  []int
	Suppliers   []int
	Stores      []int
	GasStations []int
}

// World is the traffic model: a graph plus the RNG state needed to
// reproduce its trajectory from a seed.
type World struct {
	Graph       *graph.Graph
	Width, Height int
	Mode        config.Mode
	MaxCost     float64
	Seed        int
	Facilities  Facilities
	TickCounter int

	rng       *rand.Rand
	probs     config.TrafficProbabilities
	congested map[[2]int]bool // keyed by (min(u,v), max(u,v))
}

// New builds a World from cfg. If cfg.Seed is set, the cost matrix is
// loaded from store under that seed (error if absent, mirroring
// world.py's FileNotFoundError). If unset, the lowest unused integer seed
// is picked and the generated matrix is persisted under it, per
// SPEC_FULL §4.2's "Determinism".
func New(cfg *config.Config, store *seedstore.Store) (*World, error) {
	g := graph.Grid2D(cfg.Width, cfg.Height)

	w := &World{
		Graph:     g,
		Width:     cfg.Width,
		Height:    cfg.Height,
		Mode:      cfg.Mode,
		MaxCost:   cfg.MaxEdgeCost,
		probs:     cfg.Traffic,
		congested: make(map[[2]int]bool),
	}

	seed, matrix, err := w.resolveCostMatrix(cfg, store)
	if err != nil {
		return nil, err
	}
	w.Seed = seed
	w.rng = rand.New(rand.NewSource(int64(seed)))

	w.applyCostMatrix(matrix)
	w.assignFacilities(cfg)

	if cfg.Highway {
		w.addHighwayEdge()
	}

	return w, nil
}

func (w *World) resolveCostMatrix(cfg *config.Config, store *seedstore.Store) (int, seedstore.CostMatrix, error) {
	size := cfg.Width*cfg.Height + 1

	if cfg.Seed != nil {
		seed := *cfg.Seed
		if store == nil {
			return 0, nil, fmt.Errorf("world: seed %d requested but no seed store configured", seed)
		}
		matrix, ok, err := store.Get(seed)
		if err != nil {
			return 0, nil, fmt.Errorf("world: load seed %d: %w", seed, err)
		}
		if !ok {
			return 0, nil, fmt.Errorf("world: seed file for seed %d not found", seed)
		}
		return seed, matrix, nil
	}

	seed := 0
	if store != nil {
		for {
			used, err := store.Has(seed)
			if err != nil {
				return 0, nil, fmt.Errorf("world: check seed %d: %w", seed, err)
			}
			if !used {
				break
			}
			seed++
		}
	}

	rng := rand.New(rand.NewSource(int64(seed)))
	matrix := generateCostMatrix(w.Graph, cfg.Mode, cfg.MaxEdgeCost, size, rng)

	if store != nil {
		if err := store.Put(seed, matrix); err != nil {
			return 0, nil, fmt.Errorf("world: persist seed %d: %w", seed, err)
		}
	}
	return seed, matrix, nil
}

// generateCostMatrix mirrors world.py's _generate_cost_matrix: uniform
// mode draws one weight for every edge, different mode draws independently
// per edge.
func generateCostMatrix(g *graph.Graph, mode config.Mode, maxCost float64, size int, rng *rand.Rand) seedstore.CostMatrix {
	matrix := make(seedstore.CostMatrix, size)
	for i := range matrix {
		matrix[i] = make([]float64, size)
	}

	if mode == config.ModeUniform {
		uniform := float64(rng.Intn(int(maxCost)) + 1)
		for _, e := range g.Edges() {
			matrix[e.From][e.To] = uniform
		}
		return matrix
	}

	for _, e := range g.Edges() {
		matrix[e.From][e.To] = float64(rng.Intn(int(maxCost)) + 1)
	}
	return matrix
}

func (w *World) applyCostMatrix(matrix seedstore.CostMatrix) {
	for _, e := range w.Graph.Edges() {
		if e.From < len(matrix) && e.To < len(matrix[e.From]) {
			e.Weight = matrix[e.From][e.To]
			e.InitialWeight = matrix[e.From][e.To]
		}
	}
}

// assignFacilities shuffles all node ids and hands out roles in
// warehouse/supplier/store/gas_station order, matching world.py's
// _assign_facilities.
func (w *World) assignFacilities(cfg *config.Config) {
	nodes := w.Graph.Nodes()
	ids := make([]int, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	w.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	idx := 0
	take := func(n int) []int {
		out := make([]int, 0, n)
		for i := 0; i < n && idx < len(ids); i++ {
			out = append(out, ids[idx])
			idx++
		}
		return out
	}

	w.Facilities.Warehouses = take(cfg.Warehouse.Count)
	w.Facilities.Suppliers = take(cfg.Supplier.Count)
	w.Facilities.Stores = take(cfg.Store.Count)
	w.Facilities.GasStations = take(cfg.GasStations)

	for _, id := range w.Facilities.Warehouses {
		w.Graph.GetNode(id).Roles.Warehouse = true
	}
	for _, id := range w.Facilities.Suppliers {
		w.Graph.GetNode(id).Roles.Supplier = true
	}
	for _, id := range w.Facilities.Stores {
		w.Graph.GetNode(id).Roles.Store = true
	}
	for _, id := range w.Facilities.GasStations {
		w.Graph.GetNode(id).Roles.GasStation = true
	}
}

// addHighwayEdge adds one weight-1 edge between two random nodes at least
// width apart in Manhattan distance, matching world.py's
// _add_highway_edge.
func (w *World) addHighwayEdge() {
	nodes := w.Graph.Nodes()
	if len(nodes) < 2 {
		return
	}
	for {
		u := nodes[w.rng.Intn(len(nodes))]
		v := nodes[w.rng.Intn(len(nodes))]
		if u.ID == v.ID {
			continue
		}
		if w.manhattanDistance(u.ID, v.ID) >= w.Width {
			w.Graph.AddEdge(u.ID, v.ID, 1, 1000)
			return
		}
	}
}

func (w *World) manhattanDistance(id1, id2 int) int {
	x1, y1 := (id1-1)%w.Width, (id1-1)/w.Width
	x2, y2 := (id2-1)%w.Width, (id2-1)/w.Width
	return abs(x1-x2) + abs(y1-y2)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// GetNode returns a node by id, or nil if absent.
func (w *World) GetNode(id int) *graph.Node {
	return w.Graph.GetNode(id)
}

// GetEdge returns the directed edge u->v, or nil if absent.
func (w *World) GetEdge(u, v int) *graph.Edge {
	return w.Graph.GetEdge(u, v)
}

// edgeChange tracks the last-known weight of a changed edge pair during a
// single Simulate window.
type edgeChange struct {
	u, v    int
	weight  float64
	instant int
}

// Simulate advances the world by `window` discrete steps, rolling onset,
// spread and clear probabilities against edges each step, and returns one
// TrafficEvent per edge whose weight differs from its value at the start of
// the window, carrying the instant (0-based step index) of its last change
// within the window (SPEC_FULL §4.2).
func (w *World) Simulate(window int) []simtypes.TrafficEvent {
	changes := make(map[[2]int]*edgeChange)
	start := make(map[[2]int]float64)
	for _, e := range w.Graph.Edges() {
		start[[2]int{e.From, e.To}] = e.Weight
	}

	for step := 0; step < window; step++ {
		if w.rng.Float64() < w.probs.Onset {
			w.onset(step, changes)
		}
		if len(w.congested) > 0 && w.rng.Float64() < w.probs.Spread {
			w.spread(step, changes)
		}
		if len(w.congested) > 0 && w.rng.Float64() < w.probs.Clear {
			w.clear(step, changes)
		}
		w.TickCounter++
	}

	events := make([]simtypes.TrafficEvent, 0, len(changes))
	for key, c := range changes {
		fwd := w.Graph.GetEdge(key[0], key[1])
		if fwd == nil || c.weight == start[key] {
			continue
		}
		events = append(events, simtypes.TrafficEvent{
			Instant:            c.instant,
			Node1ID:            key[0],
			Node2ID:            key[1],
			NewWeight:          c.weight,
			NewFuelConsumption: fwd.FuelConsumption(1500),
		})
	}
	return events
}

func (w *World) pairKey(u, v int) [2]int {
	if u > v {
		u, v = v, u
	}
	return [2]int{u, v}
}

func (w *World) recordChange(step int, u, v int, weight float64, changes map[[2]int]*edgeChange) {
	e := w.Graph.GetEdge(u, v)
	if e == nil {
		return
	}
	e.Weight = weight
	changes[[2]int{u, v}] = &edgeChange{u: u, v: v, weight: weight, instant: step}
}

func (w *World) onset(step int, changes map[[2]int]*edgeChange) {
	edges := w.Graph.Edges()
	if len(edges) == 0 {
		return
	}
	e := edges[w.rng.Intn(len(edges))]
	increase := float64(w.rng.Intn(5) + 1)
	newWeight := e.Weight + increase
	if newWeight > w.MaxCost {
		newWeight = w.MaxCost
	}
	w.congested[w.pairKey(e.From, e.To)] = true
	w.recordChange(step, e.From, e.To, newWeight, changes)
}

func (w *World) spread(step int, changes map[[2]int]*edgeChange) {
	key := w.randomCongestedKey()
	if key == ([2]int{}) {
		return
	}
	neighbors := w.Graph.Neighbors(key[0])
	if len(neighbors) == 0 {
		return
	}
	target := neighbors[w.rng.Intn(len(neighbors))]
	e := w.Graph.GetEdge(key[0], target)
	if e == nil {
		return
	}
	increase := float64(w.rng.Intn(3) + 1)
	newWeight := e.Weight + increase
	if newWeight > w.MaxCost {
		newWeight = w.MaxCost
	}
	w.congested[w.pairKey(e.From, e.To)] = true
	w.recordChange(step, e.From, e.To, newWeight, changes)
}

func (w *World) clear(step int, changes map[[2]int]*edgeChange) {
	key := w.randomCongestedKey()
	if key == ([2]int{}) {
		return
	}
	e := w.Graph.GetEdge(key[0], key[1])
	if e == nil {
		delete(w.congested, key)
		return
	}
	decrease := float64(w.rng.Intn(3) + 1)
	newWeight := e.Weight - decrease
	if newWeight <= e.InitialWeight {
		newWeight = e.InitialWeight
		delete(w.congested, key)
	}
	w.recordChange(step, e.From, e.To, newWeight, changes)
}

func (w *World) randomCongestedKey() [2]int {
	if len(w.congested) == 0 {
		return [2]int{}
	}
	keys := make([][2]int, 0, len(w.congested))
	for k := range w.congested {
		keys = append(keys, k)
	}
	return keys[w.rng.Intn(len(keys))]
}
