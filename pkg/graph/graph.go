// Package graph implements the directed weighted road network: nodes tagged
// with facility roles, independently-weighted directed edges, and a
// lexicographic (time, fuel) Dijkstra shortest-path query. Results are not
// cached here; pkg/routing's Planner keeps its own per-Plan cache.
package graph

import (
	"container/heap"
	"fmt"
	"math"
)

const (
	baseFuelConsumption = 0.065
	baseVehicleWeightKg = 1500.0
)

// Node is a point in the road network, identified by an integer id.
type Node struct {
	ID    int
	X, Y  int
	Roles Roles
}

// Roles are the boolean facility flags a node may carry; a node may carry
// more than one.
type Roles struct {
	Warehouse  bool
	Supplier   bool
	Store      bool
	GasStation bool
}

func (n *Node) String() string {
	return fmt.Sprintf("Node(%d)", n.ID)
}

// Edge is one direction of travel between two nodes. Edges are added in
// pairs during graph construction but mutated independently thereafter.
type Edge struct {
	From, To     int
	Weight       float64 // current travel time
	InitialWeight float64 // baseline, never mutated after construction
	Distance     float64 // euclidean distance in arbitrary "meters" units
}

// FuelConsumption is a pure function of distance, the edge's current and
// initial weight, and the travelling vehicle's weight. Grounded on
// world/graph.py's calculate_fuel_consumption: traffic above baseline and
// heavier-than-1500kg vehicles both increase consumption.
func (e *Edge) FuelConsumption(vehicleWeightKg float64) float64 {
	trafficFactor := math.Max(0, (e.Weight-e.InitialWeight)/10.0)
	weightFactor := 1 + 0.01*((vehicleWeightKg-baseVehicleWeightKg)/100.0)
	fuel := (e.Distance / 1000.0) * baseFuelConsumption * (1 + trafficFactor) * weightFactor
	return round3(fuel)
}

// Graph is an adjacency-list directed weighted graph over integer node ids.
type Graph struct {
	nodes     map[int]*Node
	edges     map[[2]int]*Edge
	neighbors map[int][]int
	nextID    int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:     make(map[int]*Node),
		edges:     make(map[[2]int]*Edge),
		neighbors: make(map[int][]int),
		nextID:    1,
	}
}

// AddNode inserts a node, assigning it an id if one wasn't already set.
func (g *Graph) AddNode(n *Node) *Node {
	if n.ID == 0 {
		n.ID = g.nextID
	}
	if n.ID >= g.nextID {
		g.nextID = n.ID + 1
	}
	g.nodes[n.ID] = n
	return n
}

// GetNode returns a node by id, or nil if absent.
func (g *Graph) GetNode(id int) *Node {
	return g.nodes[id]
}

// Nodes returns every node in the graph. The order is unspecified.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// AddEdge adds two independent directed edges, u->v and v->u, both with the
// given weight and distance.
func (g *Graph) AddEdge(u, v int, weight, distance float64) {
	fwd := &Edge{From: u, To: v, Weight: weight, InitialWeight: weight, Distance: distance}
	back := &Edge{From: v, To: u, Weight: weight, InitialWeight: weight, Distance: distance}
	g.edges[[2]int{u, v}] = fwd
	g.edges[[2]int{v, u}] = back
	g.neighbors[u] = appendIfMissing(g.neighbors[u], v)
	g.neighbors[v] = appendIfMissing(g.neighbors[v], u)
}

func appendIfMissing(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// GetEdge returns the directed edge from u to v, or nil if none exists.
func (g *Graph) GetEdge(u, v int) *Edge {
	return g.edges[[2]int{u, v}]
}

// Edges returns every directed edge in the graph. The order is unspecified.
func (g *Graph) Edges() []*Edge {
	out := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	return out
}

// Neighbors returns the ids reachable by one directed edge from u.
func (g *Graph) Neighbors(u int) []int {
	return g.neighbors[u]
}

// Grid2D builds a width x height grid graph with orthogonal adjacency,
// node ids 1..width*height assigned row-major, matching world/graph.py's
// grid_2d_graph + relabel_nodes.
func Grid2D(width, height int) *Graph {
	g := New()
	id := func(x, y int) int { return y*width + x + 1 }
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g.AddNode(&Node{ID: id(x, y), X: x, Y: y})
		}
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x+1 < width {
				g.AddEdge(id(x, y), id(x+1, y), 1, 1000)
			}
			if y+1 < height {
				g.AddEdge(id(x, y), id(x, y+1), 1, 1000)
			}
		}
	}
	return g
}

// DijkstraResult is the outcome of a shortest-path query: the node sequence
// walked, total fuel consumed and total time elapsed, both rounded to three
// decimals.
type DijkstraResult struct {
	Path       []int
	TotalFuel  float64
	TotalTime  float64
}

// Dijkstra finds the lexicographically (time, fuel) cheapest path from
// start to target under the vehicle's weight. Returns a zero-length path
// and zero totals if start or target is absent from the graph, mirroring
// world/graph.py's djikstra returning (None, 0.0, 0.0).
func (g *Graph) Dijkstra(start, target int, vehicleWeightKg float64) DijkstraResult {
	if _, ok := g.nodes[start]; !ok {
		return DijkstraResult{}
	}
	if _, ok := g.nodes[target]; !ok {
		return DijkstraResult{}
	}
	if start == target {
		return DijkstraResult{Path: []int{start}}
	}

	dist := map[int]float64{start: 0}
	fuel := map[int]float64{start: 0}
	prev := map[int]int{}
	visited := map[int]bool{}

	pq := &priorityQueue{}
	heap.Init(pq)
	heap.Push(pq, &pqItem{node: start, time: 0, fuel: 0})

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		u := item.node
		if visited[u] {
			continue
		}
		visited[u] = true
		if u == target {
			break
		}
		for _, v := range g.neighbors[u] {
			if visited[v] {
				continue
			}
			e := g.edges[[2]int{u, v}]
			if e == nil {
				continue
			}
			edgeFuel := e.FuelConsumption(vehicleWeightKg)
			newTime := dist[u] + e.Weight
			newFuel := fuel[u] + edgeFuel
			old, seen := dist[v]
			if !seen || newTime < old || (newTime == old && newFuel < fuel[v]) {
				dist[v] = newTime
				fuel[v] = newFuel
				prev[v] = u
				heap.Push(pq, &pqItem{node: v, time: newTime, fuel: newFuel})
			}
		}
	}

	if _, ok := dist[target]; !ok {
		return DijkstraResult{}
	}

	path := []int{target}
	cur := target
	for cur != start {
		p, ok := prev[cur]
		if !ok {
			return DijkstraResult{}
		}
		path = append([]int{p}, path...)
		cur = p
	}

	// Recompute totals from the reconstructed path, as the original does,
	// so the returned totals reflect exactly the traversed edges.
	totalTime, totalFuel := 0.0, 0.0
	for i := 0; i+1 < len(path); i++ {
		e := g.edges[[2]int{path[i], path[i+1]}]
		totalTime += e.Weight
		totalFuel += e.FuelConsumption(vehicleWeightKg)
	}

	return DijkstraResult{
		Path:      path,
		TotalFuel: round3(totalFuel),
		TotalTime: round3(totalTime),
	}
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

// --- priority queue: min-heap ordered by (time, fuel) lexicographically ---

type pqItem struct {
	node       int
	time, fuel float64
	index      int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].time != pq[j].time {
		return pq[i].time < pq[j].time
	}
	return pq[i].fuel < pq[j].fuel
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *priorityQueue) Push(x any) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}
