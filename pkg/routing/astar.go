// Package routing implements the A*-over-task-orderings planner that, given
// a starting node and a set of pickup/delivery orders, searches best-first
// for a low-time visiting sequence that never exceeds vehicle capacity or
// fuel. The heuristic is inadmissible, so the sequence returned is not
// guaranteed to be the minimum-time one. Grounded
// on veiculos/algoritmo_tarefas.py's TreeNode / A_star_task_algorithm /
// calculate_heuristic.
package routing

import (
	"container/heap"
	"math"

	"github.com/cuemby/fleetsim/pkg/graph"
	"github.com/cuemby/fleetsim/pkg/metrics"
	"github.com/cuemby/fleetsim/pkg/simtypes"
)

// LambdaPenalty is the heuristic's active-task penalty coefficient.
const LambdaPenalty = 2.0

// Result is the outcome of a Plan call: the node sequence to visit, the
// order id serviced at each step (0 if none), and the total planned time.
// A nil Route with TotalTime == +Inf means the open set was exhausted
// without a goal (SPEC_FULL §4.3's "Termination").
type Result struct {
	Route     []simtypes.RouteStep
	TotalTime float64
}

// point is one pickup or delivery opportunity reachable from a tree node.
type point struct {
	location  int
	orderID   int
	quantity  int
	time      float64
	isPickup  bool
}

type treeNode struct {
	location            int
	g, h                float64
	depth               int
	quantity            int
	initialPointsReached map[[2]int]bool // (orderID, location) pickups done
	endPointsReached     map[[2]int]bool // (orderID, location) drops done
	parent               *treeNode
	viaOrderID           int // order serviced arriving at this node (0 = none)
	seq                  int // insertion sequence, for tie-breaking
}

func (n *treeNode) f() float64 { return n.g + n.h }

// Planner runs A* over task orderings for one graph, caching Dijkstra
// results within a single Plan invocation. The cache is cleared at the
// start of every Plan call (SPEC_FULL §4.3's "Route cache").
type Planner struct {
	Graph           *graph.Graph
	VehicleWeightKg float64
	dijkstraCache   map[[2]int]graph.DijkstraResult
}

// NewPlanner returns a planner bound to the given graph and vehicle weight.
func NewPlanner(g *graph.Graph, vehicleWeightKg float64) *Planner {
	return &Planner{Graph: g, VehicleWeightKg: vehicleWeightKg}
}

func (p *Planner) dijkstra(from, to int) graph.DijkstraResult {
	if p.dijkstraCache == nil {
		p.dijkstraCache = make(map[[2]int]graph.DijkstraResult)
	}
	key := [2]int{from, to}
	if res, ok := p.dijkstraCache[key]; ok {
		return res
	}
	timer := metrics.NewTimer()
	res := p.Graph.Dijkstra(from, to, p.VehicleWeightKg)
	timer.ObserveDuration(metrics.DijkstraDuration)
	metrics.DijkstraCallsTotal.Inc()
	p.dijkstraCache[key] = res
	return res
}

// ClearCache drops all memoized Dijkstra results, forcing fresh queries on
// the next Plan call.
func (p *Planner) ClearCache() {
	p.dijkstraCache = nil
}

// Plan runs an A* search for a low-time ordering of pickups/deliveries for
// `orders` starting from `start`, subject to `capacity` and `maxFuel`; with
// the inadmissible heuristic the first goal reached is returned, which is
// not necessarily the minimum-time ordering. Returns a
// nil Route and TotalTime == +Inf if no feasible ordering exists.
func (p *Planner) Plan(start int, orders []*simtypes.Order, capacity int, maxFuel float64) Result {
	p.ClearCache()
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.AStarPlanDuration)

	if len(orders) == 0 {
		return Result{Route: nil, TotalTime: 0}
	}

	avgCost := averageDeliverTime(orders)

	root := &treeNode{
		location:             start,
		g:                    0,
		initialPointsReached: map[[2]int]bool{},
		endPointsReached:     map[[2]int]bool{},
	}
	root.h = heuristic(len(orders), 0, 0, avgCost)

	targetDepth := 2 * len(orders)

	open := &nodeHeap{}
	heap.Init(open)
	seq := 0
	heap.Push(open, root)

	for open.Len() > 0 {
		current := heap.Pop(open).(*treeNode)

		if current.depth == targetDepth {
			return Result{Route: reconstruct(current), TotalTime: current.g}
		}

		for _, pt := range availablePoints(p, current, orders, capacity, maxFuel) {
			child := &treeNode{
				location:   pt.location,
				parent:     current,
				depth:      current.depth + 1,
				viaOrderID: pt.orderID,
				g:          current.g + pt.time,
				quantity:   current.quantity,
			}
			child.initialPointsReached = cloneSet(current.initialPointsReached)
			child.endPointsReached = cloneSet(current.endPointsReached)
			if pt.isPickup {
				child.initialPointsReached[[2]int{pt.orderID, pt.location}] = true
				child.quantity += pt.quantity
			} else {
				child.endPointsReached[[2]int{pt.orderID, pt.location}] = true
				child.quantity -= pt.quantity
			}
			child.h = heuristic(len(orders), len(child.endPointsReached), len(child.initialPointsReached), avgCost)
			seq++
			child.seq = seq
			heap.Push(open, child)
		}
	}

	metrics.AStarPlanFailedTotal.Inc()
	return Result{Route: nil, TotalTime: math.Inf(1)}
}

func averageDeliverTime(orders []*simtypes.Order) float64 {
	total := 0.0
	for _, o := range orders {
		total += o.DeliverTime
	}
	return total / float64(len(orders))
}

// heuristic implements h(n) = avg_cost_per_task*(total-completed) -
// lambda*active, SPEC_FULL §4.3 ("intentionally inadmissible").
func heuristic(totalTasks, completedTasks, initialPointsReached int, avgCost float64) float64 {
	activeTasks := initialPointsReached - completedTasks
	return avgCost*float64(totalTasks-completedTasks) - LambdaPenalty*float64(activeTasks)
}

func availablePoints(p *Planner, n *treeNode, orders []*simtypes.Order, capacity int, maxFuel float64) []point {
	var out []point
	for _, o := range orders {
		key := [2]int{o.ID, o.SenderLocation}
		if !n.initialPointsReached[key] {
			if o.Quantity+n.quantity > capacity {
				continue
			}
			res := p.dijkstra(n.location, o.SenderLocation)
			if res.TotalFuel <= maxFuel {
				out = append(out, point{location: o.SenderLocation, orderID: o.ID, quantity: o.Quantity, time: res.TotalTime, isPickup: true})
			}
			continue
		}
		dropKey := [2]int{o.ID, o.ReceiverLocation}
		if !n.endPointsReached[dropKey] {
			res := p.dijkstra(n.location, o.ReceiverLocation)
			if res.TotalFuel <= maxFuel {
				out = append(out, point{location: o.ReceiverLocation, orderID: o.ID, quantity: o.Quantity, time: res.TotalTime, isPickup: false})
			}
		}
	}
	return out
}

func reconstruct(n *treeNode) []simtypes.RouteStep {
	var steps []simtypes.RouteStep
	for cur := n; cur.parent != nil; cur = cur.parent {
		steps = append([]simtypes.RouteStep{{NodeID: cur.location, OrderID: cur.viaOrderID}}, steps...)
	}
	return steps
}

func cloneSet(s map[[2]int]bool) map[[2]int]bool {
	out := make(map[[2]int]bool, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// nodeHeap is a min-heap over treeNode.f(), tie-broken by insertion
// sequence — the Go equivalent of Python's (f, id(node), node) tuple
// ordering in queue.PriorityQueue.
type nodeHeap []*treeNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].f() != h[j].f() {
		return h[i].f() < h[j].f()
	}
	return h[i].seq < h[j].seq
}
func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x any)   { *h = append(*h, x.(*treeNode)) }
func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
