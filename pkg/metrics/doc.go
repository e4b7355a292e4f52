/*
Package metrics provides Prometheus metrics collection and exposition for
fleetsim.

Every agent kind (scheduler, vehicle, warehouse, supplier, store) and the
routing layer (Dijkstra, A*) push their own metrics inline, at the point
their underlying state changes — there is no separate polling collector.
Metrics are exposed via an HTTP endpoint (Handler) for scraping by
Prometheus.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegisterer                 │          │
	│  │  - MustRegister at package init             │          │
	│  └────────────────────────────────────────────┘          │
	│                        ▲                                  │
	│         ┌──────────────┼──────────────┐                   │
	│         │              │              │                   │
	│  ┌──────────┐   ┌─────────────┐  ┌───────────┐            │
	│  │ Scheduler │   │  Vehicle /  │  │  Routing  │            │
	│  │  metrics  │   │  Warehouse /│  │ (Dijkstra/│            │
	│  │           │   │  Store /    │  │   A*)     │            │
	│  │           │   │  Supplier   │  │  metrics  │            │
	│  └──────────┘   └─────────────┘  └───────────┘            │
	│                                                            │
	└──────────────────────────┬─────────────────────────────────┘
	                           │
	                    GET /metrics
	                           │
	                    Prometheus server

# Metric Catalog

Scheduler:

	fleetsim_scheduler_batch_size
	  Type: Histogram
	  Description: Number of events processed in one scheduler batch.
	  Example: fleetsim_scheduler_batch_size_sum / fleetsim_scheduler_batch_size_count

	fleetsim_scheduler_tick_duration_seconds
	  Type: Histogram
	  Description: Time taken to process one scheduler tick.

	fleetsim_scheduler_events_received_total
	fleetsim_scheduler_events_processed_total
	  Type: Counter
	  Description: Arrival/transit events received vs. actually processed.
	  A sustained gap between the two indicates a scheduler backlog.

	fleetsim_scheduler_resimulate_requests_total
	  Type: Counter
	  Description: simulate_traffic requests issued to the world agent.

Vehicles:

	fleetsim_vehicle_load{vehicle_id}
	fleetsim_vehicle_fuel{vehicle_id}
	  Type: Gauge
	  Description: Current carried load / remaining fuel.

	fleetsim_vehicle_orders_completed_total{vehicle_id}
	  Type: Counter
	  Description: Orders delivered by this vehicle.

Warehouses, suppliers, stores:

	fleetsim_warehouse_stock{warehouse_id, product}
	fleetsim_warehouse_reserved{warehouse_id, product}
	  Type: Gauge
	  Description: On-hand stock, and stock already committed to an
	  accepted-but-not-yet-picked-up order.

	fleetsim_supplier_total_supplied_total{supplier_id, product}
	  Type: Counter
	  Description: Advisory running total of quantity supplied. Suppliers
	  have no stock ceiling, so this is observability only, never read
	  back by the supplier itself.

	fleetsim_store_stock{store_id, product}
	  Type: Gauge
	  Description: Current stock of a product at a store.

Negotiation:

	fleetsim_negotiation_outcomes_total{kind, result}
	  Type: Counter
	  Description: Outcomes of buy/vehicle-assignment negotiations, split
	  by kind ("store-buy", "warehouse-buy", "vehicle-assignment") and
	  result ("confirmed" or "no-candidates" for buys, "assigned" or
	  "unassignable" for vehicle assignment).

Routing:

	fleetsim_dijkstra_calls_total
	fleetsim_dijkstra_duration_seconds
	  Type: Counter / Histogram
	  Description: Shortest-path query volume and latency.

	fleetsim_astar_plan_duration_seconds
	fleetsim_astar_plan_failed_total
	  Type: Histogram / Counter
	  Description: Vehicle route-ordering plan latency, and plans that
	  exhausted the open set without reaching every order's destination.

# Timing Helper

Timer wraps a start time; ObserveDuration/ObserveDurationVec record the
elapsed time to a histogram at the call site:

	timer := metrics.NewTimer()
	res := g.Dijkstra(from, to, vehicleWeightKg)
	timer.ObserveDuration(metrics.DijkstraDuration)

# Health and Readiness

HealthHandler/ReadyHandler/LivenessHandler expose JSON health endpoints
independent of the Prometheus registry, backed by RegisterComponent/
UpdateComponent. Readiness requires "world", "scheduler", and "bus" to all
be registered healthy — the three components a run cannot proceed without.

# See Also

  - Prometheus documentation: https://prometheus.io/docs/
  - Prometheus client library: https://github.com/prometheus/client_golang
  - PromQL tutorial: https://prometheus.io/docs/prometheus/latest/querying/basics/
*/
package metrics
