package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler metrics
	SchedulerBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetsim_scheduler_batch_size",
			Help:    "Number of events processed in one scheduler batch",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		},
	)

	SchedulerTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetsim_scheduler_tick_duration_seconds",
			Help:    "Time taken to process one scheduler tick",
			Buckets: prometheus.DefBuckets,
		},
	)

	SchedulerEventsReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsim_scheduler_events_received_total",
			Help: "Total number of events received by the scheduler",
		},
	)

	SchedulerEventsProcessedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsim_scheduler_events_processed_total",
			Help: "Total number of events processed by the scheduler",
		},
	)

	SchedulerResimulateRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsim_scheduler_resimulate_requests_total",
			Help: "Total number of simulate_traffic requests issued to the world",
		},
	)

	// Vehicle metrics
	VehicleLoad = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsim_vehicle_load",
			Help: "Current carried load of a vehicle",
		},
		[]string{"vehicle_id"},
	)

	VehicleFuel = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsim_vehicle_fuel",
			Help: "Current fuel level of a vehicle",
		},
		[]string{"vehicle_id"},
	)

	VehicleOrdersCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsim_vehicle_orders_completed_total",
			Help: "Total number of orders delivered by a vehicle",
		},
		[]string{"vehicle_id"},
	)

	// Warehouse / Supplier metrics
	WarehouseStock = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsim_warehouse_stock",
			Help: "Current stock of a product at a warehouse",
		},
		[]string{"warehouse_id", "product"},
	)

	WarehouseReserved = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsim_warehouse_reserved",
			Help: "Currently reserved (committed but unshipped) stock of a product at a warehouse",
		},
		[]string{"warehouse_id", "product"},
	)

	SupplierTotalSuppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsim_supplier_total_supplied_total",
			Help: "Advisory counter of total quantity supplied by a supplier, per product",
		},
		[]string{"supplier_id", "product"},
	)

	StoreStock = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetsim_store_stock",
			Help: "Current stock of a product at a store",
		},
		[]string{"store_id", "product"},
	)

	// Negotiation metrics
	NegotiationOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetsim_negotiation_outcomes_total",
			Help: "Negotiation outcomes by kind and result",
		},
		[]string{"kind", "result"},
	)

	// Routing metrics
	DijkstraCallsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsim_dijkstra_calls_total",
			Help: "Total number of Dijkstra shortest-path queries",
		},
	)

	DijkstraDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetsim_dijkstra_duration_seconds",
			Help:    "Duration of a Dijkstra shortest-path query",
			Buckets: prometheus.DefBuckets,
		},
	)

	AStarPlanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleetsim_astar_plan_duration_seconds",
			Help:    "Duration of an A* task-ordering plan",
			Buckets: prometheus.DefBuckets,
		},
	)

	AStarPlanFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetsim_astar_plan_failed_total",
			Help: "Total number of A* plans that exhausted the open set without reaching a goal",
		},
	)
)

func init() {
	prometheus.MustRegister(
		SchedulerBatchSize,
		SchedulerTickDuration,
		SchedulerEventsReceivedTotal,
		SchedulerEventsProcessedTotal,
		SchedulerResimulateRequestsTotal,
		VehicleLoad,
		VehicleFuel,
		VehicleOrdersCompletedTotal,
		WarehouseStock,
		WarehouseReserved,
		SupplierTotalSuppliedTotal,
		StoreStock,
		NegotiationOutcomesTotal,
		DijkstraCallsTotal,
		DijkstraDuration,
		AStarPlanDuration,
		AStarPlanFailedTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
