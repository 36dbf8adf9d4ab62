package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SnapshotsDeliveredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_snapshots_delivered_total",
		Help: "Total number of collection snapshots delivered to subscribers",
	}, []string{"collection"})

	FeedErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_delivery_errors_total",
		Help: "Total number of failed snapshot reads or handler panics",
	}, []string{"collection"})

	RecordsMalformedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "records_malformed_total",
		Help: "Total number of records dropped or defaulted during normalization",
	}, []string{"collection"})

	ViewRecomputationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_view_recomputations_total",
		Help: "Total number of derived view rebuilds",
	})

	ViewRecomputeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dashboard_view_recompute_latency_seconds",
		Help:    "Latency of derived view rebuilds",
		Buckets: prometheus.DefBuckets,
	})

	EventsDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dashboard_events_discarded_total",
		Help: "Total number of snapshots discarded because the dashboard was stopped",
	})

	DashboardOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_orders",
		Help: "Number of orders in the current view",
	})

	DashboardPendingOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_pending_orders",
		Help: "Number of pending or preparing orders in the current view",
	})

	DashboardCatalogSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_catalog_size",
		Help: "Number of products in the current view",
	})

	DashboardTotalSales = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dashboard_total_sales",
		Help: "Sum of order totals in the current view",
	})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of order status transitions issued",
	}, []string{"status", "result"})

	CatalogOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_operations_total",
		Help: "Total number of catalog create/remove operations",
	}, []string{"operation", "result"})

	ChangeEventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "change_events_consumed_total",
		Help: "Total number of document change events consumed from the broker",
	}, []string{"transport"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
