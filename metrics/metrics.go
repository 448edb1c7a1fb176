// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	OrderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "droppers_order_transitions_total",
			Help: "Committed order status transitions by target status",
		},
		[]string{"to"},
	)
	AcceptConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "droppers_accept_conflicts_total",
		Help: "Accept attempts that lost the race for an order",
	})
	RealtimeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "droppers_realtime_connections",
		Help: "Currently connected realtime clients",
	})
	RealtimeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "droppers_realtime_events_total",
			Help: "Events published to realtime rooms",
		},
		[]string{"event"},
	)
	RealtimeDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "droppers_realtime_dropped_clients_total",
		Help: "Clients disconnected because their send queue was full",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		OrderTransitionsTotal,
		AcceptConflictsTotal,
		RealtimeConnections,
		RealtimeEventsTotal,
		RealtimeDroppedTotal,
	)
}
