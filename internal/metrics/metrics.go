package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "roombook"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code class.",
		},
		[]string{"endpoint", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	rpcRequests = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "grpc_request_duration_seconds",
			Help:      "gRPC latency by method and status code.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "code"},
	)

	bookingOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_operations_total",
			Help:      "Booking lifecycle operations by outcome.",
		},
		[]string{"op", "result"},
	)

	conflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conflicts_total",
			Help:      "Conflicts detected by reservation source.",
		},
		[]string{"source"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, rpcRequests, bookingOps, conflicts, notifications)
	})
}

// ObserveHTTP records one served request.
func ObserveHTTP(endpoint, code string, elapsed time.Duration) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
	httpDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveRPC records one unary gRPC call.
func ObserveRPC(method, code string, elapsed time.Duration) {
	rpcRequests.WithLabelValues(method, code).Observe(elapsed.Seconds())
}

// IncBookingOp counts a lifecycle operation; result is ok, conflict,
// invalid, invariant, not_found or error.
func IncBookingOp(op, result string) {
	bookingOps.WithLabelValues(op, result).Inc()
}

// IncConflict counts a conflict found in the given source.
func IncConflict(source string) {
	conflicts.WithLabelValues(source).Inc()
}

// IncNotification counts a notification attempt: delivered, retry or dead.
func IncNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}
