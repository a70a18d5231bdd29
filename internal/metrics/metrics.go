package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	AICallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "therapy_ai_calls_total",
		Help: "Generative AI calls by operation and outcome",
	}, []string{"operation", "outcome"})
	AICallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "therapy_ai_call_duration_seconds",
		Help:    "Generative AI call latency in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"operation"})

	TasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "therapy_tasks_total",
		Help: "Background tasks processed by kind and outcome",
	}, []string{"kind", "outcome"})

	SessionTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "therapy_session_transitions_total",
		Help: "Therapy session status transitions",
	}, []string{"to"})

	SSEConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "therapy_sse_connections",
		Help: "Current number of open event streams",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration,
		AICallsTotal, AICallDuration,
		TasksTotal, SessionTransitionsTotal, SSEConnections,
	)
}
