package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 요청 지표
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cpportal_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cpportal_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// 자료 상태 전이
	MaterialTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cp_material_transitions_total",
			Help: "Persisted CP material status transitions",
		},
		[]string{"from", "to", "action"},
	)

	// 거부된 상태 전이 (검증 실패 포함)
	MaterialTransitionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cp_material_transition_failures_total",
			Help: "CP material actions refused by the lifecycle",
		},
		[]string{"from", "action", "reason"},
	)

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cpportal_cache_hits_total",
			Help: "LRU cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cpportal_cache_misses_total",
			Help: "LRU cache misses",
		},
		[]string{"cache"},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cpportal_websocket_clients",
			Help: "Connected websocket clients",
		},
	)

	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cpportal_uploads_total",
			Help: "Image uploads by storage driver and result",
		},
		[]string{"driver", "result"},
	)
)

// RecordRequest 요청 지표 기록
func RecordRequest(method, route, status string, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
