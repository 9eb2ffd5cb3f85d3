// Package metrics provides Prometheus metrics for eventcore
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nainya/eventcore/pkg/hlc"
)

// Metrics holds all Prometheus metrics for eventcore. It implements the
// recorder interfaces of the clock, layout and index packages.
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Clock metrics
	ClockUpdatesTotal  *prometheus.CounterVec
	ClockCounter       prometheus.Gauge
	TimeRefreshesTotal *prometheus.CounterVec

	// Layout metrics
	TypeResolutionsTotal *prometheus.CounterVec

	// Index metrics
	IndexResolutionsTotal *prometheus.CounterVec
	IndexQueriesTotal     *prometheus.CounterVec

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time

	registry *prometheus.Registry
}

// NewMetrics creates all metrics on a fresh registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}

// NewMetricsWith creates all metrics and registers them with reg
func NewMetricsWith(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		ServerStartTime: time.Now(),
		registry:        reg,
	}

	// gRPC request metrics
	m.GrpcRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventcore_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventcore_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventcore_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	// Clock metrics
	m.ClockUpdatesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventcore_clock_updates_total",
			Help: "Total number of clock updates by kind (local, receive) and status",
		},
		[]string{"kind", "status"},
	)

	m.ClockCounter = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventcore_clock_logical_counter",
			Help: "Logical counter of the last issued timestamp",
		},
	)

	m.TimeRefreshesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventcore_time_refreshes_total",
			Help: "Total number of physical time refresh attempts by source and status",
		},
		[]string{"source", "status"},
	)

	// Layout metrics
	m.TypeResolutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventcore_layout_resolutions_total",
			Help: "Total number of type handler lookups by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// Index metrics
	m.IndexResolutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventcore_index_resolutions_total",
			Help: "Total number of index requests by engine, capability and outcome",
		},
		[]string{"engine", "capability", "outcome"},
	)

	m.IndexQueriesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventcore_index_queries_total",
			Help: "Total number of collection queries by entity type and path (index, scan)",
		},
		[]string{"entity_type", "path"},
	)

	// Server metrics
	m.ServerUptimeSeconds = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "eventcore_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	return m
}

// Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RunUptime updates the uptime gauge every interval until stop is closed
func (m *Metrics) RunUptime(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
		}
	}
}

// RecordGrpcRequest records a gRPC request with its status
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordClockUpdate records one clock transition and the resulting counter
func (m *Metrics) RecordClockUpdate(kind string, ts hlc.HybridTimestamp, err error) {
	if err != nil {
		m.ClockUpdatesTotal.WithLabelValues(kind, "error").Inc()
		return
	}
	m.ClockUpdatesTotal.WithLabelValues(kind, "success").Inc()
	m.ClockCounter.Set(float64(ts.LogicalCounter))
}

// TimeRefreshed implements hlc.RefreshRecorder
func (m *Metrics) TimeRefreshed(source string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.TimeRefreshesTotal.WithLabelValues(source, status).Inc()
}

// TypeResolved implements layout.Recorder
func (m *Metrics) TypeResolved(kind, outcome string) {
	m.TypeResolutionsTotal.WithLabelValues(kind, outcome).Inc()
}

// IndexResolved implements index.Recorder
func (m *Metrics) IndexResolved(engine, capability, outcome string) {
	m.IndexResolutionsTotal.WithLabelValues(engine, capability, outcome).Inc()
}

// QueryServed implements index.Recorder
func (m *Metrics) QueryServed(entityType, path string) {
	m.IndexQueriesTotal.WithLabelValues(entityType, path).Inc()
}
