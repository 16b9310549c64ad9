// Package metrics holds the process prometheus collectors
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every collector name
const Namespace = "pulseboard"

// Metrics holds all collectors; a nil *Metrics is a valid no op sink
type Metrics struct {
	reg *prometheus.Registry

	StageRuns     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	StageRows     *prometheus.CounterVec
	LeaseSkips    *prometheus.CounterVec

	IngestBatches *prometheus.CounterVec
	IngestRows    *prometheus.CounterVec
	IngestDropped *prometheus.CounterVec

	EntitiesResolved *prometheus.CounterVec
	EntityCollisions prometheus.Counter

	HTTPRequests *prometheus.CounterVec
}

// New registers every collector on a fresh registry
// go and process collectors are included so /metrics is useful on its own
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,
		StageRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rollup_stage_runs_total",
			Help:      "Rollup stage executions by outcome",
		}, []string{"stage", "status"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "rollup_stage_duration_seconds",
			Help:      "Wall time of one rollup stage run",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"stage"}),
		StageRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rollup_rows_written_total",
			Help:      "Aggregate rows written per stage",
		}, []string{"stage"}),
		LeaseSkips: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rollup_lease_skips_total",
			Help:      "Stage runs skipped because another worker held the lease",
		}, []string{"stage"}),
		IngestBatches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ingest_batches_total",
			Help:      "Normalized batches staged per source",
		}, []string{"source"}),
		IngestRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ingest_rows_total",
			Help:      "Daily metric rows staged per source",
		}, []string{"source"}),
		IngestDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ingest_dropped_total",
			Help:      "Source records dropped during normalization",
		}, []string{"source", "reason"}),
		EntitiesResolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "entities_resolved_total",
			Help:      "Canonical entity resolutions per entity type",
		}, []string{"entity_type"}),
		EntityCollisions: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "entity_collisions_total",
			Help:      "Distinct source ids that resolved to an existing canonical id",
		}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status class",
		}, []string{"method", "route", "class"}),
	}
}

// Registry exposes the underlying registry (tests gather from it)
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveStage records one stage run
func (m *Metrics) ObserveStage(stage, status string, took time.Duration, rows int) {
	if m == nil {
		return
	}
	m.StageRuns.WithLabelValues(stage, status).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(took.Seconds())
	if rows > 0 {
		m.StageRows.WithLabelValues(stage).Add(float64(rows))
	}
}

// LeaseSkipped counts a stage skipped on a held lease
func (m *Metrics) LeaseSkipped(stage string) {
	if m == nil {
		return
	}
	m.LeaseSkips.WithLabelValues(stage).Inc()
}

// Ingested records one staged batch
func (m *Metrics) Ingested(source string, rows int, dropped map[string]int) {
	if m == nil {
		return
	}
	m.IngestBatches.WithLabelValues(source).Inc()
	m.IngestRows.WithLabelValues(source).Add(float64(rows))
	for reason, n := range dropped {
		m.IngestDropped.WithLabelValues(source, reason).Add(float64(n))
	}
}

// Resolved counts entities mapped for one type
func (m *Metrics) Resolved(entityType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EntitiesResolved.WithLabelValues(entityType).Add(float64(n))
}

// Collided counts canonical id collisions
func (m *Metrics) Collided(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EntityCollisions.Add(float64(n))
}

// Request counts one HTTP request
func (m *Metrics) Request(method, route string, status int) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, statusClass(status)).Inc()
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
