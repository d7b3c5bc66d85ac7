// Package metrics provides Prometheus metrics for the meta query layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache names used as the "cache" label.
const (
	CacheEntity = "entity"
	CacheQuery  = "query"
	CacheToken  = "token"
)

// Metrics holds the counters shared by the object cache and storage layers.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	CacheRequestsTotal   *prometheus.CounterVec
	StorageQueriesTotal  *prometheus.CounterVec
	StorageQueryDuration *prometheus.HistogramVec
	StorageErrorsTotal   *prometheus.CounterVec
}

// New creates the metrics and registers them with reg. A nil reg registers
// with the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CacheRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaquery_cache_requests_total",
				Help: "Total number of object cache lookups",
			},
			[]string{"cache", "result"},
		),
		StorageQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaquery_storage_queries_total",
				Help: "Total number of storage round trips",
			},
			[]string{"op"},
		),
		StorageQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "metaquery_storage_query_duration_seconds",
				Help:    "Duration of storage round trips in seconds",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"op"},
		),
		StorageErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "metaquery_storage_errors_total",
				Help: "Total number of failed storage round trips",
			},
			[]string{"op"},
		),
	}
}

// CacheHit records a hit on the named cache.
func (m *Metrics) CacheHit(cache string) {
	if m == nil {
		return
	}
	m.CacheRequestsTotal.WithLabelValues(cache, "hit").Inc()
}

// CacheMiss records a miss on the named cache.
func (m *Metrics) CacheMiss(cache string) {
	if m == nil {
		return
	}
	m.CacheRequestsTotal.WithLabelValues(cache, "miss").Inc()
}

// StorageQuery records one storage round trip.
func (m *Metrics) StorageQuery(op string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.StorageQueriesTotal.WithLabelValues(op).Inc()
	m.StorageQueryDuration.WithLabelValues(op).Observe(took.Seconds())
	if err != nil {
		m.StorageErrorsTotal.WithLabelValues(op).Inc()
	}
}
