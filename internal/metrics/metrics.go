// Package metrics exposes Prometheus counters for the query pipeline and
// ingestion.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder wraps the Prometheus collectors used across the pipeline. A nil
// *Recorder is valid and records nothing, so metrics stay optional in tests
// and one-shot CLI runs.
type Recorder struct {
	queriesTotal   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	cacheEvents    *prometheus.CounterVec
	chunksIndexed  *prometheus.CounterVec
	queryDuration  *prometheus.HistogramVec
	indexedTickers prometheus.Gauge
}

// New creates a Recorder and registers its collectors with the default
// registry.
func New() *Recorder {
	return &Recorder{
		queriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ohlcvrag_queries_total",
				Help: "Total queries answered, by query type",
			},
			[]string{"type"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ohlcvrag_errors_total",
				Help: "Total pipeline errors, by stage",
			},
			[]string{"stage"},
		),
		cacheEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ohlcvrag_cache_events_total",
				Help: "Query cache hits and misses",
			},
			[]string{"event"},
		),
		chunksIndexed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ohlcvrag_chunks_indexed_total",
				Help: "Chunks written to the indexes, by ticker",
			},
			[]string{"ticker"},
		),
		queryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ohlcvrag_query_duration_seconds",
				Help:    "End-to-end query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		indexedTickers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ohlcvrag_indexed_tickers",
				Help: "Number of tickers with indexed chunks",
			},
		),
	}
}

// RecordQuery counts one answered query of the given type.
func (r *Recorder) RecordQuery(queryType string) {
	if r == nil {
		return
	}
	r.queriesTotal.WithLabelValues(queryType).Inc()
}

// RecordError counts one pipeline error at the given stage.
func (r *Recorder) RecordError(stage string) {
	if r == nil {
		return
	}
	r.errorsTotal.WithLabelValues(stage).Inc()
}

// RecordCacheHit counts a query cache hit.
func (r *Recorder) RecordCacheHit() {
	if r == nil {
		return
	}
	r.cacheEvents.WithLabelValues("hit").Inc()
}

// RecordCacheMiss counts a query cache miss.
func (r *Recorder) RecordCacheMiss() {
	if r == nil {
		return
	}
	r.cacheEvents.WithLabelValues("miss").Inc()
}

// RecordChunksIndexed counts chunks indexed for a ticker.
func (r *Recorder) RecordChunksIndexed(ticker string, n int) {
	if r == nil {
		return
	}
	r.chunksIndexed.WithLabelValues(ticker).Add(float64(n))
}

// RecordQueryDuration records end-to-end query latency.
func (r *Recorder) RecordQueryDuration(queryType string, seconds float64) {
	if r == nil {
		return
	}
	r.queryDuration.WithLabelValues(queryType).Observe(seconds)
}

// SetIndexedTickers sets the indexed ticker gauge.
func (r *Recorder) SetIndexedTickers(n int) {
	if r == nil {
		return
	}
	r.indexedTickers.Set(float64(n))
}
