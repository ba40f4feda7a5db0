package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	requests      *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	snapshotsSent *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	lastPrice     *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder on reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksight_provider_requests_total",
				Help: "Data provider calls by operation and provenance",
			},
			[]string{"op", "source"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksight_provider_fallbacks_total",
				Help: "Remote failures answered with synthetic data",
			},
			[]string{"op", "kind"},
		),
		snapshotsSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksight_snapshots_sent_total",
				Help: "Total number of snapshots written to a backend",
			},
			[]string{"backend", "symbol"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stocksight_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stocksight_last_price",
				Help: "Last served close price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stocksight_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordRequest counts a provider call by where its data came from.
func (r *Recorder) RecordRequest(op, source string) {
	r.requests.WithLabelValues(op, source).Inc()
}

// RecordFallback counts a remote failure of the given kind.
func (r *Recorder) RecordFallback(op, kind string) {
	r.fallbacks.WithLabelValues(op, kind).Inc()
}

// RecordSnapshotSent records a snapshot sent to a backend.
func (r *Recorder) RecordSnapshotSent(backend, symbol string) {
	r.snapshotsSent.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
