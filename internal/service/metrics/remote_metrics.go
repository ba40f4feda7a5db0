package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	RemoteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stocksight",
			Subsystem: "remote",
			Name:      "latency_seconds",
			Help:      "Latency of prediction API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	RemoteErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stocksight",
			Subsystem: "remote",
			Name:      "errors_total",
			Help:      "Errors by prediction API endpoint and kind",
		},
		[]string{"endpoint", "kind"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(RemoteLatency, RemoteErrors)
	})
}
