package middleware

import (
	"strconv"
	"sync"
	"time"

	applogger "StockSight/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels stay low cardinality: routes are their registered templates such
// as "/api/quote/:symbol".
var (
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	httpInFlight  *prometheus.GaugeVec
	httpRespBytes *prometheus.HistogramVec
	httpOnce      sync.Once
)

func registerHTTPMetrics() {
	httpOnce.Do(func() {
		httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "stocksight_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"route", "method", "status"})
		httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stocksight_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route", "method", "class"})
		httpInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stocksight_http_in_flight_requests",
			Help: "Requests currently being served",
		}, []string{"route"})
		httpRespBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stocksight_http_response_size_bytes",
			Help:    "HTTP response size",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}, []string{"route", "class"})
	})
}

// Metrics records request metrics. 5xx answers are logged as errors and
// requests slower than slowThreshold as warnings.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	registerHTTPMetrics()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method

			httpInFlight.WithLabelValues(route).Inc()
			defer httpInFlight.WithLabelValues(route).Dec()

			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			took := time.Since(start)

			res := c.Response()
			class := strconv.Itoa(res.Status/100) + "xx"
			httpRequests.WithLabelValues(route, method, strconv.Itoa(res.Status)).Inc()
			httpDuration.WithLabelValues(route, method, class).Observe(took.Seconds())
			httpRespBytes.WithLabelValues(route, class).Observe(float64(res.Size))

			if l == nil {
				return nil
			}
			fields := []applogger.Field{
				applogger.String("route", route),
				applogger.String("method", method),
				applogger.Int("status", res.Status),
				applogger.Duration("duration_ms", took),
				applogger.Int64("bytes", res.Size),
			}
			switch {
			case res.Status >= 500:
				l.Error("http request failed", fields...)
			case slowThreshold > 0 && took >= slowThreshold:
				l.Warn("http request slow", fields...)
			}
			return nil
		}
	}
}
