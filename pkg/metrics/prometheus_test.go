package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordRequest("quote", "remote")
	r.RecordRequest("quote", "synthetic-fallback")
	r.RecordRequest("quote", "synthetic-fallback")
	r.RecordFallback("quote", "network")
	r.RecordLastPrice("AAPL", 318.25)

	if got := testutil.ToFloat64(r.requests.WithLabelValues("quote", "synthetic-fallback")); got != 2 {
		t.Errorf("fallback requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.fallbacks.WithLabelValues("quote", "network")); got != 1 {
		t.Errorf("fallbacks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.lastPrice.WithLabelValues("AAPL")); got != 318.25 {
		t.Errorf("last price = %v", got)
	}
}
