package usecase

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"StockSight/internal/domain/models"
	"StockSight/internal/service/synthetic"
)

func TestDashboardLoadsAllSections(t *testing.T) {
	p := NewProvider(ModeSynthetic, nil, testGenerator(), nil)
	d := NewDashboard(p)

	v, err := d.Load(context.Background(), " aapl ", DashboardOptions{HistoryDays: 90})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if v.Symbol != "AAPL" {
		t.Errorf("symbol = %q", v.Symbol)
	}
	if len(v.Historical.Data) != 91 || len(v.Future.Data) != DefaultFutureDays {
		t.Errorf("historical=%d future=%d", len(v.Historical.Data), len(v.Future.Data))
	}
	if !v.Degraded {
		t.Errorf("synthetic view should be degraded")
	}
	if v.Stats.BestModel != models.ModelARIMA || v.Stats.BestMAPE != 9.81 {
		t.Errorf("best model = %s %v", v.Stats.BestModel, v.Stats.BestMAPE)
	}
	// 335.81 vs 318.25
	if v.Stats.FutureDrift < 5.5 || v.Stats.FutureDrift > 5.6 {
		t.Errorf("future drift = %v", v.Stats.FutureDrift)
	}
}

func TestDashboardFansOut(t *testing.T) {
	lat := synthetic.Latency{
		Quote:       100 * time.Millisecond,
		Historical:  100 * time.Millisecond,
		Predictions: 100 * time.Millisecond,
		Sentiment:   100 * time.Millisecond,
		Future:      100 * time.Millisecond,
	}
	p := NewProvider(ModeSynthetic, nil, synthetic.New(synthetic.WithSeed(3), synthetic.WithLatency(lat)), nil)

	start := time.Now()
	if _, err := NewDashboard(p).Load(context.Background(), "TSLA", DashboardOptions{}); err != nil {
		t.Fatalf("load: %v", err)
	}
	// Sequential would take 500ms.
	if el := time.Since(start); el > 400*time.Millisecond {
		t.Errorf("load took %s, calls were not concurrent", el)
	}
}

func TestDashboardMixedProvenance(t *testing.T) {
	remote, hits := countingServer(t, http.StatusServiceUnavailable)
	p := NewProvider(ModeRemote, remote, testGenerator(), nil)

	v, _ := NewDashboard(p).Load(context.Background(), "GOOGL", DashboardOptions{HistoryDays: 5, FutureDays: 3})
	if v.Quote.Source != models.SourceFallback || !v.Degraded {
		t.Errorf("quote source = %s degraded = %v", v.Quote.Source, v.Degraded)
	}
	if n := atomic.LoadInt64(hits); n != 5 {
		t.Errorf("remote hits = %d, want 5", n)
	}
}

func TestDashboardRejectsEmptySymbol(t *testing.T) {
	d := NewDashboard(NewProvider(ModeSynthetic, nil, testGenerator(), nil))
	if _, err := d.Load(context.Background(), "  ", DashboardOptions{}); err == nil {
		t.Fatalf("expected error")
	}
}
