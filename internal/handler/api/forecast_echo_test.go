package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"StockSight/internal/domain/models"
	"StockSight/internal/service/predictapi"
	"StockSight/internal/service/synthetic"
	"StockSight/pkg/cache"
	xhttp "StockSight/pkg/http"

	"github.com/labstack/echo/v4"
)

var testNow = time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)

func testGenerator() *synthetic.Generator {
	return synthetic.New(
		synthetic.WithSeed(11),
		synthetic.WithClock(func() time.Time { return testNow }),
		synthetic.WithLatency(synthetic.Latency{}),
	)
}

func newForecastServer(t *testing.T) (*echo.Echo, *cache.MemoryCache) {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })

	h := NewForecastEchoHandler(nil, testGenerator())
	h.SetCache(mc, time.Hour)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, mc
}

func TestForecastContractRoundTrip(t *testing.T) {
	e, _ := newForecastServer(t)
	srv := httptest.NewServer(e)
	defer srv.Close()

	client := predictapi.NewClient(srv.URL+"/api", xhttp.WithTimeout(2*time.Second))
	ctx := context.Background()

	q, err := client.Quote(ctx, "AAPL")
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.Close != 318.25 || q.Date != "2026-10-16" {
		t.Errorf("quote = %+v", q)
	}

	hist, err := client.Historical(ctx, "MSFT", 10)
	if err != nil || len(hist) != 11 {
		t.Fatalf("historical len=%d err=%v", len(hist), err)
	}

	set, err := client.Predictions(ctx, "AAPL")
	if err != nil {
		t.Fatalf("predictions: %v", err)
	}
	if set[models.ModelARIMA].PredictedClose != 316.83 {
		t.Errorf("arima = %+v", set[models.ModelARIMA])
	}

	s, err := client.Sentiment(ctx, "AAPL")
	if err != nil || s.Overall != models.SentimentPositive {
		t.Fatalf("sentiment = %+v err=%v", s, err)
	}

	f, err := client.Future(ctx, "AAPL", 7)
	if err != nil {
		t.Fatalf("future: %v", err)
	}
	if f["7"] != 335.81 {
		t.Errorf("future = %v", f)
	}
}

func TestForecastCachesFuture(t *testing.T) {
	e, mc := newForecastServer(t)

	get := func() (*httptest.ResponseRecorder, models.FutureSeries) {
		req := httptest.NewRequest(http.MethodGet, "/api/future/tsla?days=5", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		var f models.FutureSeries
		_ = json.Unmarshal(rec.Body.Bytes(), &f)
		return rec, f
	}

	rec1, f1 := get()
	rec2, f2 := get()
	if rec1.Code != http.StatusOK || len(f1) != 5 {
		t.Fatalf("status=%d body=%s", rec1.Code, rec1.Body.String())
	}
	if rec1.Header().Get("X-Cache") != "MISS" || rec2.Header().Get("X-Cache") != "HIT" {
		t.Errorf("cache headers %q, %q", rec1.Header().Get("X-Cache"), rec2.Header().Get("X-Cache"))
	}
	if !reflect.DeepEqual(f1, f2) {
		t.Errorf("cached future differs: %v vs %v", f1, f2)
	}
	if ok, _ := mc.Exists(context.Background(), "future:TSLA:2026-10-16:5"); !ok {
		t.Errorf("cache key missing")
	}
}

func TestForecastValidation(t *testing.T) {
	e, _ := newForecastServer(t)

	cases := []struct {
		name   string
		target string
	}{
		{"days too large", "/api/historical/AAPL?days=400"},
		{"negative days", "/api/future/AAPL?days=-1"},
		{"bad symbol", "/api/stock/AA$PL"},
		{"long symbol", "/api/sentiment/ABCDEFGHIJKL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestForecastNormalizesSymbol(t *testing.T) {
	e, _ := newForecastServer(t)

	get := func(target string, dest interface{}) {
		t.Helper()
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", target, rec.Code)
		}
		if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
			t.Fatalf("%s: decode: %v", target, err)
		}
	}

	var q models.Quote
	get("/api/stock/aapl", &q)
	if q.Symbol != "AAPL" || q.Close != 318.25 {
		t.Errorf("quote = %+v", q)
	}

	var series models.HistoricalSeries
	get("/api/historical/msft?days=3", &series)
	if len(series) != 4 || series[0].Symbol != "MSFT" {
		t.Errorf("historical = %+v", series)
	}

	var lower, upper models.Sentiment
	get("/api/sentiment/aapl", &lower)
	get("/api/sentiment/AAPL", &upper)
	if lower != upper {
		t.Errorf("sentiment differs by case: %+v vs %+v", lower, upper)
	}
}

func TestForecastDefaultDays(t *testing.T) {
	e, _ := newForecastServer(t)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/historical/JPM", nil))
	var series models.HistoricalSeries
	if err := json.Unmarshal(rec.Body.Bytes(), &series); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(series) != 31 {
		t.Errorf("len = %d, want 31", len(series))
	}
}
