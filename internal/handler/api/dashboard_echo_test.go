package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"StockSight/internal/domain/models"
	drepo "StockSight/internal/domain/repository"
	"StockSight/internal/repository"
	"StockSight/internal/usecase"

	"github.com/labstack/echo/v4"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newDashboardServer(t *testing.T, snaps *usecase.SnapshotCollector) *echo.Echo {
	t.Helper()
	p := usecase.NewProvider(usecase.ModeSynthetic, nil, testGenerator(), nil)
	h := NewDashboardEchoHandler(nil, p, usecase.NewDashboard(p), []string{"AAPL", "MSFT"},
		usecase.ProbeResult{Mode: usecase.ModeSynthetic, Setting: "synthetic"})
	if snaps != nil {
		h.SetSnapshots(snaps)
	}
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func call(t *testing.T, e *echo.Echo, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s: decode %q: %v", target, rec.Body.String(), err)
	}
	return rec, env
}

func TestDashboardEndpoint(t *testing.T) {
	e := newDashboardServer(t, nil)

	rec, env := call(t, e, "/api/dashboard/aapl?history_days=10&future_days=3")
	if rec.Code != http.StatusOK || env.Status != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Data-Degraded") != "true" {
		t.Errorf("synthetic dashboard not flagged degraded")
	}

	var view usecase.DashboardView
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.Symbol != "AAPL" || len(view.Historical.Data) != 11 || len(view.Future.Data) != 3 {
		t.Errorf("view symbol=%s historical=%d future=%d", view.Symbol, len(view.Historical.Data), len(view.Future.Data))
	}
	if view.Quote.Source != models.SourceSynthetic || view.Quote.Data.Close != 318.25 {
		t.Errorf("quote = %+v", view.Quote)
	}
}

func TestDashboardValidation(t *testing.T) {
	e := newDashboardServer(t, nil)
	rec, env := call(t, e, "/api/dashboard/AAPL?history_days=1000")
	if rec.Code != http.StatusBadRequest || env.Status != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}

	rec, _ = call(t, e, "/api/dashboard/AAPL/accuracy?model=GARCH")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown model status = %d", rec.Code)
	}
}

func TestSymbolsAndProvider(t *testing.T) {
	e := newDashboardServer(t, nil)

	_, env := call(t, e, "/api/symbols")
	var list struct {
		Rows  []string `json:"rows"`
		Total int64    `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &list); err != nil || list.Total != 2 || list.Rows[1] != "MSFT" {
		t.Errorf("symbols = %+v err=%v", list, err)
	}

	_, env = call(t, e, "/api/provider")
	var info struct {
		Mode  string              `json:"mode"`
		Probe usecase.ProbeResult `json:"probe"`
	}
	if err := json.Unmarshal(env.Data, &info); err != nil || info.Mode != "synthetic" || info.Probe.Setting != "synthetic" {
		t.Errorf("provider = %+v err=%v", info, err)
	}
}

func TestAccuracyEndpoint(t *testing.T) {
	e := newDashboardServer(t, nil)
	rec, env := call(t, e, "/api/dashboard/MSFT/accuracy?model=linear-regression&days=12")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var res models.Result[models.AccuracyReport]
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Data.Model != models.ModelLinear || len(res.Data.Points) != 12 || res.Data.MAPE <= 0 {
		t.Errorf("report = %+v", res.Data)
	}
}

func TestSnapshotsEndpoint(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		rec, _ := call(t, newDashboardServer(t, nil), "/api/dashboard/AAPL/snapshots")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := repository.NewSQLiteSnapshotStore(":memory:")
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		defer store.Close()

		p := usecase.NewProvider(usecase.ModeSynthetic, nil, testGenerator(), nil)
		proc := usecase.NewSnapshotProcessor(nil, store, nil, drepo.BackendSQLite)
		col := usecase.NewSnapshotCollector(p, proc, []string{"AAPL", "MSFT"}, nil)
		for i := 0; i < 3; i++ {
			if _, err := col.Collect(context.Background()); err != nil {
				t.Fatalf("collect: %v", err)
			}
		}

		rec, env := call(t, newDashboardServer(t, col), "/api/dashboard/aapl/snapshots?limit=2")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
		}
		var list struct {
			Rows  []models.Snapshot `json:"rows"`
			Total int64             `json:"total"`
		}
		if err := json.Unmarshal(env.Data, &list); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if list.Total != 2 || list.Rows[0].Symbol != "AAPL" {
			t.Errorf("snapshots = %+v", list)
		}
	})
}
