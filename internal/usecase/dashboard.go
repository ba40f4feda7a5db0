package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"StockSight/internal/domain/models"
	"StockSight/internal/services/features"
	"StockSight/pkg/util"
)

// DashboardOptions sizes the series windows of a dashboard view.
type DashboardOptions struct {
	HistoryDays int
	FutureDays  int
}

// DashboardStats are derived from the loaded sections.
type DashboardStats struct {
	features.SeriesStats
	BestModel   models.ModelType `json:"bestModel,omitempty"`
	BestMAPE    float64          `json:"bestMape,omitempty"`
	FutureDrift float64          `json:"futureDrift"`
}

// DashboardView is everything the dashboard page renders for a symbol.
type DashboardView struct {
	Symbol      string                                 `json:"symbol"`
	Quote       models.Result[models.Quote]            `json:"quote"`
	Historical  models.Result[models.HistoricalSeries] `json:"historical"`
	Predictions models.Result[models.PredictionSet]    `json:"predictions"`
	Sentiment   models.Result[models.Sentiment]        `json:"sentiment"`
	Future      models.Result[models.FutureSeries]     `json:"future"`
	Stats       DashboardStats                         `json:"stats"`
	Degraded    bool                                   `json:"degraded"`
	GeneratedAt time.Time                              `json:"generatedAt"`
}

// Dashboard loads all sections of a view concurrently.
type Dashboard struct {
	p       *Provider
	timeout time.Duration
}

func NewDashboard(p *Provider) *Dashboard {
	return &Dashboard{p: p, timeout: 30 * time.Second}
}

// Load issues the five provider calls at once and waits for all of them.
// Provider calls cannot fail, so there is no partial result.
func (d *Dashboard) Load(ctx context.Context, symbol string, opts DashboardOptions) (*DashboardView, error) {
	symbol = util.NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}

	// Overall timeout
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	view := &DashboardView{Symbol: symbol}
	var wg sync.WaitGroup

	wg.Add(5)
	go func() {
		defer wg.Done()
		view.Quote = d.p.Quote(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		view.Historical = d.p.Historical(ctx, symbol, opts.HistoryDays)
	}()
	go func() {
		defer wg.Done()
		view.Predictions = d.p.Predictions(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		view.Sentiment = d.p.Sentiment(ctx, symbol)
	}()
	go func() {
		defer wg.Done()
		view.Future = d.p.Future(ctx, symbol, opts.FutureDays)
	}()
	wg.Wait()

	view.Degraded = view.Quote.Degraded() ||
		view.Historical.Degraded() ||
		view.Predictions.Degraded() ||
		view.Sentiment.Degraded() ||
		view.Future.Degraded()
	view.Stats = summarize(view)
	view.GeneratedAt = time.Now().UTC()
	return view, nil
}

func summarize(v *DashboardView) DashboardStats {
	st := DashboardStats{SeriesStats: features.Summarize(v.Historical.Data)}
	if best, ok := v.Predictions.Data.Best(); ok {
		st.BestModel = best.ModelType
		st.BestMAPE = best.MAPE
	}
	if fut := v.Future.Data.Values(); len(fut) > 0 && v.Quote.Data.Close > 0 {
		st.FutureDrift = (fut[len(fut)-1] - v.Quote.Data.Close) / v.Quote.Data.Close * 100
	}
	return st
}
