package service

import (
	"context"

	"StockSight/internal/domain/models"
)

// MarketData is the five-operation contract of the prediction API. The remote
// client and the synthetic generator both implement it.
type MarketData interface {
	Quote(ctx context.Context, symbol string) (models.Quote, error)
	Historical(ctx context.Context, symbol string, days int) (models.HistoricalSeries, error)
	Predictions(ctx context.Context, symbol string) (models.PredictionSet, error)
	Sentiment(ctx context.Context, symbol string) (models.Sentiment, error)
	Future(ctx context.Context, symbol string, days int) (models.FutureSeries, error)
}

// AccuracySource produces model accuracy series.
type AccuracySource interface {
	Accuracy(ctx context.Context, symbol string, model models.ModelType, days int) (models.AccuracyReport, error)
}
