package synthetic

import (
	"StockSight/internal/domain/models"
	"StockSight/pkg/util"
)

// FixedPrediction is a canned model output.
type FixedPrediction struct {
	Close float64
	MAPE  float64
}

// Fixture is a recorded snapshot served verbatim for one symbol.
type Fixture struct {
	Open, High, Low, Close float64
	Volume                 int64
	// SeedPrice starts the historical walk.
	SeedPrice   float64
	Predictions map[models.ModelType]FixedPrediction
	Sentiment   models.Sentiment
	// Future holds offsets 1..len(Future).
	Future []float64
}

// FixtureTable maps a symbol to its canned responses.
type FixtureTable map[string]Fixture

// DefaultFixtures carries the AAPL demo snapshot.
func DefaultFixtures() FixtureTable {
	return FixtureTable{
		"AAPL": {
			Open:      316.77,
			High:      323.44,
			Low:       315.63,
			Close:     318.25,
			Volume:    33390200,
			SeedPrice: 316.77,
			Predictions: map[models.ModelType]FixedPrediction{
				models.ModelARIMA:  {Close: 316.83, MAPE: 9.81},
				models.ModelLSTM:   {Close: 319.17, MAPE: 18.79},
				models.ModelLinear: {Close: 333.29, MAPE: 26.76},
			},
			Sentiment: models.Sentiment{
				Positive: 50.7,
				Negative: 27.3,
				Neutral:  22.0,
				Overall:  models.SentimentPositive,
			},
			Future: []float64{333.23, 334.44, 337.12, 335.01, 337.94, 336.71, 335.81},
		},
	}
}

// Lookup finds the fixture for symbol. A nil table has no fixtures.
func (t FixtureTable) Lookup(symbol string) (Fixture, bool) {
	if t == nil {
		return Fixture{}, false
	}
	f, ok := t[util.NormalizeSymbol(symbol)]
	return f, ok
}

func (f Fixture) quote(symbol, date string) models.Quote {
	return models.NewQuote(symbol, date, f.Open, f.High, f.Low, f.Close, f.Volume)
}

func (f Fixture) predictions(symbol, date string) models.PredictionSet {
	set := make(models.PredictionSet, len(f.Predictions))
	for m, p := range f.Predictions {
		set[m] = models.Prediction{
			Symbol:         symbol,
			Date:           date,
			PredictedClose: p.Close,
			ModelType:      m,
			MAPE:           p.MAPE,
		}
	}
	return set
}
