package models

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"
)

// Quote is one day's OHLCV record for a symbol.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        int64   `json:"volume"`
	Date          string  `json:"date"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// NewQuote builds a Quote and derives Change and ChangePercent from open/close.
func NewQuote(symbol, date string, open, high, low, close float64, volume int64) Quote {
	change := close - open
	pct := 0.0
	if open != 0 {
		pct = change / open * 100
	}
	return Quote{
		Symbol:        symbol,
		Open:          open,
		High:          high,
		Low:           low,
		Close:         close,
		Volume:        volume,
		Date:          date,
		Change:        change,
		ChangePercent: pct,
	}
}

// quoteTolerance absorbs float rounding in upstream payloads.
const quoteTolerance = 1e-6

// Validate checks the OHLC band and change invariants.
func (q Quote) Validate() error {
	if q.Symbol == "" {
		return fmt.Errorf("quote: empty symbol")
	}
	if q.Open <= 0 || q.Close <= 0 || q.High <= 0 || q.Low <= 0 {
		return fmt.Errorf("quote %s: non-positive price", q.Symbol)
	}
	if q.Volume < 0 {
		return fmt.Errorf("quote %s: negative volume", q.Symbol)
	}
	if q.High+quoteTolerance < math.Max(q.Open, q.Close) {
		return fmt.Errorf("quote %s: high %.4f below body", q.Symbol, q.High)
	}
	if q.Low-quoteTolerance > math.Min(q.Open, q.Close) {
		return fmt.Errorf("quote %s: low %.4f above body", q.Symbol, q.Low)
	}
	if math.Abs(q.ChangePercent-100*q.Change/q.Open) > 1e-3 {
		return fmt.Errorf("quote %s: changePercent inconsistent with change", q.Symbol)
	}
	return nil
}

// HistoricalSeries is a chronologically ascending sequence of daily quotes.
type HistoricalSeries []Quote

// Validate checks the series holds days+1 valid quotes with strictly
// ascending dates.
func (s HistoricalSeries) Validate(days int) error {
	if len(s) != days+1 {
		return fmt.Errorf("historical: got %d entries, want %d", len(s), days+1)
	}
	var prev time.Time
	for i, q := range s {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("historical: entry %d: %w", i, err)
		}
		d, err := time.Parse("2006-01-02", q.Date)
		if err != nil {
			return fmt.Errorf("historical: entry %d: bad date %q", i, q.Date)
		}
		if i > 0 && !d.After(prev) {
			return fmt.Errorf("historical: entry %d: date %s not after %s", i, q.Date, s[i-1].Date)
		}
		prev = d
	}
	return nil
}

// Closes returns the close prices in series order.
func (s HistoricalSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, q := range s {
		out[i] = q.Close
	}
	return out
}

// ModelType identifies a prediction model.
type ModelType string

const (
	ModelARIMA  ModelType = "ARIMA"
	ModelLSTM   ModelType = "LSTM"
	ModelLinear ModelType = "LINEAR"
)

// AllModels returns the supported models, most accurate first.
func AllModels() []ModelType {
	return []ModelType{ModelARIMA, ModelLSTM, ModelLinear}
}

// ParseModelType accepts the canonical identifiers case-insensitively,
// plus "linear-regression" as used by the dashboard URLs.
func ParseModelType(s string) (ModelType, bool) {
	switch s {
	case "ARIMA", "arima":
		return ModelARIMA, true
	case "LSTM", "lstm":
		return ModelLSTM, true
	case "LINEAR", "linear", "linear-regression":
		return ModelLinear, true
	}
	return "", false
}

// Prediction is a single model's next-day forecast.
type Prediction struct {
	Symbol         string    `json:"symbol"`
	Date           string    `json:"date"`
	PredictedClose float64   `json:"predictedClose"`
	ModelType      ModelType `json:"modelType"`
	MAPE           float64   `json:"mape"`
}

// PredictionSet maps each model to its forecast.
type PredictionSet map[ModelType]Prediction

// Validate requires every model to be present under its own key.
func (p PredictionSet) Validate() error {
	for _, m := range AllModels() {
		pred, ok := p[m]
		if !ok {
			return fmt.Errorf("predictions: missing model %s", m)
		}
		if pred.ModelType != m {
			return fmt.Errorf("predictions: key %s holds model %s", m, pred.ModelType)
		}
		if pred.PredictedClose <= 0 {
			return fmt.Errorf("predictions: %s non-positive close", m)
		}
		if pred.MAPE < 0 {
			return fmt.Errorf("predictions: %s negative mape", m)
		}
	}
	return nil
}

// Best returns the prediction with the lowest MAPE.
func (p PredictionSet) Best() (Prediction, bool) {
	var best Prediction
	found := false
	for _, m := range AllModels() {
		pred, ok := p[m]
		if !ok {
			continue
		}
		if !found || pred.MAPE < best.MAPE {
			best = pred
			found = true
		}
	}
	return best, found
}

// SentimentLabel is the overall sentiment classification.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNegative SentimentLabel = "negative"
	SentimentNeutral  SentimentLabel = "neutral"
)

// Sentiment is a percentage breakdown of tweet sentiment.
type Sentiment struct {
	Positive float64        `json:"positive"`
	Negative float64        `json:"negative"`
	Neutral  float64        `json:"neutral"`
	Overall  SentimentLabel `json:"overall"`
}

// OverallOf returns the strictly largest share; any tie resolves to neutral.
func OverallOf(positive, negative, neutral float64) SentimentLabel {
	switch {
	case positive > negative && positive > neutral:
		return SentimentPositive
	case negative > positive && negative > neutral:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Validate checks shares are non-negative and the label is known.
func (s Sentiment) Validate() error {
	if s.Positive < 0 || s.Negative < 0 || s.Neutral < 0 {
		return fmt.Errorf("sentiment: negative share")
	}
	switch s.Overall {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return nil
	}
	return fmt.Errorf("sentiment: unknown label %q", s.Overall)
}

// FutureSeries maps day offsets ("1".."N") to predicted close prices.
type FutureSeries map[string]float64

// Keys returns the offsets in ascending numeric order.
func (f FutureSeries) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.Atoi(keys[i])
		b, _ := strconv.Atoi(keys[j])
		return a < b
	})
	return keys
}

// Values returns prices ordered by offset.
func (f FutureSeries) Values() []float64 {
	keys := f.Keys()
	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = f[k]
	}
	return out
}

// ValidateDays is Validate plus the requirement that N equals days.
func (f FutureSeries) ValidateDays(days int) error {
	if len(f) != days {
		return fmt.Errorf("future: got %d offsets, want %d", len(f), days)
	}
	return f.Validate()
}

// Validate requires exactly the keys "1".."N" with positive prices.
func (f FutureSeries) Validate() error {
	for i := 1; i <= len(f); i++ {
		v, ok := f[strconv.Itoa(i)]
		if !ok {
			return fmt.Errorf("future: missing offset %d", i)
		}
		if v <= 0 {
			return fmt.Errorf("future: non-positive price at offset %d", i)
		}
	}
	return nil
}

// AccuracyPoint pairs an observed price with a model's prediction for it.
type AccuracyPoint struct {
	Day       int     `json:"day"`
	Actual    float64 `json:"actual"`
	Predicted float64 `json:"predicted"`
}

// AccuracyReport is a model's backtest-style accuracy series.
type AccuracyReport struct {
	Symbol string          `json:"symbol"`
	Model  ModelType       `json:"model"`
	Points []AccuracyPoint `json:"points"`
	MAPE   float64         `json:"mape"`
}
