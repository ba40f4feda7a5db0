package features

import (
	"math"

	"StockSight/internal/domain/models"
)

// Bars per year for daily series.
const (
	CalendarDaysPerYear = 365
	TradingDaysPerYear  = 252
)

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(closes)-1, or nil if insufficient data.
func ComputeLogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev := closes[i-1]
		cur := closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes annualized realized volatility over a rolling window
// using the provided number of bars per year. Returns the latest window sigma.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	// annualize
	return math.Sqrt(variance * barsPerYear)
}

// PeriodReturn is the percentage move from the first close to the last.
func PeriodReturn(closes []float64) float64 {
	if len(closes) < 2 || closes[0] == 0 {
		return 0
	}
	return (closes[len(closes)-1] - closes[0]) / closes[0] * 100
}

// MAPE is mean(|actual-predicted|/actual)*100 over the points with a non-zero actual.
func MAPE(points []models.AccuracyPoint) float64 {
	sum := 0.0
	n := 0
	for _, p := range points {
		if p.Actual == 0 {
			continue
		}
		sum += math.Abs(p.Actual-p.Predicted) / math.Abs(p.Actual)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n) * 100
}

// SeriesStats summarises a historical series.
type SeriesStats struct {
	Volatility   float64 `json:"volatility"`
	PeriodReturn float64 `json:"periodReturn"`
	High         float64 `json:"high"`
	Low          float64 `json:"low"`
	AvgVolume    float64 `json:"avgVolume"`
}

// Summarize computes stats over the whole series; volatility is annualised on calendar days.
func Summarize(series models.HistoricalSeries) SeriesStats {
	if len(series) == 0 {
		return SeriesStats{}
	}
	closes := series.Closes()
	returns := ComputeLogReturns(closes)
	st := SeriesStats{
		Volatility:   RealizedVolatility(returns, len(returns), CalendarDaysPerYear),
		PeriodReturn: PeriodReturn(closes),
		High:         series[0].High,
		Low:          series[0].Low,
	}
	var vol float64
	for _, q := range series {
		st.High = math.Max(st.High, q.High)
		st.Low = math.Min(st.Low, q.Low)
		vol += float64(q.Volume)
	}
	st.AvgVolume = vol / float64(len(series))
	return st
}
