package models

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestNewQuoteDerivesChange(t *testing.T) {
	q := NewQuote("AAPL", "2026-10-16", 316.77, 323.44, 315.63, 318.25, 33390200)
	if d := q.Change - 1.48; d > 1e-9 || d < -1e-9 {
		t.Errorf("change = %v", q.Change)
	}
	if err := q.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}

	zero := NewQuote("X", "2026-10-16", 0, 1, 0, 1, 0)
	if zero.ChangePercent != 0 {
		t.Errorf("zero open should not divide: %v", zero.ChangePercent)
	}
}

func TestQuoteValidateRejectsBands(t *testing.T) {
	bad := NewQuote("X", "2026-10-16", 10, 10.5, 9, 11, 1)
	if bad.Validate() == nil {
		t.Errorf("high below close accepted")
	}
	bad = NewQuote("X", "2026-10-16", 10, 12, 10.5, 11, 1)
	if bad.Validate() == nil {
		t.Errorf("low above open accepted")
	}
	q := NewQuote("X", "2026-10-16", 10, 12, 9, 11, 1)
	q.ChangePercent = 50
	if q.Validate() == nil {
		t.Errorf("inconsistent changePercent accepted")
	}
}

func TestOverallOf(t *testing.T) {
	cases := []struct {
		p, n, u float64
		want    SentimentLabel
	}{
		{50.7, 27.3, 22.0, SentimentPositive},
		{20, 50, 30, SentimentNegative},
		{20, 30, 50, SentimentNeutral},
		{40, 40, 20, SentimentNeutral},
		{30, 35, 35, SentimentNeutral},
	}
	for _, c := range cases {
		if got := OverallOf(c.p, c.n, c.u); got != c.want {
			t.Errorf("OverallOf(%v,%v,%v) = %s, want %s", c.p, c.n, c.u, got, c.want)
		}
	}
}

func TestFutureSeriesOrdering(t *testing.T) {
	f := FutureSeries{"10": 5, "2": 2, "1": 1, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7, "8": 8, "9": 9}
	keys := f.Keys()
	if keys[0] != "1" || keys[1] != "2" || keys[9] != "10" {
		t.Errorf("keys = %v", keys)
	}
	if err := f.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
	if err := (FutureSeries{"1": 1, "3": 2}).Validate(); err == nil {
		t.Errorf("gap accepted")
	}
	if err := f.ValidateDays(10); err != nil {
		t.Errorf("validate days: %v", err)
	}
	if err := (FutureSeries{"1": 100.5}).ValidateDays(7); err == nil {
		t.Errorf("1 offset accepted for 7 days")
	}
}

func TestHistoricalSeriesValidate(t *testing.T) {
	day := func(date string) Quote { return NewQuote("MSFT", date, 100, 101, 99, 100.5, 10) }

	ok := HistoricalSeries{day("2026-10-17"), day("2026-10-18"), day("2026-10-19")}
	if err := ok.Validate(2); err != nil {
		t.Fatalf("validate: %v", err)
	}

	cases := map[string]struct {
		s    HistoricalSeries
		days int
	}{
		"too short":  {HistoricalSeries{day("2026-10-16"), day("2026-10-17")}, 10},
		"too long":   {ok, 1},
		"descending": {HistoricalSeries{day("2026-10-16"), day("2026-10-01")}, 1},
		"repeated":   {HistoricalSeries{day("2026-10-16"), day("2026-10-16")}, 1},
		"bad date":   {HistoricalSeries{day("16/10/2026")}, 0},
	}
	for name, tc := range cases {
		if err := tc.s.Validate(tc.days); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestPredictionSet(t *testing.T) {
	set := PredictionSet{
		ModelARIMA:  {PredictedClose: 1, ModelType: ModelARIMA, MAPE: 9.81},
		ModelLSTM:   {PredictedClose: 1, ModelType: ModelLSTM, MAPE: 18.79},
		ModelLinear: {PredictedClose: 1, ModelType: ModelLinear, MAPE: 26.76},
	}
	if err := set.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if best, _ := set.Best(); best.ModelType != ModelARIMA {
		t.Errorf("best = %s", best.ModelType)
	}
	set[ModelLSTM] = Prediction{PredictedClose: 1, ModelType: ModelARIMA}
	if set.Validate() == nil {
		t.Errorf("mismatched key accepted")
	}
}

func TestParseModelType(t *testing.T) {
	for in, want := range map[string]ModelType{"arima": ModelARIMA, "LSTM": ModelLSTM, "linear-regression": ModelLinear} {
		if got, ok := ParseModelType(in); !ok || got != want {
			t.Errorf("ParseModelType(%q) = %s, %v", in, got, ok)
		}
	}
	if _, ok := ParseModelType("prophet"); ok {
		t.Errorf("unknown model accepted")
	}
	if !reflect.DeepEqual(AllModels(), []ModelType{ModelARIMA, ModelLSTM, ModelLinear}) {
		t.Errorf("AllModels order changed")
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]error{
		"none":      nil,
		"remote":    fmt.Errorf("wrap: %w", &RemoteError{Status: 502}),
		"malformed": fmt.Errorf("%w: bad", ErrMalformedResponse),
		"network":   fmt.Errorf("%w: dial", ErrNetworkFault),
		"canceled":  fmt.Errorf("%w: %w", ErrNetworkFault, context.Canceled),
		"other":     errors.New("x"),
	}
	for want, err := range cases {
		if got := Classify(err); got != want {
			t.Errorf("Classify(%v) = %s, want %s", err, got, want)
		}
	}
	if Classify(context.DeadlineExceeded) != "network" {
		t.Errorf("deadline should classify as network")
	}
}

func TestResultDegraded(t *testing.T) {
	if (Result[int]{Source: SourceRemote}).Degraded() {
		t.Errorf("remote is not degraded")
	}
	if !(Result[int]{Source: SourceFallback}).Degraded() {
		t.Errorf("fallback is degraded")
	}
}
