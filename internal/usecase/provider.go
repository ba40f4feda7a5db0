package usecase

import (
	"context"
	"fmt"
	"time"

	"StockSight/internal/domain/models"
	drepo "StockSight/internal/domain/repository"
	dsvc "StockSight/internal/domain/service"
	"StockSight/internal/service/synthetic"
	applogger "StockSight/pkg/logger"
	"StockSight/pkg/util"
)

// Mode decides where Provider reads from. It is resolved once, before the
// Provider exists, and never changes afterwards.
type Mode string

const (
	ModeRemote    Mode = "remote"
	ModeSynthetic Mode = "synthetic"
)

// Window defaults and bounds for Historical and Future.
const (
	DefaultHistoryDays = 30
	DefaultFutureDays  = 7
	MinDays            = 1
	MaxDays            = 365
)

// ProbeResult records how the mode was chosen.
type ProbeResult struct {
	Mode    Mode          `json:"mode"`
	Setting string        `json:"setting"`
	Symbol  string        `json:"probeSymbol,omitempty"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
	At      time.Time     `json:"at"`
}

// Probe issues a single quote request for symbol bounded by timeout. Any
// failure selects ModeSynthetic. It is never retried.
func Probe(ctx context.Context, remote dsvc.MarketData, symbol string, timeout time.Duration) ProbeResult {
	res := ProbeResult{Mode: ModeSynthetic, Setting: "auto", Symbol: symbol, At: time.Now().UTC()}
	if remote == nil {
		res.Error = "no remote configured"
		return res
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	_, err := remote.Quote(ctx, symbol)
	res.Latency = time.Since(start)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Mode = ModeRemote
	return res
}

// ResolveMode applies the provider.mode setting: "remote" and "synthetic"
// force the mode, anything else probes.
func ResolveMode(ctx context.Context, setting string, remote dsvc.MarketData, symbol string, timeout time.Duration) ProbeResult {
	switch setting {
	case string(ModeRemote):
		return ProbeResult{Mode: ModeRemote, Setting: setting, At: time.Now().UTC()}
	case string(ModeSynthetic):
		return ProbeResult{Mode: ModeSynthetic, Setting: setting, At: time.Now().UTC()}
	}
	return Probe(ctx, remote, symbol, timeout)
}

// Provider serves the five market-data operations. Every operation resolves
// with data: remote failures are logged, counted and answered with synthetic
// data tagged SourceFallback. Safe for concurrent use.
type Provider struct {
	mode    Mode
	remote  dsvc.MarketData
	synth   *synthetic.Generator
	metrics drepo.Metrics
	l       *applogger.Logger
}

// NewProvider creates a Provider fixed to mode.
func NewProvider(mode Mode, remote dsvc.MarketData, synth *synthetic.Generator, metrics drepo.Metrics) *Provider {
	if synth == nil {
		synth = synthetic.New()
	}
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	if remote == nil {
		mode = ModeSynthetic
	}
	return &Provider{mode: mode, remote: remote, synth: synth, metrics: metrics}
}

// SetLogger injects application logger.
func (p *Provider) SetLogger(l *applogger.Logger) { p.l = l }

// Mode returns the fixed provider mode.
func (p *Provider) Mode() Mode { return p.mode }

// Quote returns the current quote for symbol.
func (p *Provider) Quote(ctx context.Context, symbol string) models.Result[models.Quote] {
	symbol = util.NormalizeSymbol(symbol)
	res := fetch(ctx, p, "quote", symbol,
		func(ctx context.Context, m dsvc.MarketData) (models.Quote, error) { return m.Quote(ctx, symbol) })
	p.metrics.RecordLastPrice(symbol, res.Data.Close)
	return res
}

// Historical returns days+1 daily quotes ending today. days of 0 means 30;
// the window is clamped to [1, 365].
func (p *Provider) Historical(ctx context.Context, symbol string, days int) models.Result[models.HistoricalSeries] {
	symbol = util.NormalizeSymbol(symbol)
	days = window(days, DefaultHistoryDays)
	return fetch(ctx, p, "historical", symbol,
		func(ctx context.Context, m dsvc.MarketData) (models.HistoricalSeries, error) {
			return m.Historical(ctx, symbol, days)
		})
}

// Predictions returns next-day forecasts for ARIMA, LSTM and LINEAR.
func (p *Provider) Predictions(ctx context.Context, symbol string) models.Result[models.PredictionSet] {
	symbol = util.NormalizeSymbol(symbol)
	return fetch(ctx, p, "predictions", symbol,
		func(ctx context.Context, m dsvc.MarketData) (models.PredictionSet, error) {
			return m.Predictions(ctx, symbol)
		})
}

// Sentiment returns the tweet-sentiment breakdown.
func (p *Provider) Sentiment(ctx context.Context, symbol string) models.Result[models.Sentiment] {
	symbol = util.NormalizeSymbol(symbol)
	return fetch(ctx, p, "sentiment", symbol,
		func(ctx context.Context, m dsvc.MarketData) (models.Sentiment, error) {
			return m.Sentiment(ctx, symbol)
		})
}

// Future returns a forecast keyed "1".."days". days of 0 means 7; the window
// is clamped to [1, 365].
func (p *Provider) Future(ctx context.Context, symbol string, days int) models.Result[models.FutureSeries] {
	symbol = util.NormalizeSymbol(symbol)
	days = window(days, DefaultFutureDays)
	return fetch(ctx, p, "future", symbol,
		func(ctx context.Context, m dsvc.MarketData) (models.FutureSeries, error) {
			return m.Future(ctx, symbol, days)
		})
}

// Accuracy returns a model accuracy series. It is always computed locally.
func (p *Provider) Accuracy(ctx context.Context, symbol string, model models.ModelType, days int) models.Result[models.AccuracyReport] {
	symbol = util.NormalizeSymbol(symbol)
	rep, err := p.synth.Accuracy(ctx, symbol, model, days)
	if err != nil {
		rep, _ = p.synth.Immediate().Accuracy(context.Background(), symbol, model, days)
	}
	p.metrics.RecordRequest("accuracy", string(models.SourceSynthetic))
	return models.Result[models.AccuracyReport]{Data: rep, Source: models.SourceSynthetic}
}

func fetch[T any](ctx context.Context, p *Provider, op, symbol string, call func(context.Context, dsvc.MarketData) (T, error)) models.Result[T] {
	start := time.Now()
	defer func() { p.metrics.RecordLatency(op, time.Since(start).Seconds()) }()

	if p.mode == ModeSynthetic {
		p.metrics.RecordRequest(op, string(models.SourceSynthetic))
		return models.Result[T]{Data: local(ctx, p, call), Source: models.SourceSynthetic}
	}

	data, err := call(ctx, p.remote)
	if err == nil {
		p.metrics.RecordRequest(op, string(models.SourceRemote))
		return models.Result[T]{Data: data, Source: models.SourceRemote}
	}

	kind := models.Classify(err)
	p.metrics.RecordFallback(op, kind)
	p.metrics.RecordRequest(op, string(models.SourceFallback))
	if p.l != nil {
		p.l.Warn("remote call failed, serving synthetic data",
			applogger.String("op", op),
			applogger.String("symbol", symbol),
			applogger.String("kind", kind),
			applogger.Error(err),
		)
	}
	return models.Result[T]{
		Data:   local(ctx, p, call),
		Source: models.SourceFallback,
		Err:    fmt.Errorf("%s %s: %w", op, symbol, err),
	}
}

// local runs call against the generator. If ctx ends during the simulated
// latency the answer is produced without delay, so operations stay total.
func local[T any](ctx context.Context, p *Provider, call func(context.Context, dsvc.MarketData) (T, error)) T {
	data, err := call(ctx, p.synth)
	if err != nil {
		data, _ = call(context.Background(), p.synth.Immediate())
	}
	return data
}

func window(days, def int) int {
	if days == 0 {
		days = def
	}
	return util.ClampInt(days, MinDays, MaxDays)
}
