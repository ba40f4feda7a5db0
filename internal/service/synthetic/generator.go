package synthetic

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"StockSight/internal/domain/models"
	"StockSight/pkg/util"

	"github.com/shopspring/decimal"
)

// Latency is the artificial delay applied before each operation resolves.
type Latency struct {
	Quote       time.Duration
	Historical  time.Duration
	Predictions time.Duration
	Sentiment   time.Duration
	Future      time.Duration
}

// DefaultLatency emulates a remote round trip.
func DefaultLatency() Latency {
	return Latency{
		Quote:       500 * time.Millisecond,
		Historical:  800 * time.Millisecond,
		Predictions: 700 * time.Millisecond,
		Sentiment:   600 * time.Millisecond,
		Future:      900 * time.Millisecond,
	}
}

// Scale multiplies every delay by m.
func (l Latency) Scale(m float64) Latency {
	s := func(d time.Duration) time.Duration { return time.Duration(float64(d) * m) }
	return Latency{
		Quote:       s(l.Quote),
		Historical:  s(l.Historical),
		Predictions: s(l.Predictions),
		Sentiment:   s(l.Sentiment),
		Future:      s(l.Future),
	}
}

// Option configures Generator.
type Option func(*Generator)

// WithSeed makes the non-fixture draws reproducible.
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.src = &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithLatency overrides the artificial delays.
func WithLatency(l Latency) Option {
	return func(g *Generator) {
		g.latency = l
	}
}

// WithFixtures replaces the golden-path table. Nil disables fixtures.
func WithFixtures(t FixtureTable) Option {
	return func(g *Generator) {
		g.fixtures = t
	}
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) with(fn func(r *rand.Rand)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.r)
}

// Generator synthesizes market data locally. It implements service.MarketData.
// Symbols found in the fixture table are answered from the table, and any
// walk they need is seeded from the symbol and the current UTC day so repeated
// calls agree. Everything else is drawn from a shared PRNG.
type Generator struct {
	src      *lockedRand
	now      func() time.Time
	latency  Latency
	fixtures FixtureTable
}

// New creates a generator with default latency and the default fixtures.
func New(opts ...Option) *Generator {
	g := &Generator{
		now:      time.Now,
		latency:  DefaultLatency(),
		fixtures: DefaultFixtures(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.src == nil {
		g.src = &lockedRand{r: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
	}
	return g
}

// Immediate returns a view of g that shares its state but never sleeps.
func (g *Generator) Immediate() *Generator {
	return &Generator{src: g.src, now: g.now, fixtures: g.fixtures}
}

// Today returns the generator's current date as YYYY-MM-DD in UTC.
func (g *Generator) Today() string { return util.ISODate(g.now()) }

// Quote returns a quote dated today.
func (g *Generator) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	if err := sleep(ctx, g.latency.Quote); err != nil {
		return models.Quote{}, err
	}
	return g.quote(symbol), nil
}

// Historical returns days+1 daily quotes ending today, ascending.
func (g *Generator) Historical(ctx context.Context, symbol string, days int) (models.HistoricalSeries, error) {
	if err := sleep(ctx, g.latency.Historical); err != nil {
		return nil, err
	}
	if days < 0 {
		days = 0
	}
	now := g.now()
	if f, ok := g.fixtures.Lookup(symbol); ok {
		r := g.seeded(symbol, "historical", uint64(days))
		return walkHistory(r, symbol, f.SeedPrice, days, now), nil
	}
	var out models.HistoricalSeries
	g.src.with(func(r *rand.Rand) {
		out = walkHistory(r, symbol, uniform(r, 100, 600), days, now)
	})
	return out, nil
}

// Predictions returns next-trading-day forecasts for every model.
func (g *Generator) Predictions(ctx context.Context, symbol string) (models.PredictionSet, error) {
	if err := sleep(ctx, g.latency.Predictions); err != nil {
		return nil, err
	}
	date := util.ISODate(util.NextTradingDay(g.now()))
	if f, ok := g.fixtures.Lookup(symbol); ok {
		return f.predictions(symbol, date), nil
	}

	current := g.quote(symbol).Close
	set := make(models.PredictionSet, 3)
	g.src.with(func(r *rand.Rand) {
		for _, m := range models.AllModels() {
			b := modelBands[m]
			set[m] = models.Prediction{
				Symbol:         symbol,
				Date:           date,
				PredictedClose: current * (1 + uniform(r, -b.change, b.change)),
				ModelType:      m,
				MAPE:           uniform(r, b.mapeLo, b.mapeHi),
			}
		}
	})
	return set, nil
}

// Sentiment returns a percentage breakdown summing to 100.
func (g *Generator) Sentiment(ctx context.Context, symbol string) (models.Sentiment, error) {
	if err := sleep(ctx, g.latency.Sentiment); err != nil {
		return models.Sentiment{}, err
	}
	if f, ok := g.fixtures.Lookup(symbol); ok {
		return f.Sentiment, nil
	}
	var s models.Sentiment
	g.src.with(func(r *rand.Rand) {
		pos := uniform(r, 20, 80)
		neg := uniform(r, 0, 0.6*(100-pos))
		neu := 100 - pos - neg
		s = models.Sentiment{Positive: pos, Negative: neg, Neutral: neu, Overall: models.OverallOf(pos, neg, neu)}
	})
	return s, nil
}

// Future returns prices for offsets "1".."days", compounding from today's close.
func (g *Generator) Future(ctx context.Context, symbol string, days int) (models.FutureSeries, error) {
	if err := sleep(ctx, g.latency.Future); err != nil {
		return nil, err
	}
	if days < 1 {
		days = 1
	}
	out := make(models.FutureSeries, days)
	if f, ok := g.fixtures.Lookup(symbol); ok && len(f.Future) > 0 {
		n := min(days, len(f.Future))
		for i := 0; i < n; i++ {
			out[strconv.Itoa(i+1)] = f.Future[i]
		}
		if days > n {
			r := g.seeded(symbol, "future", uint64(days))
			walkFuture(r, f.Future[n-1], n+1, days, out)
		}
		return out, nil
	}

	start := g.quote(symbol).Close
	g.src.with(func(r *rand.Rand) {
		walkFuture(r, start, 1, days, out)
	})
	return out, nil
}

func (g *Generator) quote(symbol string) models.Quote {
	date := util.ISODate(g.now())
	if f, ok := g.fixtures.Lookup(symbol); ok {
		return f.quote(symbol, date)
	}
	var q models.Quote
	g.src.with(func(r *rand.Rand) {
		open := uniform(r, 100, 600)
		cl := open * (1 + uniform(r, -0.05, 0.05))
		high := math.Max(open, cl) * (1 + uniform(r, 0, 0.03))
		low := math.Min(open, cl) * (1 - uniform(r, 0, 0.03))
		q = models.NewQuote(symbol, date, open, high, low, cl, volume(r))
	})
	return q
}

// seeded returns a private PRNG keyed by symbol, purpose, window and UTC day.
func (g *Generator) seeded(symbol, purpose string, window uint64) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(util.NormalizeSymbol(symbol)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(purpose))
	day := uint64(g.now().UTC().Unix() / 86400)
	return rand.New(rand.NewPCG(h.Sum64(), window<<32|day))
}

type band struct {
	change         float64
	mapeLo, mapeHi float64
}

// ARIMA is drawn tightest and LINEAR loosest.
var modelBands = map[models.ModelType]band{
	models.ModelARIMA:  {change: 0.02, mapeLo: 5, mapeHi: 15},
	models.ModelLSTM:   {change: 0.025, mapeLo: 10, mapeHi: 25},
	models.ModelLinear: {change: 0.03, mapeLo: 15, mapeHi: 35},
}

// walkHistory walks from days ago to today. Each open is a ±1% step from the
// previous close, so continuity between days is loose.
func walkHistory(r *rand.Rand, symbol string, base float64, days int, now time.Time) models.HistoricalSeries {
	out := make(models.HistoricalSeries, 0, days+1)
	for i := days; i >= 0; i-- {
		base *= 1 + uniform(r, -0.01, 0.01)
		open := base
		cl := open * (1 + uniform(r, -0.01, 0.01))
		high := math.Max(open, cl) * (1 + uniform(r, 0, 0.01))
		low := math.Min(open, cl) * (1 - uniform(r, 0, 0.01))
		out = append(out, models.NewQuote(symbol, util.ISODate(util.DaysAgo(now, i)), open, high, low, cl, volume(r)))
		base = cl
	}
	return out
}

// walkFuture fills offsets from..to. The running price stays unrounded; stored values are cents.
func walkFuture(r *rand.Rand, price float64, from, to int, out models.FutureSeries) {
	for i := from; i <= to; i++ {
		sign := 1.0
		if r.Float64() < 0.5 {
			sign = -1
		}
		price *= 1 + sign*uniform(r, 0.005, 0.02)
		out[strconv.Itoa(i)] = roundCents(price)
	}
}

func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

func volume(r *rand.Rand) int64 {
	return 1_000_000 + r.Int64N(10_000_000)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
