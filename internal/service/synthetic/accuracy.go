package synthetic

import (
	"context"
	"math"
	"math/rand/v2"
	"strconv"

	"StockSight/internal/domain/models"
	"StockSight/internal/services/features"
)

// DefaultAccuracyDays is the length of an accuracy series when none is requested.
const DefaultAccuracyDays = 30

// Accuracy fabricates a backtest series: actual = 300 + 30*sin(i/5) + U(-5,5)
// and predicted = actual + U(-7.5,7.5). Fixture symbols get a per-day stable series.
func (g *Generator) Accuracy(ctx context.Context, symbol string, model models.ModelType, days int) (models.AccuracyReport, error) {
	if err := ctx.Err(); err != nil {
		return models.AccuracyReport{}, err
	}
	if days <= 0 {
		days = DefaultAccuracyDays
	}

	points := make([]models.AccuracyPoint, 0, days)
	fill := func(r *rand.Rand) {
		for i := 1; i <= days; i++ {
			actual := 300 + math.Sin(float64(i)/5)*30 + uniform(r, -5, 5)
			points = append(points, models.AccuracyPoint{
				Day:       i,
				Actual:    actual,
				Predicted: actual + uniform(r, -7.5, 7.5),
			})
		}
	}
	if _, ok := g.fixtures.Lookup(symbol); ok {
		fill(g.seeded(symbol, "accuracy:"+string(model)+":"+strconv.Itoa(days), 0))
	} else {
		g.src.with(fill)
	}

	return models.AccuracyReport{
		Symbol: symbol,
		Model:  model,
		Points: points,
		MAPE:   features.MAPE(points),
	}, nil
}
