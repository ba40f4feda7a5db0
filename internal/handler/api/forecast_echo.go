package api

import (
	"context"
	"net/http"
	"time"

	"StockSight/internal/domain/models"
	"StockSight/internal/service/synthetic"
	"StockSight/pkg/cache"
	xhttp "StockSight/pkg/http"
	xlogger "StockSight/pkg/logger"
	"StockSight/pkg/util"

	"github.com/labstack/echo/v4"
)

// ForecastEchoHandler serves the prediction API contract (quote, historical,
// predictions, sentiment, future) from the synthetic generator. Bodies are
// written raw, without the response envelope, so predictapi.Client can
// consume them directly.
type ForecastEchoHandler struct {
	logger *xlogger.Logger
	gen    *synthetic.Generator
	cache  cache.Service
	ttl    time.Duration
}

func NewForecastEchoHandler(logger *xlogger.Logger, gen *synthetic.Generator) *ForecastEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &ForecastEchoHandler{logger: logger, gen: gen, ttl: 24 * time.Hour}
}

// SetCache enables caching of predictions and future series for ttl.
func (h *ForecastEchoHandler) SetCache(c cache.Service, ttl time.Duration) {
	h.cache = c
	if ttl > 0 {
		h.ttl = ttl
	}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/stock/:symbol", h.Quote)
	g.GET("/historical/:symbol", h.Historical)
	g.GET("/predictions/:symbol", h.Predictions)
	g.GET("/sentiment/:symbol", h.Sentiment)
	g.GET("/future/:symbol", h.Future)
}

func (h *ForecastEchoHandler) Quote(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return c.JSON(http.StatusBadRequest, verr)
	}
	q, err := h.gen.Quote(c.Request().Context(), util.NormalizeSymbol(req.Symbol))
	if err != nil {
		return h.unavailable(c, "quote", err)
	}
	return c.JSON(http.StatusOK, q)
}

func (h *ForecastEchoHandler) Historical(c echo.Context) error {
	req := &models.HistoricalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return c.JSON(http.StatusBadRequest, verr)
	}
	series, err := h.gen.Historical(c.Request().Context(), util.NormalizeSymbol(req.Symbol), req.Days)
	if err != nil {
		return h.unavailable(c, "historical", err)
	}
	return c.JSON(http.StatusOK, series)
}

func (h *ForecastEchoHandler) Predictions(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return c.JSON(http.StatusBadRequest, verr)
	}
	symbol := util.NormalizeSymbol(req.Symbol)
	key := cache.GenerateKeyWithParams("predictions", symbol, h.gen.Today())
	set, hit, err := cache.GetOrLoad(c.Request().Context(), h.cache, key, h.ttl,
		func(ctx context.Context) (models.PredictionSet, error) { return h.gen.Predictions(ctx, symbol) })
	if err != nil {
		return h.unavailable(c, "predictions", err)
	}
	setCacheHeader(c, hit)
	return c.JSON(http.StatusOK, set)
}

func (h *ForecastEchoHandler) Sentiment(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return c.JSON(http.StatusBadRequest, verr)
	}
	s, err := h.gen.Sentiment(c.Request().Context(), util.NormalizeSymbol(req.Symbol))
	if err != nil {
		return h.unavailable(c, "sentiment", err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *ForecastEchoHandler) Future(c echo.Context) error {
	req := &models.FutureRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return c.JSON(http.StatusBadRequest, verr)
	}
	symbol := util.NormalizeSymbol(req.Symbol)
	key := cache.GenerateKeyWithParams("future", symbol, h.gen.Today(), req.Days)
	f, hit, err := cache.GetOrLoad(c.Request().Context(), h.cache, key, h.ttl,
		func(ctx context.Context) (models.FutureSeries, error) { return h.gen.Future(ctx, symbol, req.Days) })
	if err != nil {
		return h.unavailable(c, "future", err)
	}
	setCacheHeader(c, hit)
	return c.JSON(http.StatusOK, f)
}

func (h *ForecastEchoHandler) unavailable(c echo.Context, op string, err error) error {
	h.logger.Warn("forecast request aborted",
		xlogger.String("op", op),
		xlogger.String("symbol", c.Param("symbol")),
		xlogger.Error(err),
	)
	appErr := xhttp.NewAppError("ERR_UNAVAILABLE", "", "request aborted", http.StatusServiceUnavailable).WithError(err)
	return c.JSON(appErr.Status, appErr)
}

func setCacheHeader(c echo.Context, hit bool) {
	if hit {
		c.Response().Header().Set("X-Cache", "HIT")
		return
	}
	c.Response().Header().Set("X-Cache", "MISS")
}
