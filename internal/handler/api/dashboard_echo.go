package api

import (
	"StockSight/internal/domain/models"
	"StockSight/internal/usecase"
	xhttp "StockSight/pkg/http"
	xlogger "StockSight/pkg/logger"
	"StockSight/pkg/util"

	"github.com/labstack/echo/v4"
)

// DashboardEchoHandler serves the dashboard API in the standard response envelope.
type DashboardEchoHandler struct {
	logger    *xlogger.Logger
	provider  *usecase.Provider
	dashboard *usecase.Dashboard
	snapshots *usecase.SnapshotCollector
	symbols   []string
	probe     usecase.ProbeResult
}

func NewDashboardEchoHandler(
	logger *xlogger.Logger,
	provider *usecase.Provider,
	dashboard *usecase.Dashboard,
	symbols []string,
	probe usecase.ProbeResult,
) *DashboardEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &DashboardEchoHandler{
		logger:    logger,
		provider:  provider,
		dashboard: dashboard,
		symbols:   symbols,
		probe:     probe,
	}
}

// SetSnapshots enables the snapshots endpoint.
func (h *DashboardEchoHandler) SetSnapshots(c *usecase.SnapshotCollector) { h.snapshots = c }

func (h *DashboardEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/symbols", h.Symbols)
	g.GET("/provider", h.ProviderInfo)
	g.GET("/dashboard/:symbol", h.Dashboard)
	g.GET("/dashboard/:symbol/accuracy", h.Accuracy)
	g.GET("/dashboard/:symbol/snapshots", h.Snapshots)
}

// Symbols lists the symbol universe the dashboard offers.
func (h *DashboardEchoHandler) Symbols(c echo.Context) error {
	return xhttp.ListResponse(c, h.symbols, int64(len(h.symbols)))
}

// ProviderInfo reports the resolved data mode and how it was chosen.
func (h *DashboardEchoHandler) ProviderInfo(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"mode":  h.provider.Mode(),
		"probe": h.probe,
	})
}

func (h *DashboardEchoHandler) Dashboard(c echo.Context) error {
	req := &models.DashboardRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	view, err := h.dashboard.Load(c.Request().Context(), req.Symbol, usecase.DashboardOptions{
		HistoryDays: req.HistoryDays,
		FutureDays:  req.FutureDays,
	})
	if err != nil {
		h.logger.Error("dashboard usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	if view.Degraded {
		c.Response().Header().Set("X-Data-Degraded", "true")
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, view)
}

func (h *DashboardEchoHandler) Accuracy(c echo.Context) error {
	req := &models.AccuracyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	model, ok := models.ParseModelType(req.Model)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("unknown model %q", req.Model))
	}

	res := h.provider.Accuracy(c.Request().Context(), req.Symbol, model, req.Days)
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardEchoHandler) Snapshots(c echo.Context) error {
	req := &models.SnapshotsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.snapshots == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("snapshots are disabled"))
	}

	symbol := util.NormalizeSymbol(req.Symbol)
	snaps, readable, err := h.snapshots.Recent(c.Request().Context(), symbol, req.Limit)
	if !readable {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError("snapshot backend is write-only"))
	}
	if err != nil {
		h.logger.Error("snapshot query error",
			xlogger.String("symbol", symbol),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, xhttp.InternalError("query snapshots failed").WithError(err))
	}
	if snaps == nil {
		snaps = []models.Snapshot{}
	}
	return xhttp.ListResponse(c, snaps, int64(len(snaps)))
}
