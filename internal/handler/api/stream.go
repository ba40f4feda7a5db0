package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"StockSight/internal/domain/models"
	"StockSight/internal/usecase"
	xhttp "StockSight/pkg/http"
	xlogger "StockSight/pkg/logger"
	"StockSight/pkg/util"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin:       func(*http.Request) bool { return true },
	EnableCompression: true,
}

// quoteMsg is one frame of the live quote stream.
type quoteMsg struct {
	Type   string        `json:"type"`
	Symbol string        `json:"symbol"`
	Source models.Source `json:"source"`
	Quote  models.Quote  `json:"quote"`
	Error  string        `json:"error,omitempty"`
}

// StreamHandler pushes a fresh quote to each websocket client every interval.
type StreamHandler struct {
	logger   *xlogger.Logger
	provider *usecase.Provider
	interval time.Duration
	ping     time.Duration
	clients  atomic.Int64
}

func NewStreamHandler(logger *xlogger.Logger, provider *usecase.Provider, interval, ping time.Duration) *StreamHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if ping <= 0 {
		ping = 30 * time.Second
	}
	return &StreamHandler{logger: logger, provider: provider, interval: interval, ping: ping}
}

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/quotes/:symbol", h.Quotes)
}

// Clients returns the number of connected stream clients.
func (h *StreamHandler) Clients() int64 { return h.clients.Load() }

func (h *StreamHandler) Quotes(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return c.JSON(http.StatusBadRequest, verr)
	}
	symbol := util.NormalizeSymbol(req.Symbol)

	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response.
		return nil
	}
	defer conn.Close()

	h.clients.Add(1)
	defer h.clients.Add(-1)
	h.logger.Debug("stream client connected",
		xlogger.String("symbol", symbol),
		xlogger.String("remote", c.RealIP()),
	)

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// reader: only pongs and close frames are expected
	readTimeout := 3 * h.ping
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	// writer
	tick := time.NewTicker(h.interval)
	defer tick.Stop()
	ping := time.NewTicker(h.ping)
	defer ping.Stop()

	if err := h.push(ctx, conn, symbol); err != nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if err := h.push(ctx, conn, symbol); err != nil {
				return nil
			}
		case <-ping.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return nil
			}
		}
	}
}

func (h *StreamHandler) push(ctx context.Context, conn *websocket.Conn, symbol string) error {
	res := h.provider.Quote(ctx, symbol)
	msg := quoteMsg{Type: "quote", Symbol: symbol, Source: res.Source, Quote: res.Data}
	if res.Err != nil {
		msg.Error = models.Classify(res.Err)
	}
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(msg); err != nil {
		h.logger.Debug("stream write failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		return err
	}
	return nil
}
