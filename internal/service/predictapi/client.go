package predictapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"StockSight/internal/domain/models"
	svcmetrics "StockSight/internal/service/metrics"
	"StockSight/pkg/config"
	xhttp "StockSight/pkg/http"
	applogger "StockSight/pkg/logger"
)

// Client talks to the remote prediction API. It implements service.MarketData.
// Failures come back classified: *models.RemoteError for non-2xx answers,
// models.ErrNetworkFault for transport problems and models.ErrMalformedResponse
// for bodies that do not decode or break the payload invariants.
type Client struct {
	baseURL string
	client  *xhttp.Client
	l       *applogger.Logger
}

// NewClient builds a client for baseURL, which already includes the /api prefix.
func NewClient(baseURL string, opts ...xhttp.ClientOption) *Client {
	svcmetrics.Register()
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  xhttp.NewClient(opts...),
	}
}

// NewClientFromConfig builds a client with timeout and retries from config.
func NewClientFromConfig(cfg *config.Config) *Client {
	timeout := cfg.Remote.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return NewClient(cfg.RemoteAPIBase(),
		xhttp.WithTimeout(timeout),
		xhttp.WithRetries(cfg.Remote.Retries, 0),
	)
}

// SetLogger injects application logger.
func (c *Client) SetLogger(l *applogger.Logger) { c.l = l }

// BaseURL returns the API root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Quote fetches the current quote.
func (c *Client) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	var q models.Quote
	if err := c.getJSON(ctx, "stock", "/stock/"+url.PathEscape(symbol), nil, &q); err != nil {
		return models.Quote{}, err
	}
	if err := q.Validate(); err != nil {
		return models.Quote{}, c.malformed("stock", err)
	}
	return q, nil
}

// Historical fetches days+1 daily quotes ending today.
func (c *Client) Historical(ctx context.Context, symbol string, days int) (models.HistoricalSeries, error) {
	var series models.HistoricalSeries
	query := url.Values{"days": {strconv.Itoa(days)}}
	if err := c.getJSON(ctx, "historical", "/historical/"+url.PathEscape(symbol), query, &series); err != nil {
		return nil, err
	}
	if err := series.Validate(days); err != nil {
		return nil, c.malformed("historical", err)
	}
	return series, nil
}

// Predictions fetches next-day forecasts for every model.
func (c *Client) Predictions(ctx context.Context, symbol string) (models.PredictionSet, error) {
	var set models.PredictionSet
	if err := c.getJSON(ctx, "predictions", "/predictions/"+url.PathEscape(symbol), nil, &set); err != nil {
		return nil, err
	}
	if err := set.Validate(); err != nil {
		return nil, c.malformed("predictions", err)
	}
	return set, nil
}

// Sentiment fetches the tweet-sentiment breakdown.
func (c *Client) Sentiment(ctx context.Context, symbol string) (models.Sentiment, error) {
	var s models.Sentiment
	if err := c.getJSON(ctx, "sentiment", "/sentiment/"+url.PathEscape(symbol), nil, &s); err != nil {
		return models.Sentiment{}, err
	}
	if err := s.Validate(); err != nil {
		return models.Sentiment{}, c.malformed("sentiment", err)
	}
	return s, nil
}

// Future fetches a multi-day forecast keyed "1".."N".
func (c *Client) Future(ctx context.Context, symbol string, days int) (models.FutureSeries, error) {
	var f models.FutureSeries
	query := url.Values{"days": {strconv.Itoa(days)}}
	if err := c.getJSON(ctx, "future", "/future/"+url.PathEscape(symbol), query, &f); err != nil {
		return nil, err
	}
	if err := f.ValidateDays(days); err != nil {
		return nil, c.malformed("future", err)
	}
	return f, nil
}

// getJSON performs a GET under baseURL and decodes the body into dest.
func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, dest interface{}) error {
	if c.client == nil || c.baseURL == "" {
		return fmt.Errorf("%w: prediction api client not initialized", models.ErrNetworkFault)
	}

	start := time.Now()
	var body []byte
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		Headers:     map[string]string{"Accept": "application/json"},
		QueryParams: query,
	}, &body)
	svcmetrics.RemoteLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			err = &models.RemoteError{Status: se.Code, Body: strings.TrimSpace(string(se.Body))}
		} else {
			err = fmt.Errorf("%w: get %s: %w", models.ErrNetworkFault, path, err)
		}
		c.observeError(endpoint, err)
		return err
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return c.malformed(endpoint, fmt.Errorf("decode: %w", err))
	}
	return nil
}

func (c *Client) malformed(endpoint string, cause error) error {
	err := fmt.Errorf("%w: %s: %v", models.ErrMalformedResponse, endpoint, cause)
	c.observeError(endpoint, err)
	return err
}

func (c *Client) observeError(endpoint string, err error) {
	kind := models.Classify(err)
	svcmetrics.RemoteErrors.WithLabelValues(endpoint, kind).Inc()
	if c.l != nil {
		c.l.Debug("prediction api call failed",
			applogger.String("endpoint", endpoint),
			applogger.String("kind", kind),
			applogger.Error(err),
		)
	}
}
