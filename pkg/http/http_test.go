package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type historicalReq struct {
	Symbol string `param:"symbol" validate:"required,min=1,max=10,symbol"`
	Days   int    `query:"days" default:"30" validate:"gte=1,lte=365"`
}

func newContext(target string, names, values []string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), rec)
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	return c, rec
}

func TestReadAndValidateRequestDefaults(t *testing.T) {
	c, _ := newContext("/historical/AAPL", []string{"symbol"}, []string{"AAPL"})
	var req historicalReq
	if errs := ReadAndValidateRequest(c, &req); errs != nil {
		t.Fatalf("errs = %+v", errs)
	}
	if req.Symbol != "AAPL" || req.Days != 30 {
		t.Errorf("req = %+v", req)
	}
}

func TestReadAndValidateRequestReportsClientNames(t *testing.T) {
	c, _ := newContext("/historical/BRK$A?days=900", []string{"symbol"}, []string{"BRK$A"})
	var req historicalReq
	errs, ok := ReadAndValidateRequest(c, &req).([]ValidationError)
	if !ok || len(errs) != 2 {
		t.Fatalf("errs = %+v", errs)
	}
	got := map[string]string{}
	for _, e := range errs {
		got[e.Field] = e.Code
	}
	if got["symbol"] != "ERR_SYMBOL" || got["days"] != "ERR_LTE" {
		t.Errorf("fields = %v", got)
	}
}

func TestAppErrorResponse(t *testing.T) {
	c, rec := newContext("/", nil, nil)
	err := NotFoundError("no snapshots").WithError(errors.New("table missing"))
	if e := AppErrorResponse(c, err); e != nil {
		t.Fatal(e)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != 404 || len(body.Data) != 1 || body.Data[0].Code != "ERR_NOT_FOUND" {
		t.Errorf("body = %s", rec.Body.String())
	}

	c, rec = newContext("/", nil, nil)
	_ = AppErrorResponse(c, errors.New("plain"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("plain error status = %d", rec.Code)
	}
}

func TestClientStatusErrorIsNotRetried(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		if r.URL.Query().Get("days") != "5" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(WithTimeout(time.Second), WithRetries(3, time.Millisecond))
	err := c.SendAndParse(context.Background(), &RequestOptions{
		Method:      MethodGet,
		URL:         srv.URL,
		QueryParams: map[string][]string{"days": {"5"}},
	}, nil)

	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
		t.Fatalf("err = %v", err)
	}
	if n := atomic.LoadInt64(&hits); n != 1 {
		t.Errorf("hits = %d", n)
	}
}

func TestClientRetriesTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(WithTimeout(time.Second), WithRetries(2, time.Millisecond))
	start := time.Now()
	if err := c.SendAndParse(context.Background(), &RequestOptions{Method: MethodGet, URL: url}, nil); err == nil {
		t.Fatalf("expected error")
	}
	// 1ms + 2ms of backoff, well under a second
	if time.Since(start) > time.Second {
		t.Errorf("retries took %s", time.Since(start))
	}
}
