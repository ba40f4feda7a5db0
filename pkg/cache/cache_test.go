package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type point struct {
	Day   int     `json:"day"`
	Close float64 `json:"close"`
}

func newTestMemory(size int) (*MemoryCache, *time.Time) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	mc := NewMemoryCache(WithMemoryMaxSize(size), WithMemoryCleanup(time.Hour))
	mc.now = func() time.Time { return now }
	return mc, &now
}

func TestMemoryRoundTripsTypedValues(t *testing.T) {
	mc, _ := newTestMemory(10)
	defer mc.Close()
	ctx := context.Background()

	in := []point{{1, 101.5}, {2, 99.25}}
	if err := mc.Set(ctx, "k", in, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	var out []point
	if err := mc.Get(ctx, "k", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(out) != 2 || out[1] != in[1] {
		t.Errorf("got %+v", out)
	}

	_ = mc.Set(ctx, "s", "plain", 0)
	var s string
	if err := mc.Get(ctx, "s", &s); err != nil || s != "plain" {
		t.Errorf("string = %q, %v", s, err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	mc, now := newTestMemory(10)
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "k", 1, time.Second)
	*now = now.Add(2 * time.Second)

	var v int
	if err := mc.Get(ctx, "k", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if ok, _ := mc.Exists(ctx, "k"); ok {
		t.Errorf("expired key reported present")
	}
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	mc, now := newTestMemory(2)
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "a", 1, 0)
	*now = now.Add(time.Second)
	_ = mc.Set(ctx, "b", 2, 0)
	*now = now.Add(time.Second)
	var v int
	_ = mc.Get(ctx, "a", &v) // a is now newer than b
	*now = now.Add(time.Second)
	_ = mc.Set(ctx, "c", 3, 0)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Errorf("b should have been evicted")
	}
	if ok, _ := mc.Exists(ctx, "a", "c"); !ok {
		t.Errorf("a or c missing")
	}
	if mc.Len() != 2 {
		t.Errorf("len = %d", mc.Len())
	}

	// Overwriting an existing key never evicts.
	_ = mc.Set(ctx, "c", 4, 0)
	if mc.Len() != 2 {
		t.Errorf("len after overwrite = %d", mc.Len())
	}
}

func TestMemoryDeleteByPattern(t *testing.T) {
	mc, _ := newTestMemory(10)
	defer mc.Close()
	ctx := context.Background()

	for _, k := range []string{"forecast:AAPL:1", "forecast:AAPL:2", "forecast:MSFT:1"} {
		_ = mc.Set(ctx, k, k, 0)
	}
	if err := mc.DeleteByPattern(ctx, BuildPattern("forecast:AAPL:")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mc.Len() != 1 {
		t.Fatalf("len = %d", mc.Len())
	}
	if ok, _ := mc.Exists(ctx, "forecast:MSFT:1"); !ok {
		t.Errorf("unrelated key removed")
	}
	if err := mc.DeleteByPattern(ctx, "[bad"); err == nil {
		t.Errorf("bad pattern accepted")
	}
}

func TestGetOrLoad(t *testing.T) {
	mc, _ := newTestMemory(10)
	defer mc.Close()
	ctx := context.Background()

	calls := 0
	load := func(context.Context) (point, error) {
		calls++
		return point{Day: 7, Close: 335.81}, nil
	}

	v, hit, err := GetOrLoad(ctx, mc, "p", time.Minute, load)
	if err != nil || hit || v.Close != 335.81 {
		t.Fatalf("first = %+v hit=%v err=%v", v, hit, err)
	}
	v, hit, _ = GetOrLoad(ctx, mc, "p", time.Minute, load)
	if !hit || v.Day != 7 || calls != 1 {
		t.Fatalf("second = %+v hit=%v calls=%d", v, hit, calls)
	}

	boom := errors.New("boom")
	if _, _, err := GetOrLoad(ctx, mc, "q", time.Minute, func(context.Context) (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if ok, _ := mc.Exists(ctx, "q"); ok {
		t.Errorf("failed load was cached")
	}

	// A nil cache just loads.
	if v, hit, _ := GetOrLoad[point](ctx, nil, "p", time.Minute, load); hit || v.Day != 7 {
		t.Errorf("nil cache = %+v hit=%v", v, hit)
	}
}

func TestRedisUnavailableIsNotAMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	rc := NewRedisCacheFromClient(client, "stocksight")
	defer rc.Close()

	var v int
	err := rc.Get(context.Background(), "k", &v)
	if err == nil || errors.Is(err, ErrCacheMiss) {
		t.Fatalf("err = %v", err)
	}
	if got := rc.key("forecast:AAPL"); got != "stocksight:forecast:AAPL" {
		t.Errorf("key = %s", got)
	}
}

func TestGenerateKeyWithParams(t *testing.T) {
	if got := GenerateKeyWithParams("future", "AAPL", "2026-10-16", 7); got != "future:AAPL:2026-10-16:7" {
		t.Errorf("key = %s", got)
	}
}

func TestMemoryCloseIsIdempotent(t *testing.T) {
	mc := NewMemoryCache()
	if err := mc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := mc.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestMemoryOverwriteRefreshesRecency(t *testing.T) {
	mc, now := newTestMemory(2)
	defer mc.Close()
	ctx := context.Background()

	_ = mc.Set(ctx, "a", 1, 0)
	*now = now.Add(time.Second)
	_ = mc.Set(ctx, "b", 2, 0)
	_ = mc.Set(ctx, "a", 10, 0)
	_ = mc.Set(ctx, "c", 3, 0)

	var v int
	if err := mc.Get(ctx, "a", &v); err != nil || v != 10 {
		t.Fatalf("a = %d, %v", v, err)
	}
	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Errorf("b should have been evicted")
	}
}
