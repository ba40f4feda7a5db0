package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"StockSight/internal/domain/models"
	pkgkafka "StockSight/pkg/kafka"
)

func snapshotPayload(t *testing.T, sn models.Snapshot) []byte {
	t.Helper()
	b, err := json.Marshal(sn)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestSnapshotSinkStoresMessage(t *testing.T) {
	store, m := &memStore{}, &sentMetrics{}
	sink := NewSnapshotSink("stocksight.snapshots", store, m)

	sn := models.Snapshot{
		ID:      "abc",
		Symbol:  "aapl",
		Quote:   models.NewQuote("AAPL", "2026-10-16", 316.77, 323.44, 315.63, 318.25, 33390200),
		Source:  models.SourceSynthetic,
		TakenAt: time.Now().UTC(),
	}
	if err := sink.Handle(context.Background(), snapshotPayload(t, sn)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	got, _ := store.Recent(context.Background(), "AAPL", 5)
	if len(got) != 1 || got[0].ID != "abc" || got[0].Quote.Close != 318.25 {
		t.Fatalf("stored = %+v", got)
	}
	if m.sent["sink"] != 1 {
		t.Errorf("sent = %v", m.sent)
	}
}

func TestSnapshotSinkRejectsBadPayload(t *testing.T) {
	store := &memStore{}
	sink := NewSnapshotSink("t", store, nil)

	cases := map[string][]byte{
		"not json":   []byte("{"),
		"missing id": []byte(`{"symbol":"AAPL","takenAt":"2026-10-16T15:00:00Z"}`),
		"no time":    []byte(`{"id":"x","symbol":"AAPL"}`),
		"bad quote":  []byte(`{"id":"x","symbol":"AAPL","takenAt":"2026-10-16T15:00:00Z","quote":{"open":10,"high":5,"low":1,"close":9}}`),
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			if err := sink.Handle(context.Background(), b); !pkgkafka.IsPermanent(err) {
				t.Fatalf("err = %v, want permanent", err)
			}
		})
	}
	if len(store.snaps) != 0 {
		t.Errorf("bad payloads were stored")
	}
}

func TestSnapshotSinkStoreErrorIsRetryable(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	sink := NewSnapshotSink("t", store, nil)
	sn := models.Snapshot{
		ID:      "x",
		Symbol:  "MSFT",
		Quote:   models.NewQuote("MSFT", "2026-10-16", 10, 12, 9, 11, 100),
		TakenAt: time.Now(),
	}
	err := sink.Handle(context.Background(), snapshotPayload(t, sn))
	if err == nil || pkgkafka.IsPermanent(err) {
		t.Fatalf("err = %v", err)
	}
}
