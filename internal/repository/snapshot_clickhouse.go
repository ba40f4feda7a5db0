package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"StockSight/internal/domain/models"
	"StockSight/internal/domain/repository"
	pkgch "StockSight/pkg/clickhouse"
	applogger "StockSight/pkg/logger"
)

// ClickHouseSnapshotStore implements SnapshotStore for ClickHouse.
type ClickHouseSnapshotStore struct {
	db    *sql.DB
	ch    *pkgch.Client
	table string
	l     *applogger.Logger
}

// NewClickHouseSnapshotStore creates ClickHouse storage writing to table.
func NewClickHouseSnapshotStore(ch *pkgch.Client, table string) *ClickHouseSnapshotStore {
	return &ClickHouseSnapshotStore{db: ch.DB(), ch: ch, table: table}
}

var _ repository.SnapshotStore = (*ClickHouseSnapshotStore)(nil)

// SetLogger injects a structured logger.
func (s *ClickHouseSnapshotStore) SetLogger(l *applogger.Logger) { s.l = l }

// SnapshotSchema returns the DDL for the snapshot table.
func SnapshotSchema(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id             String,
		symbol         LowCardinality(String),
		taken_at       DateTime64(3, 'UTC'),
		source         LowCardinality(String),
		quote_date     String,
		open           Float64,
		high           Float64,
		low            Float64,
		close          Float64,
		volume         Int64,
		change         Float64,
		change_percent Float64
	) ENGINE = ReplacingMergeTree
	ORDER BY (symbol, taken_at, id)`, table)}
}

// exec bounds one insert by the client's write timeout.
func (s *ClickHouseSnapshotStore) exec(ctx context.Context, stmt string, args []interface{}) error {
	if d := s.ch.WriteTimeout(); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	_, err := s.db.ExecContext(ctx, stmt, args...)
	return err
}

func (s *ClickHouseSnapshotStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, SnapshotSchema(s.table))
}

// StoreBatch inserts snapshots using multi-row VALUES, 2000 rows per statement.
func (s *ClickHouseSnapshotStore) StoreBatch(ctx context.Context, snaps []models.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(snaps); start += chunkSize {
		end := start + chunkSize
		if end > len(snaps) {
			end = len(snaps)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*12)
		for _, sn := range snaps[start:end] {
			if sn.ID == "" || sn.Symbol == "" {
				continue
			}
			q := sn.Quote
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				sn.ID, sn.Symbol, sn.TakenAt.UTC(), string(sn.Source), q.Date,
				q.Open, q.High, q.Low, q.Close, q.Volume, q.Change, q.ChangePercent,
			)
		}
		if len(values) == 0 {
			continue
		}
		stmt := fmt.Sprintf(`INSERT INTO %s
			(id, symbol, taken_at, source, quote_date, open, high, low, close, volume, change, change_percent)
			VALUES %s`, s.table, strings.Join(values, ","))
		if err := s.exec(ctx, stmt, args); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse snapshot insert error",
					applogger.String("table", s.table),
					applogger.Int("rows", len(values)),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("insert snapshots: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseSnapshotStore) Recent(ctx context.Context, symbol string, limit int) ([]models.Snapshot, error) {
	q := fmt.Sprintf(`SELECT id, symbol, taken_at, source, quote_date,
		open, high, low, close, volume, change, change_percent
		FROM %s WHERE symbol = ? ORDER BY taken_at DESC LIMIT ?`, s.table)
	rows, err := s.db.QueryContext(ctx, q, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.Snapshot
	for rows.Next() {
		var (
			sn     models.Snapshot
			ts     time.Time
			source string
		)
		q := &sn.Quote
		if err := rows.Scan(&sn.ID, &sn.Symbol, &ts, &source, &q.Date,
			&q.Open, &q.High, &q.Low, &q.Close, &q.Volume, &q.Change, &q.ChangePercent); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		q.Symbol = sn.Symbol
		sn.Source = models.Source(source)
		sn.TakenAt = ts.UTC()
		out = append(out, sn)
	}
	return out, rows.Err()
}

func (s *ClickHouseSnapshotStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseSnapshotStore) Close() error {
	return nil // Managed by pkg
}
