package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"StockSight/internal/domain/models"
	"StockSight/internal/domain/repository"

	_ "modernc.org/sqlite"
)

// SQLiteSnapshotStore keeps snapshots in a local SQLite file.
type SQLiteSnapshotStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteSnapshotStore opens (or creates) the database at path and runs migrations.
// Use ":memory:" for a throwaway store.
func NewSQLiteSnapshotStore(path string) (*SQLiteSnapshotStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteSnapshotStore{db: db}
	if err := s.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

var _ repository.SnapshotStore = (*SQLiteSnapshotStore)(nil)

// Init creates the schema if missing.
func (s *SQLiteSnapshotStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS quote_snapshots (
			id             TEXT PRIMARY KEY,
			symbol         TEXT NOT NULL,
			taken_at       INTEGER NOT NULL,
			source         TEXT NOT NULL,
			quote_date     TEXT NOT NULL,
			open           REAL,
			high           REAL,
			low            REAL,
			close          REAL,
			volume         INTEGER,
			change         REAL,
			change_percent REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_symbol_ts ON quote_snapshots(symbol, taken_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// StoreBatch inserts snapshots in one transaction. Existing IDs are replaced.
func (s *SQLiteSnapshotStore) StoreBatch(ctx context.Context, snaps []models.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO quote_snapshots
		(id, symbol, taken_at, source, quote_date, open, high, low, close, volume, change, change_percent)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, sn := range snaps {
		q := sn.Quote
		if _, err := stmt.ExecContext(ctx,
			sn.ID, sn.Symbol, sn.TakenAt.UnixMilli(), string(sn.Source), q.Date,
			q.Open, q.High, q.Low, q.Close, q.Volume, q.Change, q.ChangePercent,
		); err != nil {
			return fmt.Errorf("insert %s: %w", sn.ID, err)
		}
	}
	return tx.Commit()
}

// Recent returns up to limit snapshots for symbol, newest first.
func (s *SQLiteSnapshotStore) Recent(ctx context.Context, symbol string, limit int) ([]models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, symbol, taken_at, source, quote_date,
		open, high, low, close, volume, change, change_percent
		FROM quote_snapshots WHERE symbol = ? ORDER BY taken_at DESC LIMIT ?`, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.Snapshot
	for rows.Next() {
		var (
			sn     models.Snapshot
			ms     int64
			source string
		)
		q := &sn.Quote
		if err := rows.Scan(&sn.ID, &sn.Symbol, &ms, &source, &q.Date,
			&q.Open, &q.High, &q.Low, &q.Close, &q.Volume, &q.Change, &q.ChangePercent); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		q.Symbol = sn.Symbol
		sn.Source = models.Source(source)
		sn.TakenAt = time.UnixMilli(ms).UTC()
		out = append(out, sn)
	}
	return out, rows.Err()
}

func (s *SQLiteSnapshotStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteSnapshotStore) Close() error {
	return s.db.Close()
}
