package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/japaniel/yomiwake/pkg/kvstore"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GetRecord returns the record stored under key, or kvstore.ErrNotFound.
// Keys are trimmed the same way PutRecord trims them.
func GetRecord(ctx context.Context, db DBExecutor, key string) (Record, error) {
	key = strings.TrimSpace(key)
	rec := Record{Key: key}
	err := db.QueryRowContext(ctx,
		`SELECT value, updated_at FROM kv_records WHERE key = ?`, key,
	).Scan(&rec.Value, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, kvstore.ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("select record %s: %w", key, err)
	}
	return rec, nil
}

// PutRecord inserts or replaces the value stored under key.
func PutRecord(ctx context.Context, db DBExecutor, key string, value []byte) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return fmt.Errorf("key must be non-empty")
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO kv_records (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   value = excluded.value,
		   updated_at = excluded.updated_at`,
		trimmed, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert record %s: %w", key, err)
	}
	return nil
}

// InsertUpdateRun appends an audit row and returns its id.
func InsertUpdateRun(ctx context.Context, db DBExecutor, run UpdateRun) (int64, error) {
	if run.RanAt.IsZero() {
		return 0, fmt.Errorf("ranAt must be set")
	}
	res, err := db.ExecContext(ctx,
		`INSERT INTO update_runs (ran_at, watermark, eligible, matched, added) VALUES (?, ?, ?, ?, ?)`,
		run.RanAt.UTC(), run.Watermark.UTC(), run.Eligible, run.Matched, run.Added,
	)
	if err != nil {
		return 0, fmt.Errorf("insert update run: %w", err)
	}
	return res.LastInsertId()
}

// RecentUpdateRuns returns up to limit audit rows, newest first.
func RecentUpdateRuns(ctx context.Context, db DBExecutor, limit int) ([]UpdateRun, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, ran_at, watermark, eligible, matched, added FROM update_runs ORDER BY ran_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UpdateRun
	for rows.Next() {
		var r UpdateRun
		if err := rows.Scan(&r.ID, &r.RanAt, &r.Watermark, &r.Eligible, &r.Matched, &r.Added); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// KVStore adapts a SQLite connection to kvstore.Store.
type KVStore struct {
	conn *sql.DB
}

// NewKVStore wraps an initialised connection.
func NewKVStore(conn *sql.DB) *KVStore {
	return &KVStore{conn: conn}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	rec, err := GetRecord(ctx, s.conn, key)
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	return PutRecord(ctx, s.conn, key, value)
}

// RecordUpdate writes an audit row for a cache update.
func (s *KVStore) RecordUpdate(ctx context.Context, run UpdateRun) error {
	_, err := InsertUpdateRun(ctx, s.conn, run)
	return err
}

// RecentUpdates returns the newest audit rows.
func (s *KVStore) RecentUpdates(ctx context.Context, limit int) ([]UpdateRun, error) {
	return RecentUpdateRuns(ctx, s.conn, limit)
}

// Close closes the connection.
func (s *KVStore) Close() error {
	return s.conn.Close()
}
