package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/japaniel/yomiwake/pkg/kvstore"
	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Ensure single connection to avoid separate in-memory DBs per connection.
	db.SetMaxOpenConns(1)
	if err := InitDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestInitDBIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	if err := InitDB(db); err != nil {
		t.Fatalf("second InitDB failed: %v", err)
	}
	var name string
	if err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='kv_records'").Scan(&name); err != nil {
		t.Fatalf("kv_records table missing: %v", err)
	}
}

func TestGetRecordMissing(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	_, err := GetRecord(context.Background(), db, "nope")
	if !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutRecordUpserts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	if err := PutRecord(ctx, db, "k", []byte("one")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := PutRecord(ctx, db, "k", []byte("two")); err != nil {
		t.Fatalf("put 2: %v", err)
	}
	rec, err := GetRecord(ctx, db, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(rec.Value) != "two" {
		t.Fatalf("expected value two, got %q", rec.Value)
	}

	var cnt int
	if err := db.QueryRow(`SELECT COUNT(*) FROM kv_records`).Scan(&cnt); err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected 1 row, got %d", cnt)
	}
}

func TestRecordKeysAreTrimmed(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	if err := PutRecord(ctx, db, " knowledge ", []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	for _, key := range []string{" knowledge ", "knowledge"} {
		rec, err := GetRecord(ctx, db, key)
		if err != nil {
			t.Fatalf("get %q: %v", key, err)
		}
		if string(rec.Value) != "v" || rec.Key != "knowledge" {
			t.Fatalf("get %q: unexpected record %+v", key, rec)
		}
	}
}

func TestPutRecordRejectsEmptyKey(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	if err := PutRecord(context.Background(), db, "  ", []byte("x")); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestPutRecordInTransaction(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := PutRecord(ctx, tx, "k", []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if _, err := GetRecord(ctx, db, "k"); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("expected rolled back record to be absent, got %v", err)
	}
}

func TestUpdateRuns(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		run := UpdateRun{RanAt: base.Add(time.Duration(i) * time.Hour), Watermark: base, Eligible: i + 1, Matched: i, Added: i}
		if _, err := InsertUpdateRun(ctx, db, run); err != nil {
			t.Fatalf("insert run %d: %v", i, err)
		}
	}
	runs, err := RecentUpdateRuns(ctx, db, 2)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Eligible != 3 {
		t.Fatalf("expected newest run first, got %+v", runs[0])
	}

	if _, err := InsertUpdateRun(ctx, db, UpdateRun{}); err == nil {
		t.Fatal("expected error for zero RanAt")
	}
}

func TestKVStore(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s := NewKVStore(conn)
	defer s.Close()

	var _ kvstore.Store = s
	if _, err := s.Get(ctx, "k"); !errors.Is(err, kvstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Put(ctx, "k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("unexpected value %q", got)
	}
	if err := s.RecordUpdate(ctx, UpdateRun{RanAt: time.Now(), Watermark: time.Now(), Eligible: 1}); err != nil {
		t.Fatalf("record update: %v", err)
	}
	runs, err := s.RecentUpdates(ctx, 5)
	if err != nil {
		t.Fatalf("recent updates: %v", err)
	}
	if len(runs) != 1 || runs[0].Eligible != 1 {
		t.Fatalf("unexpected runs %+v", runs)
	}
}
