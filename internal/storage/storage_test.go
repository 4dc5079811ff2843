package storage_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"warden/internal/storage"
	"warden/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)

	if db.Path() != cfg.DatabasePath() {
		t.Fatalf("unexpected path %q", db.Path())
	}
	for _, table := range []string{"ledger_records", "review_cases", "community_settings"} {
		var count int
		if err := db.SQL().QueryRow("SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count); err != nil {
			t.Fatalf("query %s: %v", table, err)
		}
		if count != 1 {
			t.Fatalf("expected table %s", table)
		}
	}
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.db")
	first, err := storage.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if _, err := first.Exec(context.Background(),
		"INSERT INTO community_settings (community_id, privilege_id, updated_at) VALUES (?, ?, ?)",
		"guild", "role-1", storage.FormatTime(time.Now())); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = first.Close()

	second, err := storage.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	var privilege string
	if err := second.SQL().QueryRow("SELECT privilege_id FROM community_settings WHERE community_id = ?", "guild").Scan(&privilege); err != nil {
		t.Fatalf("select: %v", err)
	}
	if privilege != "role-1" {
		t.Fatalf("unexpected privilege %q", privilege)
	}
}

func TestSchemaVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warden.db")
	db, err := storage.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if _, err := db.SQL().Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("update version: %v", err)
	}
	_ = db.Close()

	if _, err := storage.OpenPath(path); !errors.Is(err, storage.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestRetryOnBusyStopsOnOtherErrors(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := storage.RetryOnBusy(context.Background(), func() error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected single call with boom, got %d calls err=%v", calls, err)
	}
}

func TestRetryOnBusyRetriesLockedDatabase(t *testing.T) {
	calls := 0
	err := storage.RetryOnBusy(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success after 3 calls, got %d err=%v", calls, err)
	}
}

func TestParseTimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 2, 3, 4, 5, 6, 7, time.UTC)
	if got := storage.ParseTime(storage.FormatTime(now)); !got.Equal(now) {
		t.Fatalf("round trip mismatch: %v", got)
	}
	if !storage.ParseTime("garbage").IsZero() {
		t.Fatal("expected zero time for garbage")
	}
	if storage.NullableTime(time.Time{}).Valid {
		t.Fatal("zero time must be NULL")
	}
}
