package directory_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"warden/internal/directory"
	"warden/internal/logging"
	"warden/internal/services"
)

func writeCSV(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
}

func TestLookupHeaderVariants(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"name first", "Name,ID\nGovernor X,58532591\n"},
		{"id first", "id,name\n58532591,Governor X\n"},
		{"headerless", "58532591,Governor X\n"},
		{"extra columns", "\xef\xbb\xbfalliance,ID,Name\nABC,58532591,Governor X\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "directory.csv")
			writeCSV(t, path, tc.content)
			dir := directory.NewCSV(path, logging.NewNop())

			entry, err := dir.Lookup(context.Background(), "58532591")
			if err != nil {
				t.Fatalf("Lookup: %v", err)
			}
			if entry.CanonicalName != "Governor X" {
				t.Fatalf("unexpected entry %+v", entry)
			}
		})
	}
}

func TestLookupFailsClosed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.csv")
	writeCSV(t, path, "Name,ID\nGovernor X,58532591\n")
	dir := directory.NewCSV(path, logging.NewNop())

	_, err := dir.Lookup(context.Background(), "12345678")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if services.Classify(err) != services.FailureIdentityMismatch {
		t.Fatalf("expected identity mismatch classification, got %s", services.Classify(err))
	}
}

func TestLookupMissingSourceIsConfigurationError(t *testing.T) {
	dir := directory.NewCSV(filepath.Join(t.TempDir(), "absent.csv"), logging.NewNop())
	_, err := dir.Lookup(context.Background(), "58532591")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestLookupInvalidNameIsConfigurationError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.csv")
	writeCSV(t, path, "Name,ID\n<script>,58532591\n")
	dir := directory.NewCSV(path, logging.NewNop())

	_, err := dir.Lookup(context.Background(), "58532591")
	if !errors.Is(err, directory.ErrInvalidName) || !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected invalid name configuration error, got %v", err)
	}
}

func TestStatsCountsSkippedAndDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.csv")
	writeCSV(t, path, "Name,ID\nA1,111111\nB2,abc\nC3,111111\nD4,222222\n")
	dir := directory.NewCSV(path, logging.NewNop())

	stats, err := dir.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Entries != 2 || stats.SkippedNonNumeric != 1 || stats.Duplicates != 1 || stats.Rows != 4 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	entry, err := dir.Lookup(context.Background(), "111111")
	if err != nil || entry.CanonicalName != "A1" {
		t.Fatalf("expected first duplicate to win, got %+v err=%v", entry, err)
	}
}

func TestReloadOnModification(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.csv")
	writeCSV(t, path, "Name,ID\nOld Name,58532591\n")
	dir := directory.NewCSV(path, logging.NewNop())
	if _, err := dir.Lookup(context.Background(), "58532591"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	writeCSV(t, path, "Name,ID\nNew Name,58532591\nOther,77777777\n")
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	entry, err := dir.Lookup(context.Background(), "58532591")
	if err != nil || entry.CanonicalName != "New Name" {
		t.Fatalf("expected reloaded entry, got %+v err=%v", entry, err)
	}
}

func TestLookupEmptySourceIsConfigurationError(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"empty file", ""},
		{"header only", "Name,ID\n"},
		{"headerless name first", "Governor X,58532591\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "directory.csv")
			writeCSV(t, path, tc.content)
			dir := directory.NewCSV(path, logging.NewNop())

			_, err := dir.Lookup(context.Background(), "58532591")
			if !errors.Is(err, services.ErrConfiguration) || !errors.Is(err, directory.ErrEmpty) {
				t.Fatalf("expected empty-directory configuration error, got %v", err)
			}
			if errors.Is(err, services.ErrNotFound) {
				t.Fatalf("empty directory must not report a miss: %v", err)
			}
		})
	}
}

func TestReloadKeepsServingNothingFromEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directory.csv")
	writeCSV(t, path, "Name,ID\nGovernor X,58532591\n")
	dir := directory.NewCSV(path, logging.NewNop())
	if _, err := dir.Lookup(context.Background(), "58532591"); err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	writeCSV(t, path, "Name,ID\n")
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if _, err := dir.Lookup(context.Background(), "12345678"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error after emptying the file, got %v", err)
	}

	writeCSV(t, path, "Name,ID\nGovernor Y,12345678\n")
	fixed := later.Add(2 * time.Second)
	if err := os.Chtimes(path, fixed, fixed); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	entry, err := dir.Lookup(context.Background(), "12345678")
	if err != nil || entry.CanonicalName != "Governor Y" {
		t.Fatalf("expected recovery after fix, got %+v err=%v", entry, err)
	}
}

func TestSanitizeName(t *testing.T) {
	good := map[string]string{
		"  Governor   X ": "Governor X",
		"[TAG] Ké_ro.#1":  "[TAG] Ké_ro.#1",
		"O'Neil-2":        "O'Neil-2",
		"e\u0301clair":    "\u00e9clair",
	}
	for raw, want := range good {
		got, err := directory.SanitizeName(raw)
		if err != nil || got != want {
			t.Fatalf("SanitizeName(%q) = %q,%v want %q", raw, got, err, want)
		}
	}
	for _, raw := range []string{"A", "", "name<>", "abcdefghijklmnopqrstuvwxyz1234567", "emoji 😀"} {
		if _, err := directory.SanitizeName(raw); !errors.Is(err, directory.ErrInvalidName) {
			t.Fatalf("expected %q to be rejected, got %v", raw, err)
		}
	}
}
