package testsupport

import (
	"testing"

	"warden/internal/config"
	"warden/internal/storage"
)

// MustOpenDB opens the warden SQLite database for tests and registers cleanup.
func MustOpenDB(t testing.TB, cfg *config.Config) *storage.DB {
	t.Helper()

	db, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}
