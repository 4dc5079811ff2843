package ledger

import (
	"context"
	"fmt"

	"warden/internal/config"
	"warden/internal/storage"
)

// OpenRepository selects the configured backend. The sqlite backend shares
// db; the others open their own connections and release them via the
// returned closer.
func OpenRepository(ctx context.Context, cfg config.Ledger, db *storage.DB) (Repository, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Backend {
	case "", "sqlite":
		if db == nil {
			return nil, nil, fmt.Errorf("ledger: sqlite backend requires an open database")
		}
		return NewSQLiteRepository(db), noop, nil
	case "memory":
		return NewMemoryRepository(), noop, nil
	case "postgres":
		repo, err := OpenPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case "redis":
		repo, err := OpenRedis(ctx, cfg.RedisURL, cfg.RedisKeyPrefix)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("ledger: unsupported backend %q", cfg.Backend)
	}
}
