//go:build integration

package ledger_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/suite"

	"warden/internal/ledger"
)

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("WARDEN_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WARDEN_TEST_POSTGRES_DSN not set")
	}
	suite.Run(t, &repositorySuite{newRepo: func(t *testing.T) ledger.Repository {
		repo, err := ledger.OpenPostgres(context.Background(), dsn)
		if err != nil {
			t.Fatalf("OpenPostgres: %v", err)
		}
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	}})
}

func TestRedisRepository(t *testing.T) {
	url := os.Getenv("WARDEN_TEST_REDIS_URL")
	if url == "" {
		t.Skip("WARDEN_TEST_REDIS_URL not set")
	}
	suite.Run(t, &repositorySuite{newRepo: func(t *testing.T) ledger.Repository {
		repo, err := ledger.OpenRedis(context.Background(), url, "warden-test")
		if err != nil {
			t.Fatalf("OpenRedis: %v", err)
		}
		t.Cleanup(func() { _ = repo.Close() })
		return repo
	}})
}
