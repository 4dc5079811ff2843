package fetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"warden/internal/config"
	"warden/internal/fetch"
	"warden/internal/services"
	"warden/internal/testsupport"
)

func newFetcher(maxBytes int64, timeout int) *fetch.HTTPFetcher {
	cfg := config.Default().Fetch
	cfg.MaxBytes = maxBytes
	cfg.TimeoutSeconds = timeout
	return fetch.New(cfg)
}

func TestFetchHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "Warden/0.1" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		_, _ = w.Write([]byte("pixels"))
	}))
	defer srv.Close()

	data, err := newFetcher(1024, 5).Fetch(context.Background(), srv.URL+"/a.png?token=secret")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(data) != "pixels" {
		t.Fatalf("unexpected body %q", data)
	}
}

func TestFetchNon2xxIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newFetcher(1024, 5).Fetch(context.Background(), srv.URL+"/a.png?sig=abc")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if got := err.Error(); strings.Contains(got, "sig=abc") {
		t.Fatalf("query string leaked into error: %s", got)
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newFetcher(1024, 5).Fetch(ctx, srv.URL)
	if services.Classify(err) != services.FailureTransient {
		t.Fatalf("expected transient classification, got %v", err)
	}
}

func TestFetchEnforcesMaxBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.png")
	testsupport.WriteFile(t, path, 2048)

	if _, err := newFetcher(1024, 5).Fetch(context.Background(), path); !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected size limit error, got %v", err)
	}
	data, err := newFetcher(4096, 5).Fetch(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("Fetch file url: %v", err)
	}
	if len(data) != 2048 {
		t.Fatalf("expected 2048 bytes, got %d", len(data))
	}
}

func TestFetchRejectsUnsupportedScheme(t *testing.T) {
	_, err := newFetcher(1024, 5).Fetch(context.Background(), "ftp://example.org/a.png")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
