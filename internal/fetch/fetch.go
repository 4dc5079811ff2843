package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"warden/internal/config"
	"warden/internal/services"
)

// Fetcher retrieves evidence bytes for an image reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// HTTPFetcher downloads http(s) references and reads file:// or bare paths
// from disk. Every failure is transient: the submitter may simply retry.
type HTTPFetcher struct {
	client    *http.Client
	maxBytes  int64
	userAgent string
	timeout   time.Duration
}

// Option customizes an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient swaps the client, e.g. for httptest servers.
func WithHTTPClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// New builds a fetcher from the fetch section of the configuration.
func New(cfg config.Fetch, opts ...Option) *HTTPFetcher {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	f := &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		maxBytes:  cfg.MaxBytes,
		userAgent: strings.TrimSpace(cfg.UserAgent),
		timeout:   timeout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, services.Wrap(services.ErrValidation, "fetch", "parse ref", "image ref is empty", nil)
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "fetch", "parse ref", ref, err)
	}
	switch parsed.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, ref)
	case "file":
		return f.readFile(parsed.Path)
	case "":
		return f.readFile(ref)
	default:
		return nil, services.Wrap(services.ErrValidation, "fetch", "parse ref", "unsupported scheme "+parsed.Scheme, nil)
	}
}

func (f *HTTPFetcher) fetchHTTP(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "fetch", "build request", ref, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "fetch", "download", redact(ref), err)
		}
		return nil, services.Wrap(services.ErrTransient, "fetch", "download", redact(ref), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrTransient, "fetch", "download",
			fmt.Sprintf("%s returned %s", redact(ref), resp.Status), nil)
	}
	if f.maxBytes > 0 && resp.ContentLength > f.maxBytes {
		return nil, services.Wrap(services.ErrTransient, "fetch", "download",
			fmt.Sprintf("evidence is %d bytes, limit %d", resp.ContentLength, f.maxBytes), nil)
	}
	return f.readLimited(resp.Body, redact(ref))
}

func (f *HTTPFetcher) readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", "open file", path, err)
	}
	defer file.Close()
	return f.readLimited(file, path)
}

func (f *HTTPFetcher) readLimited(r io.Reader, label string) ([]byte, error) {
	if f.maxBytes > 0 {
		r = io.LimitReader(r, f.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "fetch", "read body", label, err)
		}
		return nil, services.Wrap(services.ErrTransient, "fetch", "read body", label, err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, services.Wrap(services.ErrTransient, "fetch", "read body",
			fmt.Sprintf("%s exceeds %d bytes", label, f.maxBytes), nil)
	}
	return data, nil
}

// redact drops query strings, which often carry signed CDN tokens.
func redact(ref string) string {
	if i := strings.IndexByte(ref, '?'); i >= 0 {
		return ref[:i]
	}
	return ref
}
