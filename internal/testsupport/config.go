package testsupport

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"warden/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Directory.Path = filepath.Join(base, "directory.csv")
	cfgVal.Analyzer.ReferencesDir = filepath.Join(base, "references")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.API.Token = "test-token"
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithDirectory writes a "Name,ID" CSV with the given rows and points the
// config at it. Rows are name, id pairs.
func WithDirectory(rows ...[2]string) ConfigOption {
	return func(b *configBuilder) {
		WriteDirectoryCSV(b.t, b.cfg.Directory.Path, rows...)
	}
}

// WithReferences writes the default anchor fragment into the references
// directory, or the provided fragments when given.
func WithReferences(fragments ...image.Image) ConfigOption {
	return func(b *configBuilder) {
		if len(fragments) == 0 {
			fragments = []image.Image{AnchorFragment()}
		}
		for i, fragment := range fragments {
			WritePNG(b.t, filepath.Join(b.cfg.Analyzer.ReferencesDir, referenceName(i)), fragment)
		}
	}
}

// WithLedgerBackend overrides the ledger backend.
func WithLedgerBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Ledger.Backend = backend
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, tesseract is stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"tesseract"}
		}
		StubBinary(b.t, filepath.Join(b.baseDir, "bin"), "#!/bin/sh\nexit 0\n", names...)
	}
}

// StubBinary writes script as each named executable under binDir and
// prepends binDir to PATH for the rest of the test.
func StubBinary(t testing.TB, binDir, script string, names ...string) {
	t.Helper()
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	for _, name := range names {
		target := filepath.Join(binDir, name)
		if err := os.WriteFile(target, []byte(script), 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}

	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

func referenceName(i int) string {
	return "anchor_" + string(rune('a'+i)) + ".png"
}
