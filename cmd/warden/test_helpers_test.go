package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"warden/internal/api"
	"warden/internal/community"
	"warden/internal/config"
	"warden/internal/daemon"
	"warden/internal/directory"
	"warden/internal/evidence"
	"warden/internal/gateway"
	"warden/internal/ledger"
	"warden/internal/logging"
	"warden/internal/queue"
	"warden/internal/review"
	"warden/internal/testsupport"
	"warden/internal/verification"
)

type blankAnalyzer struct{}

func (blankAnalyzer) Analyze(context.Context, []byte) evidence.AnalysisResult {
	return evidence.NoIdentifierFound("blank")
}

type echoFetcher struct{}

func (echoFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	return []byte(ref), nil
}

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	client     *api.Client
	configPath string
	apiAddr    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t,
		testsupport.WithDirectory([2]string{"Ada Lovelace", "10010001"}, [2]string{"Grace Hopper", "10020002"}),
		testsupport.WithReferences(),
		testsupport.WithStubbedBinaries(),
	)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("USER", "tester")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	configPath := filepath.Join(base, "warden.toml")
	writeTestConfig(t, configPath, cfg)

	db := testsupport.MustOpenDB(t, cfg)
	led, err := ledger.New(ledger.NewMemoryRepository())
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	q := queue.New(queue.NewEstimator(cfg.Queue))
	communities := community.NewStore(db)
	reviews := review.NewStore(db)
	dir := directory.NewCSV(cfg.Directory.Path, logging.NewNop())

	coord, err := verification.New(verification.Dependencies{
		Queue:     q,
		Ledger:    led,
		Analyzer:  blankAnalyzer{},
		Fetcher:   echoFetcher{},
		Directory: dir,
		Gateway:   gateway.NewLog(logging.NewNop()),
		Settings:  communities,
		Reviews:   reviews,
	})
	if err != nil {
		t.Fatalf("verification.New: %v", err)
	}

	d, err := daemon.New(cfg, logging.NewNop(), api.Dependencies{
		Coordinator: coord,
		Queue:       q,
		Ledger:      led,
		Communities: communities,
		Reviews:     reviews,
		Directory:   dir,
	}, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Error("daemon did not stop")
		}
	})
	waitFor(t, 5*time.Second, d.Running)

	client, err := api.NewClient(d.Addr(), cfg.API.Token)
	if err != nil {
		t.Fatalf("api.NewClient: %v", err)
	}

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		client:     client,
		configPath: configPath,
		apiAddr:    d.Addr(),
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := runCLI(t, args, e.apiAddr, e.configPath)
	return out, err
}

func runCLI(t *testing.T, args []string, apiAddr, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if apiAddr != "" {
		flags = append(flags, "--api", apiAddr)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[api]
bind = %q
token = %q

[directory]
path = %q

[analyzer]
references_dir = %q
`,
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.API.Bind,
		cfg.API.Token,
		cfg.Directory.Path,
		cfg.Analyzer.ReferencesDir,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
