package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"warden/internal/analyzer"
	"warden/internal/api"
	"warden/internal/community"
	"warden/internal/config"
	"warden/internal/daemon"
	"warden/internal/directory"
	"warden/internal/fetch"
	"warden/internal/gateway"
	"warden/internal/ledger"
	"warden/internal/logging"
	"warden/internal/metrics"
	"warden/internal/notifications"
	"warden/internal/queue"
	"warden/internal/review"
	"warden/internal/services"
	"warden/internal/storage"
	"warden/internal/verification"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the warden daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger, closeLogs, err := newLogger(cfg, opts)
	if err != nil {
		return err
	}
	defer closeLogs()

	rt, err := build(signalCtx, cfg, logger)
	if err != nil {
		logging.ErrorWithContext(logger, "daemon wiring failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "run 'warden config validate' and 'warden status'"),
			logging.String(logging.FieldImpact, "no submissions will be processed"),
		)
		return err
	}
	defer rt.close()

	if err := rt.daemon.Run(signalCtx); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return err
		}
		logging.ErrorWithContext(logger, "daemon stopped with error", "daemon_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the api bind address and database access"),
		)
		return err
	}
	logger.Info("warden daemon shut down")
	return nil
}

type runtime struct {
	daemon  *daemon.Daemon
	closers []func() error
}

func (r *runtime) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

// build constructs every component from cfg. Closers run in reverse order
// of construction.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	rt := &runtime{}
	fail := func(err error) (*runtime, error) {
		rt.close()
		return nil, err
	}

	db, err := storage.Open(cfg)
	if err != nil {
		return fail(fmt.Errorf("open database: %w", err))
	}
	rt.closers = append(rt.closers, db.Close)

	repo, closeRepo, err := ledger.OpenRepository(ctx, cfg.Ledger, db)
	if err != nil {
		return fail(services.Wrap(services.ErrConfiguration, "ledger", "open repository", cfg.Ledger.Backend, err))
	}
	rt.closers = append(rt.closers, closeRepo)

	led, err := ledger.New(repo,
		ledger.WithPolicy(ledger.PolicyFromConfig(cfg.Ledger)),
		ledger.WithLogger(logger),
	)
	if err != nil {
		return fail(err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	q := queue.New(queue.NewEstimator(cfg.Queue), queue.WithLogger(logger), queue.WithMetrics(m))

	an, err := analyzer.New(cfg.Analyzer, analyzer.NewTesseract(cfg.Analyzer), logger)
	if err != nil {
		return fail(services.Wrap(services.ErrConfiguration, "analyzer", "load references", cfg.Analyzer.ReferencesDir, err))
	}

	gw, err := gateway.New(cfg.Gateway, logger)
	if err != nil {
		return fail(err)
	}

	notifier, err := notifications.NewService(ctx, cfg)
	if err != nil {
		logging.WarnWithContext(logger, "notifications disabled", "notifications_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the notifications section of the config"),
			logging.String(logging.FieldImpact, "operators will not be alerted about escalations"),
		)
		notifier = notifications.NewNoop()
	}

	dir := directory.NewCSV(cfg.Directory.Path, logger)
	communities := community.NewStore(db)
	reviews := review.NewStore(db)

	coord, err := verification.New(verification.Dependencies{
		Queue:     q,
		Ledger:    led,
		Analyzer:  an,
		Fetcher:   fetch.New(cfg.Fetch),
		Directory: dir,
		Gateway:   gw,
		Settings:  communities,
		Reviews:   reviews,
		Notifier:  notifier,
	},
		verification.WithLogger(logger),
		verification.WithMetrics(m),
		verification.WithTimeouts(cfg.FetchTimeout(), cfg.AnalyzerTimeout()),
	)
	if err != nil {
		return fail(err)
	}

	d, err := daemon.New(cfg, logger, api.Dependencies{
		Coordinator: coord,
		Queue:       q,
		Ledger:      led,
		Communities: communities,
		Reviews:     reviews,
		Directory:   dir,
		Gatherer:    registry,
	}, notifier)
	if err != nil {
		return fail(fmt.Errorf("create daemon: %w", err))
	}
	rt.daemon = d
	return rt, nil
}

// newLogger writes to stdout and a per-run log file, and tees decision
// records into the daily audit file.
func newLogger(cfg *config.Config, opts Options) (*slog.Logger, func(), error) {
	now := time.Now().UTC()
	runID := now.Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("warden-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update warden.log link: %v\n", err)
	}

	closeLogs := func() {}
	audit, closeAudit, err := logging.OpenAuditHandler(cfg.AuditDir(), now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warn: audit log disabled: %v\n", err)
	} else {
		logger = logging.TeeLogger(logger, audit)
		closeLogs = func() { _ = closeAudit() }
	}
	logging.PruneAuditLogs(logger, cfg.AuditDir(), cfg.Logging.RetentionDays, now)
	return logger, closeLogs, nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "warden.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}
