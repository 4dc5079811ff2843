package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"warden/internal/api"
	"warden/internal/config"
	"warden/internal/deps"
	"warden/internal/logging"
	"warden/internal/notifications"
	"warden/internal/preflight"
	"warden/internal/verification"
)

// ErrAlreadyRunning is returned when another daemon holds the lock.
var ErrAlreadyRunning = errors.New("another warden daemon instance is already running")

// Daemon runs the verification worker and the HTTP API under a
// single-instance lock.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	coord    *verification.Coordinator
	notifier notifications.Service
	api      *apiServer

	lockPath string
	pidPath  string
	lock     *flock.Flock

	running   atomic.Bool
	mu        sync.RWMutex
	startedAt time.Time
	deps      []deps.Status
}

// New wires the daemon. The API handler is built here so the daemon can
// serve as its status provider; apiDeps.Status is overwritten.
func New(cfg *config.Config, logger *slog.Logger, apiDeps api.Dependencies, notifier notifications.Service) (*Daemon, error) {
	if cfg == nil || apiDeps.Coordinator == nil {
		return nil, errors.New("daemon requires config and coordinator")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if notifier == nil {
		notifier = notifications.NewNoop()
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		coord:    apiDeps.Coordinator,
		notifier: notifier,
		lockPath: cfg.LockPath(),
		pidPath:  cfg.PIDPath(),
		lock:     flock.New(cfg.LockPath()),
	}

	apiDeps.Status = d
	handler, err := api.NewHandler(apiDeps, api.Options{
		Token:       cfg.API.Token,
		CORSOrigins: cfg.API.CORSOrigins,
		Logger:      logger,
		MinIDDigits: cfg.Analyzer.MinDigits,
		MaxIDDigits: cfg.Analyzer.MaxDigits,
	})
	if err != nil {
		return nil, fmt.Errorf("build api handler: %w", err)
	}
	d.api = newAPIServer(cfg.API.Bind, handler, logger)
	return d, nil
}

// Run acquires the lock and blocks until ctx is cancelled or a component
// fails. The lock and pid file are released before it returns.
func (d *Daemon) Run(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	if err := writePIDFile(d.pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(d.pidPath)

	d.runPreflight(ctx)

	if err := d.api.listen(); err != nil {
		return err
	}

	d.mu.Lock()
	d.startedAt = time.Now().UTC()
	d.mu.Unlock()
	d.running.Store(true)
	defer d.running.Store(false)

	d.logger.Info("warden daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.addr()),
	)
	d.publish(ctx, notifications.EventDaemonStarted, notifications.Payload{"bind": d.api.addr()})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return d.coord.Run(groupCtx)
	})
	group.Go(func() error {
		return d.api.serve(groupCtx)
	})
	err = group.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	d.logger.Info("warden daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
	// ctx is already done on a normal shutdown.
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.publish(stopCtx, notifications.EventDaemonStopped, nil)
	return err
}

// Running reports whether Run is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Addr returns the API listen address once Run has bound it.
func (d *Daemon) Addr() string {
	return d.api.addr()
}

// Status implements api.StatusProvider. Queue, directory and membership
// fields are filled in by the API layer.
func (d *Daemon) Status(context.Context) api.Status {
	d.mu.RLock()
	startedAt := d.startedAt
	dependencies := make([]api.DependencyStatus, 0, len(d.deps))
	for _, dep := range d.deps {
		dependencies = append(dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      joinDetail(dep.Version, dep.Detail),
		})
	}
	d.mu.RUnlock()

	status := api.Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		DatabasePath:  d.cfg.DatabasePath(),
		LockFilePath:  d.lockPath,
		LedgerBackend: d.cfg.Ledger.Backend,
		GatewayMode:   d.cfg.Gateway.Mode,
		Dependencies:  dependencies,
	}
	if !startedAt.IsZero() {
		status.StartedAt = startedAt.Format(time.RFC3339)
	}
	return status
}

func (d *Daemon) runPreflight(ctx context.Context) {
	statuses := preflight.CheckSystemDeps(ctx, d.cfg)
	d.mu.Lock()
	d.deps = statuses
	d.mu.Unlock()

	for _, dep := range deps.Missing(statuses) {
		logging.WarnWithContext(d.logger, "required binary missing", "dependency_missing",
			logging.String("dependency", dep.Name),
			logging.String("command", dep.Command),
			logging.String(logging.FieldErrorHint, "install "+dep.Command+" or set analyzer.tesseract_binary"),
			logging.String(logging.FieldImpact, "submissions resolve as transient errors until it is installed"),
		)
	}
	for _, result := range preflight.Failed(preflight.RunAll(ctx, d.cfg)) {
		logging.WarnWithContext(d.logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "run 'warden status' for the full readiness report"),
			logging.String(logging.FieldImpact, "affected submissions resolve as configuration errors"),
		)
	}
}

func (d *Daemon) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := d.notifier.Publish(ctx, event, payload); err != nil {
		d.logger.Debug("daemon notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}

func joinDetail(version, detail string) string {
	switch {
	case version == "":
		return detail
	case detail == "":
		return version
	default:
		return version + "; " + detail
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the pid recorded by a running daemon.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(string(trimNewline(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", path, err)
	}
	return pid, nil
}

func trimNewline(data []byte) []byte {
	for len(data) > 0 && (data[len(data)-1] == '\n' || data[len(data)-1] == '\r') {
		data = data[:len(data)-1]
	}
	return data
}
