package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/maverikod/mcp-dochub-server/internal/api"
	"github.com/maverikod/mcp-dochub-server/internal/config"
	"github.com/maverikod/mcp-dochub-server/internal/executor"
	"github.com/maverikod/mcp-dochub-server/internal/logging"
	"github.com/maverikod/mcp-dochub-server/internal/queue"
	"github.com/maverikod/mcp-dochub-server/internal/workflow"
)

// Daemon coordinates the workflow manager and API server and enforces
// single-instance execution via a lock file.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	manager  *workflow.Manager
	registry *executor.Registry

	lockPath string
	lock     *flock.Flock

	apiServer *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, manager *workflow.Manager, registry *executor.Registry, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || manager == nil || registry == nil {
		return nil, errors.New("daemon requires config, store, manager, and registry")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "dochubd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:    store,
		manager:  manager,
		registry: registry,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.apiServer = newAPIServer(cfg, d)
	return d, nil
}

// Start acquires the daemon lock, launches the workflow manager, and begins
// serving the API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another dochub daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.manager.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start workflow: %w", err)
	}

	if err := d.apiServer.start(runCtx); err != nil {
		d.manager.Stop()
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return err
	}

	d.running.Store(true)
	d.logger.Info("dochub daemon started",
		logging.String("lock", d.lockPath),
		logging.String("db", d.store.Path()),
	)
	return nil
}

// Stop halts the API server and workflow manager and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.apiServer.stop()
	d.manager.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("dochub daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Status summarizes daemon runtime state for the API.
func (d *Daemon) Status(ctx context.Context) (api.DaemonStatus, error) {
	summary, err := d.manager.Summary(ctx)
	if err != nil {
		return api.DaemonStatus{}, err
	}
	return api.DaemonStatus{
		Running:     d.running.Load(),
		PID:         os.Getpid(),
		QueueDBPath: d.store.Path(),
		LockPath:    d.lockPath,
		Kinds:       d.registry.Kinds(),
		LastError:   summary.LastError,
		Stats:       api.FromSummary(summary),
	}, nil
}
