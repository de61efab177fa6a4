package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"authindex/internal/config"
	"authindex/internal/logging"
	"authindex/internal/service"
	"authindex/internal/updater"
)

// Daemon serves the HTTP API and schedules syncs.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	svc    *service.Service
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	LockFilePath string
	IndexPath    string
	StatePath    string
	Syncs        []updater.Status
}

// New constructs a daemon over an open service.
func New(cfg *config.Config, svc *service.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || svc == nil {
		return nil, errors.New("daemon requires config and service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.DaemonLockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		svc:      svc,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, clears stale sync flags, and starts the
// scheduler and API server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(d.cfg.LockDir(), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another authindex daemon instance is already running")
	}

	if cleared, err := d.svc.ResetStale(ctx); err != nil {
		d.logger.Warn("failed to reset stale sync flags", logging.Error(err))
	} else if cleared > 0 {
		d.logger.Info("cleared stale sync flags", logging.Int64("count", cleared))
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.startScheduler(runCtx)

	d.running.Store(true)
	d.logger.Info("authindex daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

// Stop stops the scheduler and API server and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.api.stop()
	d.svc.Synchronizer().Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("authindex daemon stopped")
}

// Close stops the daemon and closes the service.
func (d *Daemon) Close() error {
	d.Stop()
	return d.svc.Close()
}

// Address returns the API listen address once started.
func (d *Daemon) Address() string {
	return d.api.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		IndexPath:    d.cfg.IndexPath(),
		StatePath:    d.cfg.StatePath(),
	}
	for _, indexType := range []string{config.IndexTypeAuthority, config.IndexTypeBibliographic} {
		s, err := d.svc.SyncStatus(ctx, indexType)
		if err != nil {
			d.logger.Warn("sync status unavailable", logging.String(logging.FieldIndexType, indexType), logging.Error(err))
			continue
		}
		status.Syncs = append(status.Syncs, s)
	}
	return status
}
