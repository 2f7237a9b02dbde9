package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"crawlqueue/internal/config"
	"crawlqueue/internal/liveness"
	"crawlqueue/internal/logging"
	"crawlqueue/internal/metrics"
	"crawlqueue/internal/queue"
)

// Daemon coordinates the reaper loop and HTTP endpoints and enforces
// single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *queue.Store
	reaper *liveness.Reaper
	http   *httpServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool         `json:"running"`
	Driver       string       `json:"driver"`
	QueueDBPath  string       `json:"queue_db_path,omitempty"`
	LockFilePath string       `json:"lock_file_path"`
	MetricsAddr  string       `json:"metrics_addr,omitempty"`
	Counts       queue.Counts `json:"counts"`
	Error        string       `json:"error,omitempty"`
}

// New constructs a daemon with initialized dependencies. source may be nil, in
// which case no liveness sweeps run.
func New(cfg *config.Config, store *queue.Store, source liveness.ExpiredSource, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil {
		return nil, errors.New("daemon requires config and store")
	}
	logger = logging.NewComponentLogger(logger, "daemon")

	lockPath := filepath.Join(cfg.Paths.DataDir, "crawlqueue-serve.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	if source != nil {
		d.reaper = liveness.NewReaper(source, store, logger)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		metrics.NewCollector(store, logger),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.http = newHTTPServer(cfg.Server.MetricsBind, d, registry, logger)
	return d, nil
}

// Start acquires the lock, starts the HTTP listener, and launches the reaper.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another crawlqueue serve instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.http.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	if d.reaper != nil {
		interval := d.cfg.ReaperInterval()
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := d.reaper.Run(runCtx, interval); err != nil {
				d.logger.Error("reaper stopped", logging.Error(err))
			}
		}()
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("crawlqueue daemon started",
		slog.String("lock", d.lockPath),
		slog.String("metrics", d.http.address()),
		slog.Bool("reaper", d.reaper != nil),
	)
	return nil
}

// Stop stops background processing and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.http.stop()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(err),
			slog.String(logging.FieldErrorHint, "remove "+d.lockPath+" before the next start"),
		)
	}
	d.running.Store(false)
	d.logger.Info("crawlqueue daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status reports runtime state and current queue counts.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		Driver:       d.store.Driver(),
		LockFilePath: d.lockPath,
		MetricsAddr:  d.http.address(),
	}
	if d.store.Driver() == queue.DriverSQLite {
		status.QueueDBPath = d.cfg.StorePath()
	}
	counts, err := d.store.Counts(ctx)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Counts = counts
	return status
}

// Sweep runs one liveness sweep outside the ticker.
func (d *Daemon) Sweep(ctx context.Context) (liveness.Result, error) {
	if d.reaper == nil {
		return liveness.Result{}, errors.New("liveness sweeps are disabled")
	}
	return d.reaper.Sweep(ctx)
}
