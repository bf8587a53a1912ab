package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"soundcheck/internal/config"
	"soundcheck/internal/deps"
	"soundcheck/internal/gateway"
	"soundcheck/internal/logging"
	"soundcheck/internal/refcache"
)

// Daemon serves a gateway and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	gateway *gateway.Gateway
	logger  *slog.Logger

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	api       *apiServer
	cancel    context.CancelFunc
	startedAt time.Time
	running   atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	LockFilePath string         `json:"lock_path"`
	SocketPath   string         `json:"socket_path"`
	APIAddress   string         `json:"api_address,omitempty"`
	Strategies   []string       `json:"strategies"`
	Cache        refcache.Stats `json:"cache"`
	Dependencies []deps.Status  `json:"dependencies"`
	Tasks        []string       `json:"tasks"`
}

// New constructs a daemon around gw.
func New(cfg *config.Config, gw *gateway.Gateway, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || gw == nil {
		return nil, errors.New("daemon requires config and gateway")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		gateway:  gw,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Gateway returns the served gateway.
func (d *Daemon) Gateway() *gateway.Gateway { return d.gateway }

// Start acquires the daemon lock and starts the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(d.cfg.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another soundcheck daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	api := newAPIServer(d.cfg, d, d.logger)
	if err := api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.api = api
	d.cancel = cancel
	d.startedAt = time.Now().UTC()
	d.running.Store(true)
	d.logger.Info("soundcheck daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", api.address()),
	)
	return nil
}

// Stop shuts the HTTP API down and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.api = nil
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
			logging.String(logging.FieldImpact, "next start may report another instance"),
		)
	}
	d.running.Store(false)
	d.logger.Info("soundcheck daemon stopped")
}

// Close stops the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.Paths.SocketPath,
	}
	if status.Running {
		started := d.startedAt
		status.StartedAt = &started
		status.APIAddress = d.api.address()
	}
	d.mu.Unlock()

	status.Strategies = d.gateway.Strategies()
	status.Cache = d.gateway.CacheStats()
	status.Dependencies = deps.CheckBinaries(deps.DecoderRequirements(d.cfg))
	status.Tasks = gateway.Tasks()
	return status
}
