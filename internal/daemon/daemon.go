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

	"ytqueue/internal/api"
	"ytqueue/internal/config"
	"ytqueue/internal/deps"
	"ytqueue/internal/logging"
	"ytqueue/internal/notifications"
	"ytqueue/internal/queue"
	"ytqueue/internal/workflow"
)

// LockFileName and LogFileName live under the configured log directory.
const (
	LockFileName = "ytqueue.lock"
	LogFileName  = "ytqueue.log"
)

// VersionSource reports the installed yt-dlp version.
type VersionSource interface {
	Version(ctx context.Context) (string, error)
}

// Options wires the daemon to the components built during bootstrap.
type Options struct {
	Config    *config.Config
	Stores    *queue.Set
	Workflow  *workflow.Manager
	Events    *notifications.EventHub
	LogStream *logging.StreamHub
	YTDLP     VersionSource
	Logger    *slog.Logger
	SessionID string
	Version   string
}

// Daemon coordinates the queue engine and the HTTP API, and enforces
// single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	stores    *queue.Set
	workflow  *workflow.Manager
	queueSvc  *api.QueueService
	events    *notifications.EventHub
	logStream *logging.StreamHub
	ytdlp     VersionSource
	sessionID string
	version   string
	logPath   string
	api       *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	SessionID    string
	Workflow     workflow.StatusSummary
	StateDir     string
	LockFilePath string
	LogPath      string
	APIAddress   string
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil || opts.Stores == nil || opts.Workflow == nil {
		return nil, errors.New("daemon requires config, stores, and workflow manager")
	}
	base := opts.Logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := logging.NewComponentLogger(base, "daemon")

	lockPath := filepath.Join(opts.Config.Paths.LogDir, LockFileName)
	d := &Daemon{
		cfg:       opts.Config,
		logger:    logger,
		stores:    opts.Stores,
		workflow:  opts.Workflow,
		queueSvc:  api.NewQueueService(opts.Config, opts.Workflow),
		events:    opts.Events,
		logStream: opts.LogStream,
		ytdlp:     opts.YTDLP,
		sessionID: opts.SessionID,
		version:   opts.Version,
		logPath:   filepath.Join(opts.Config.Paths.LogDir, LogFileName),
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(opts.Config, d, logging.NewComponentLogger(base, "api-server"))
	return d, nil
}

// Start acquires the daemon lock, resumes the queue engine and opens the API
// listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ytqueue daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.workflow.Stop()
		d.abortStart()
		return err
	}

	d.running.Store(true)
	d.logger.Info("ytqueue daemon started",
		logging.String("lock", d.lockPath),
		logging.String("api", d.api.address()),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

// Stop shuts the API down, stops the queue engine and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("ytqueue daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.stores != nil {
		return d.stores.Close()
	}
	return nil
}

// Queue returns the validating front of the queue engine.
func (d *Daemon) Queue() *api.QueueService {
	return d.queueSvc
}

// Events returns the job event hub, or nil when events are not retained.
func (d *Daemon) Events() *notifications.EventHub {
	return d.events
}

// LogStream returns the in-memory log hub.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.logStream
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Version reports the application and yt-dlp versions.
func (d *Daemon) Version(ctx context.Context) (api.VersionResponse, error) {
	resp := api.VersionResponse{Version: d.version}
	if d.ytdlp == nil {
		return resp, errors.New("yt-dlp client unavailable")
	}
	v, err := d.ytdlp.Version(ctx)
	if err != nil {
		return resp, err
	}
	resp.YTDLP = v
	return resp, nil
}

// DatabaseHealth returns diagnostics for every job table.
func (d *Daemon) DatabaseHealth(ctx context.Context) ([]queue.DatabaseHealth, error) {
	return d.stores.CheckHealth(ctx)
}

// Status returns the current daemon status.
func (d *Daemon) Status(_ context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		SessionID:    d.sessionID,
		Workflow:     d.workflow.Status(),
		StateDir:     d.cfg.Paths.StateDir,
		LockFilePath: d.lockPath,
		LogPath:      d.logPath,
		APIAddress:   d.api.address(),
		Dependencies: deps.Check(d.cfg),
	}
}

// APIStatus converts s into its wire form.
func (s Status) APIStatus() api.DaemonStatus {
	return api.DaemonStatus{
		Running:      s.Running,
		PID:          s.PID,
		SessionID:    s.SessionID,
		LockFilePath: s.LockFilePath,
		StateDir:     s.StateDir,
		LogPath:      s.LogPath,
		APIAddress:   s.APIAddress,
		Workflow:     api.FromStatusSummary(s.Workflow),
		Dependencies: api.FromDependencies(s.Dependencies),
	}
}
