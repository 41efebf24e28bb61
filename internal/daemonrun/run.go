package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"ytqueue/internal/config"
	"ytqueue/internal/daemon"
	"ytqueue/internal/deps"
	"ytqueue/internal/ipc"
	"ytqueue/internal/logging"
	"ytqueue/internal/notifications"
	"ytqueue/internal/preflight"
	"ytqueue/internal/queue"
	"ytqueue/internal/runner"
	"ytqueue/internal/workflow"
	"ytqueue/internal/ytdlp"
)

// PIDFileName is written under the log directory while the daemon runs.
const PIDFileName = "ytqueue.pid"

const (
	logHubCapacity   = 4096
	eventHubCapacity = 1024
	keepRunLogs      = 10
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	Version     string
}

// Run starts the ytqueue daemon and blocks until it receives SIGINT/SIGTERM,
// cmdCtx ends, or a client requests shutdown.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, stopSignals := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	runCtx, shutdown := context.WithCancel(signalCtx)
	defer shutdown()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("ytqueue-%s.log", runID))
	logHub := logging.NewStreamHub(logHubCapacity)
	sessionID := uuid.NewString()

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
		Stream:           logHub,
		SessionID:        sessionID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", daemon.LogFileName, err)
	}
	pruneRunLogs(logger, cfg.Paths.LogDir, logPath)
	logDependencySnapshot(runCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, PIDFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	stores, err := queue.OpenSet(runCtx, cfg, logger)
	if err != nil {
		logger.Error("open job tables", logging.Error(err))
		return err
	}

	client, err := ytdlp.New(cfg, logger, ytdlp.WithExtraArgs(cfg.YTDLPArgs))
	if err != nil {
		_ = stores.Close()
		return fmt.Errorf("init yt-dlp client: %w", err)
	}

	events := notifications.NewEventHub(eventHubCapacity)
	notifiers := []notifications.Notifier{events}
	if ntfy := notifications.NewNtfy(cfg); ntfy != nil {
		notifiers = append(notifiers, ntfy)
	}
	workers := runner.NewWorkers(client, logger)
	manager, err := workflow.NewManager(cfg, stores, client, workers, notifications.NewMulti(notifiers...), logger)
	if err != nil {
		_ = stores.Close()
		return fmt.Errorf("create queue engine: %w", err)
	}

	d, err := daemon.New(daemon.Options{
		Config:    cfg,
		Stores:    stores,
		Workflow:  manager,
		Events:    events,
		LogStream: logHub,
		YTDLP:     client,
		Logger:    logger,
		SessionID: sessionID,
		Version:   opts.Version,
	})
	if err != nil {
		_ = stores.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(runCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for another running daemon and the job database permissions"),
			logging.String(logging.FieldImpact, "no downloads will run"),
		)
		return err
	}

	socketPath := filepath.Join(cfg.Paths.LogDir, ipc.SocketName)
	ipcServer, err := ipc.NewServer(runCtx, socketPath, d, shutdown, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-runCtx.Done()
	logger.Info("ytqueue daemon shutting down")
	return nil
}

// ensureCurrentLogPointer points ytqueue.log at the current run's log file.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, daemon.LogFileName)
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

// pruneRunLogs keeps the most recent run logs and deletes the rest.
func pruneRunLogs(logger *slog.Logger, logDir, current string) {
	matches, err := filepath.Glob(filepath.Join(logDir, "ytqueue-*.log"))
	if err != nil || len(matches) <= keepRunLogs {
		return
	}
	// Run ids sort chronologically.
	slices.Sort(matches)
	for _, path := range matches[:len(matches)-keepRunLogs] {
		if path == current {
			continue
		}
		if err := os.Remove(path); err != nil {
			logger.Debug("failed to prune run log", logging.String("path", path), logging.Error(err))
		}
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	statuses := deps.Check(cfg)
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range statuses {
		key := strings.ToLower(strings.ReplaceAll(status.Name, "-", ""))
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)

	if missing := deps.MissingRequired(statuses); len(missing) > 0 {
		logging.WarnWithContext(logger, "required binaries missing", "dependency_missing",
			logging.Strings("missing", missing),
			logging.String(logging.FieldErrorHint, "install yt-dlp and ffmpeg or set ytdlp.binary"),
			logging.String(logging.FieldImpact, "downloads will fail until the binaries are available"),
		)
	}
	for _, result := range preflight.Failed(preflight.RunAll(ctx, cfg)) {
		logging.WarnWithContext(logger, "environment check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "affected downloads or notifications may fail"),
		)
	}
}
