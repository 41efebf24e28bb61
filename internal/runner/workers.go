package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"ytqueue/internal/logging"
	"ytqueue/internal/ytdlp"
)

// ErrWorkersClosed is returned when a launch is attempted after shutdown.
var ErrWorkersClosed = errors.New("worker pool closed")

// Launcher starts worker processes.
type Launcher interface {
	Launch(ctx context.Context, req ytdlp.Request) (ytdlp.Process, error)
}

// Workers is the shared handle to worker processes. The daemon creates one
// and hands it to every Runner so shutdown can reach every live process.
type Workers struct {
	launcher Launcher
	logger   *slog.Logger

	mu     sync.Mutex
	live   map[ytdlp.Process]struct{}
	closed bool
}

// NewWorkers wraps launcher.
func NewWorkers(launcher Launcher, logger *slog.Logger) *Workers {
	return &Workers{
		launcher: launcher,
		logger:   logging.NewComponentLogger(logger, "workers"),
		live:     make(map[ytdlp.Process]struct{}),
	}
}

func (w *Workers) launch(ctx context.Context, req ytdlp.Request) (ytdlp.Process, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrWorkersClosed
	}
	proc, err := w.launcher.Launch(ctx, req)
	if err != nil {
		return nil, err
	}
	w.live[proc] = struct{}{}
	return proc, nil
}

func (w *Workers) release(proc ytdlp.Process) {
	w.mu.Lock()
	delete(w.live, proc)
	w.mu.Unlock()
}

// Live returns the number of running worker processes.
func (w *Workers) Live() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.live)
}

// Close refuses further launches and kills every live worker.
func (w *Workers) Close() {
	w.mu.Lock()
	w.closed = true
	procs := make([]ytdlp.Process, 0, len(w.live))
	for proc := range w.live {
		procs = append(procs, proc)
	}
	w.mu.Unlock()

	for _, proc := range procs {
		if err := proc.Kill(); err != nil {
			w.logger.Warn("failed to kill worker",
				logging.Int("pid", proc.PID()),
				logging.Error(err),
				logging.String(logging.FieldEventType, "worker_kill_failed"),
				logging.String(logging.FieldErrorHint, "kill the yt-dlp process manually"),
				logging.String(logging.FieldImpact, "a download may keep running after shutdown"),
			)
		}
	}
	if len(procs) > 0 {
		w.logger.Info("killed live workers", logging.Int("count", len(procs)))
	}
}
