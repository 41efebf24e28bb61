package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"

	"ytqueue/internal/logging"
	"ytqueue/internal/services"
)

const eventBuffer = 64

// Worker is a yt-dlp process running in its own process group.
type Worker struct {
	cmd    *exec.Cmd
	events chan Event
	done   chan struct{}
	stop   chan struct{}
	logger *slog.Logger

	stopOnce sync.Once

	mu        sync.Mutex
	lastError string
	err       error
}

func startWorker(ctx context.Context, binary string, args []string, logger *slog.Logger) (*Worker, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	w := &Worker{
		cmd:    cmd,
		events: make(chan Event, eventBuffer),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
		logger: logger,
	}
	cmd.Cancel = w.Kill

	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrDownload, "ytdlp", "start worker", "", err)
	}
	logger.Debug("worker started", logging.Int("pid", cmd.Process.Pid))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		w.scan(stdout, w.handleStdout)
	}()
	go func() {
		defer wg.Done()
		w.scan(stderr, w.handleStderr)
	}()
	go func() {
		wg.Wait()
		waitErr := cmd.Wait()
		w.finish(waitErr)
	}()
	return w, nil
}

func (w *Worker) scan(r io.Reader, forward func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		forward(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		w.logger.Debug("worker output scan failed", logging.Error(err))
		// Keep draining so the process never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)
	}
}

func (w *Worker) handleStdout(line string) {
	events := ParseLine(line)
	if events == nil {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			w.logger.Debug("yt-dlp output", logging.String("line", trimmed))
		}
		return
	}
	for _, evt := range events {
		select {
		case w.events <- evt:
		case <-w.stop:
			return
		}
	}
}

func (w *Worker) handleStderr(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if msg, ok := strings.CutPrefix(trimmed, "ERROR:"); ok {
		w.mu.Lock()
		w.lastError = strings.TrimSpace(msg)
		w.mu.Unlock()
	}
	w.logger.Debug("yt-dlp stderr", logging.String("line", trimmed))
}

// ExitError reports a worker that exited unsuccessfully. Message is the last
// ERROR line yt-dlp printed, or a generic description of the exit.
type ExitError struct {
	Message  string
	ExitCode int
}

func (e *ExitError) Error() string {
	return e.Message
}

// Is classifies worker failures as download errors.
func (e *ExitError) Is(target error) bool {
	return target == services.ErrDownload
}

func (w *Worker) finish(waitErr error) {
	w.mu.Lock()
	if waitErr != nil {
		exit := &ExitError{Message: w.lastError, ExitCode: -1}
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exit.ExitCode = exitErr.ExitCode()
		}
		if exit.Message == "" {
			if exit.ExitCode >= 0 {
				exit.Message = fmt.Sprintf("yt-dlp exited with status %d", exit.ExitCode)
			} else {
				exit.Message = waitErr.Error()
			}
		}
		w.err = exit
	}
	w.mu.Unlock()
	close(w.events)
	close(w.done)
}

// Events implements Process.
func (w *Worker) Events() <-chan Event {
	return w.events
}

// Wait implements Process.
func (w *Worker) Wait() error {
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Kill implements Process. It signals the worker's process group so helpers
// such as ffmpeg die with it.
func (w *Worker) Kill() error {
	w.stopOnce.Do(func() { close(w.stop) })
	if w.cmd.Process == nil {
		return nil
	}
	select {
	case <-w.done:
		return nil
	default:
	}
	pid := w.cmd.Process.Pid
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill worker %d: %w", pid, err)
	}
	return nil
}

// PID implements Process.
func (w *Worker) PID() int {
	if w.cmd.Process == nil {
		return 0
	}
	return w.cmd.Process.Pid
}
