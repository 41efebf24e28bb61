package runner

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"ytqueue/internal/fileutil"
	"ytqueue/internal/formats"
	"ytqueue/internal/logging"
	"ytqueue/internal/queue"
	"ytqueue/internal/services"
	"ytqueue/internal/ytdlp"
)

// Notifier receives job snapshots as the run progresses.
type Notifier interface {
	Updated(ctx context.Context, job *queue.Job) error
}

// Runner executes one job once. It owns the only mutable copy of the job
// while the run is in progress; callers observe it through Job.
type Runner struct {
	workers *Workers
	req     ytdlp.Request
	logger  *slog.Logger
	sampler *logging.ProgressSampler

	cancelCh   chan struct{}
	cancelOnce sync.Once

	mu          sync.Mutex
	job         *queue.Job
	proc        ytdlp.Process
	tmpFilename string
	started     bool
	canceled    bool
	closed      bool
}

// New prepares a runner for job. req.HomeDir is the job's download directory.
func New(workers *Workers, job *queue.Job, req ytdlp.Request, logger *slog.Logger) *Runner {
	logger = logging.NewComponentLogger(logger, "runner").With(
		logging.String(logging.FieldJobID, job.ID),
		logging.String(logging.FieldURL, job.URL),
	)
	return &Runner{
		workers:  workers,
		req:      req,
		logger:   logger,
		sampler:  logging.NewProgressSampler(10),
		cancelCh: make(chan struct{}),
		job:      job.Clone(),
	}
}

// Job returns a snapshot of the job.
func (r *Runner) Job() *queue.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job.Clone()
}

// URL returns the job key.
func (r *Runner) URL() string {
	return r.req.URL
}

// Done is closed once the run is canceled or closed.
func (r *Runner) Done() <-chan struct{} {
	return r.cancelCh
}

// Started reports whether Start has been called.
func (r *Runner) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Canceled reports whether Cancel has been called.
func (r *Runner) Canceled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canceled
}

// TempFilename returns the partial download file last reported by the worker.
func (r *Runner) TempFilename() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tmpFilename
}

// Start launches the worker and applies its events until it exits or the run
// is canceled. The returned error is the worker failure, already recorded on
// the job; a canceled run returns nil.
func (r *Runner) Start(ctx context.Context, notifier Notifier) error {
	r.mu.Lock()
	if r.canceled || r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = true
	r.job.Status = queue.StatusPreparing
	snapshot := r.job.Clone()
	r.mu.Unlock()

	r.logger.Info("preparing download", logging.String("title", snapshot.Title))
	r.notify(ctx, notifier, snapshot)

	proc, err := r.workers.launch(ctx, r.req)
	if err != nil {
		r.logger.Error("worker launch failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "worker_launch_failed"),
			logging.String(logging.FieldErrorHint, "check that yt-dlp is installed and the download directory is writable"),
		)
		if snapshot, ok := r.finish(err); ok {
			r.notify(ctx, notifier, snapshot)
		}
		return err
	}

	r.mu.Lock()
	r.proc = proc
	if r.canceled {
		r.mu.Unlock()
		_ = proc.Kill()
		r.drain(proc)
		return nil
	}
	r.job.Status = queue.StatusRunning
	snapshot = r.job.Clone()
	r.mu.Unlock()
	r.logger.Debug("worker running", logging.Int("pid", proc.PID()))
	r.notify(ctx, notifier, snapshot)

	events := proc.Events()
loop:
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				break loop
			}
			snapshot, notify := r.apply(evt)
			if notify {
				r.notify(ctx, notifier, snapshot)
			}
		case <-r.cancelCh:
			break loop
		}
	}

	waitErr := r.drain(proc)
	snapshot, notify := r.finish(waitErr)
	if notify {
		r.notify(ctx, notifier, snapshot)
	}
	if r.Canceled() {
		return nil
	}
	return waitErr
}

// drain discards remaining events so the worker can exit, then waits for it.
func (r *Runner) drain(proc ytdlp.Process) error {
	for range proc.Events() {
	}
	err := proc.Wait()
	r.workers.release(proc)
	return err
}

// finish records the terminal state. It reports whether observers should be
// told, which is never the case after cancellation.
func (r *Runner) finish(err error) (*queue.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.canceled:
		r.job.Status = queue.StatusCanceled
		r.logger.Info("download canceled")
		return nil, false
	case err != nil:
		r.job.Status = queue.StatusError
		r.job.Message = failureMessage(err)
		r.logger.Warn("download failed",
			logging.String("reason", r.job.Message),
			logging.String(logging.FieldEventType, "download_failed"),
			logging.String(logging.FieldErrorHint, "inspect the job message or rerun yt-dlp manually"),
			logging.String(logging.FieldImpact, "job moved to history with error status"),
		)
	default:
		r.job.Status = queue.StatusFinished
		r.logger.Info("download finished", logging.String("filename", r.job.Filename))
	}
	return r.job.Clone(), true
}

func failureMessage(err error) string {
	var exitErr *ytdlp.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Message
	}
	return services.Message(err)
}

// apply folds one worker event into the job and reports whether observers
// should see the result.
func (r *Runner) apply(evt ytdlp.Event) (*queue.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.canceled {
		return nil, false
	}

	switch e := evt.(type) {
	case ytdlp.ProgressEvent:
		if e.TmpFilename != "" {
			r.tmpFilename = e.TmpFilename
		}
		if e.Filename != "" {
			r.setFilename(e.Filename)
		}
		r.job.Phase = e.Status
		if e.DownloadedBytes != nil {
			total := e.TotalBytes
			if total == nil || *total <= 0 {
				total = e.TotalBytesEstimate
			}
			if total != nil && *total > 0 {
				percent := *e.DownloadedBytes / *total * 100
				r.job.Percent = &percent
			}
		}
		r.job.Speed = e.Speed
		r.job.ETA = nil
		if e.ETA != nil {
			eta := int64(*e.ETA)
			r.job.ETA = &eta
		}
		r.logProgress()
		return r.job.Clone(), true
	case ytdlp.FileEvent:
		r.setFilename(e.Path)
		return r.job.Clone(), true
	case ytdlp.ChapterFileEvent:
		r.job.ChapterFiles = appendUnique(r.job.ChapterFiles, r.outputFile(e.Path))
		r.logger.Debug("captured chapter file", logging.String("path", e.Path))
		return nil, false
	case ytdlp.SubtitleFileEvent:
		path := e.Path
		if strings.EqualFold(r.job.SubtitleFormat, "txt") {
			converted, err := convertToText(r.resolve(path))
			if err != nil {
				logging.WarnWithContext(r.logger, "subtitle text conversion failed", "subtitle_convert_failed",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldImpact, "the timed subtitle file is kept instead"),
				)
			} else {
				path = converted
			}
		}
		r.job.SubtitleFiles = appendUnique(r.job.SubtitleFiles, r.outputFile(path))
		r.logger.Debug("captured subtitle file", logging.String("path", path), logging.String("language", e.Language))
		return nil, false
	default:
		return nil, false
	}
}

func (r *Runner) logProgress() {
	percent := -1.0
	if r.job.Percent != nil {
		percent = *r.job.Percent
	}
	if !r.sampler.ShouldLog(percent, r.job.Phase) {
		return
	}
	attrs := []logging.Attr{logging.String("phase", r.job.Phase)}
	if percent >= 0 {
		attrs = append(attrs, logging.Float64("percent", percent))
	}
	r.logger.Info("download progress", logging.Args(attrs...)...)
}

// setFilename records the main output relative to the download directory.
// Thumbnail jobs report the probe file name; the artifact on disk is a jpg.
func (r *Runner) setFilename(path string) {
	path = r.resolve(path)
	if r.job.Format == formats.FormatThumbnail && strings.HasSuffix(path, ".webm") {
		path = strings.TrimSuffix(path, ".webm") + ".jpg"
	}
	r.job.Filename = fileutil.RelativeTo(r.req.HomeDir, path)
	r.job.Size = fileutil.SizeOf(path)
}

func (r *Runner) outputFile(path string) queue.OutputFile {
	path = r.resolve(path)
	return queue.OutputFile{
		Filename: fileutil.RelativeTo(r.req.HomeDir, path),
		Size:     fileutil.SizeOf(path),
	}
}

// resolve maps paths reported inside the temp directory onto the download
// directory, where yt-dlp moves finished files.
func (r *Runner) resolve(path string) string {
	if r.req.TempDir == "" || !filepath.IsAbs(path) {
		return path
	}
	if rel, err := filepath.Rel(r.req.TempDir, path); err == nil && fileutil.Within(r.req.TempDir, filepath.Clean(path)) && rel != "." {
		return filepath.Join(r.req.HomeDir, rel)
	}
	return path
}

func appendUnique(files []queue.OutputFile, file queue.OutputFile) []queue.OutputFile {
	for _, existing := range files {
		if existing.Filename == file.Filename {
			return files
		}
	}
	return append(files, file)
}

// convertToText rewrites an srt file as plain text next to it and removes the
// original.
func convertToText(path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".srt") {
		return path, nil
	}
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	text, err := formats.SRTToText(in)
	in.Close()
	if err != nil {
		return "", err
	}
	target := strings.TrimSuffix(path, filepath.Ext(path)) + ".txt"
	if err := os.WriteFile(target, []byte(text), 0o644); err != nil {
		return "", err
	}
	_ = os.Remove(path)
	return target, nil
}

// Cancel kills the worker, if any, and marks the job canceled. It reports
// whether Start had already been called. Cancel is sticky and idempotent.
func (r *Runner) Cancel() bool {
	r.mu.Lock()
	r.canceled = true
	r.job.Status = queue.StatusCanceled
	started := r.started
	proc := r.proc
	r.mu.Unlock()

	if proc != nil {
		if err := proc.Kill(); err != nil {
			r.logger.Warn("failed to kill worker",
				logging.Error(err),
				logging.String(logging.FieldEventType, "worker_kill_failed"),
				logging.String(logging.FieldErrorHint, "kill the yt-dlp process manually"),
				logging.String(logging.FieldImpact, "download may continue in the background"),
			)
		}
	}
	r.cancelOnce.Do(func() { close(r.cancelCh) })
	r.logger.Info("cancel requested", logging.Bool("started", started))
	return started
}

// Close releases the worker handle. It is safe to call more than once.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	proc := r.proc
	r.mu.Unlock()

	if proc != nil {
		_ = proc.Kill()
		r.workers.release(proc)
	}
	r.cancelOnce.Do(func() { close(r.cancelCh) })
}

func (r *Runner) notify(ctx context.Context, notifier Notifier, job *queue.Job) {
	if notifier == nil || job == nil {
		return
	}
	if err := notifier.Updated(ctx, job); err != nil {
		r.logger.Debug("update notification failed", logging.Error(err))
	}
}
