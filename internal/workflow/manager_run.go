package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"ytqueue/internal/logging"
	"ytqueue/internal/notifications"
	"ytqueue/internal/queue"
	"ytqueue/internal/runner"
	"ytqueue/internal/services"
	"ytqueue/internal/ytdlp"
)

// Start re-admits jobs persisted by a previous run: active jobs are started
// again and pending jobs are parked. The done table is already loaded.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	m.running = true
	m.mu.Unlock()

	m.logger.Info("queue engine starting",
		logging.Int("active", m.stores.Queue.Len()),
		logging.Int("pending", m.stores.Pending.Len()),
		logging.Int("done", m.stores.Done.Len()),
	)
	if err := m.reimport(ctx, m.stores.Queue, true); err != nil {
		return err
	}
	return m.reimport(ctx, m.stores.Pending, false)
}

func (m *Manager) reimport(ctx context.Context, store *queue.Store, autoStart bool) error {
	jobs, err := store.SavedItems(ctx)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		m.tables.Lock()
		err := m.addDownload(ctx, job, autoStart)
		m.tables.Unlock()
		if err != nil {
			logging.WarnWithContext(m.logger, "could not resume job", "job_resume_failed",
				logging.String(logging.FieldURL, job.URL),
				logging.String("store", store.Name()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the download folder configuration, then cancel or restart the job"),
				logging.String(logging.FieldImpact, "job stays queued but will not run"),
			)
		}
	}
	return nil
}

// Stop kills every worker and waits for the run goroutines to exit. Jobs
// interrupted this way stay in the active table and resume on the next Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return
	}
	m.stopping = true
	cancel := m.cancel
	m.mu.Unlock()

	cancel()
	m.workers.Close()
	m.wg.Wait()

	m.mu.Lock()
	m.running = false
	m.runners = make(map[string]*runner.Runner)
	m.mu.Unlock()
	m.logger.Info("queue engine stopped")
}

// launch registers a runner for job and starts it in the background.
func (m *Manager) launch(job *queue.Job, req ytdlp.Request) {
	r := runner.New(m.workers, job, req, m.logger)
	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return
	}
	m.runners[job.URL] = r
	ctx := m.runCtx
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(ctx, r)
}

func (m *Manager) run(ctx context.Context, r *runner.Runner) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String(logging.FieldURL, r.URL()))
	if r.Canceled() {
		logger.Info("download canceled, skipping start")
		return
	}

	if err := m.gate.acquire(ctx, r.Done()); err != nil {
		logger.Debug("download not started", logging.Error(err))
		return
	}
	if r.Canceled() {
		m.gate.release()
		logger.Info("download canceled, skipping start")
		return
	}

	ctx = services.WithJobID(ctx, r.Job().ID)
	err := r.Start(ctx, m.notifier)
	// The slot belongs to the worker; settling the tables and notifying
	// observers happens outside it.
	m.gate.release()
	if err != nil {
		logger.Debug("download ended with error", logging.Error(err))
	}
	if !r.Started() {
		return
	}
	m.finish(context.WithoutCancel(ctx), r)
}

// finish settles a run: partial files are removed, the runner is closed and
// the job leaves the active table for done, or disappears when canceled.
func (m *Manager) finish(ctx context.Context, r *runner.Runner) {
	job := r.Job()
	url := job.URL
	logger := m.logger.With(logging.String(logging.FieldURL, url))
	canceled := r.Canceled()

	if job.Status != queue.StatusFinished {
		if tmp := r.TempFilename(); tmp != "" {
			if info, err := os.Stat(tmp); err == nil && info.Mode().IsRegular() {
				if err := os.Remove(tmp); err != nil {
					logger.Debug("partial file cleanup failed", logging.String("path", tmp), logging.Error(err))
				}
			}
		}
		if !canceled {
			job.Status = queue.StatusError
		}
	}
	r.Close()

	m.mu.Lock()
	if m.runners[url] == r {
		delete(m.runners, url)
	}
	stopping := m.stopping
	m.mu.Unlock()

	if stopping && !canceled && job.Status != queue.StatusFinished {
		logger.Info("download interrupted by shutdown; will resume on next start")
		return
	}
	if !m.settle(ctx, job, canceled, logger) {
		return
	}
	if canceled {
		m.notify(ctx, notifications.EventCanceled, func(ctx context.Context) error { return m.notifier.Canceled(ctx, url) })
		return
	}
	m.notify(ctx, notifications.EventCompleted, func(ctx context.Context) error { return m.notifier.Completed(ctx, job) })
}

// settle moves a finished run out of the active table and reports whether
// observers should hear about it. A job no longer in the active table was
// already settled by Cancel.
func (m *Manager) settle(ctx context.Context, job *queue.Job, canceled bool, logger *slog.Logger) bool {
	m.tables.Lock()
	defer m.tables.Unlock()

	if !m.stores.Queue.Exists(job.URL) {
		return false
	}
	if err := m.stores.Queue.Delete(ctx, job.URL); err != nil {
		logging.WarnWithContext(logger, "failed to remove job from active table", "queue_delete_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory"),
			logging.String(logging.FieldImpact, "job may be downloaded again on restart"),
		)
	}
	if canceled {
		return true
	}
	if err := m.stores.Done.Put(ctx, job); err != nil {
		logging.WarnWithContext(logger, "failed to record finished job", "queue_put_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the state directory"),
			logging.String(logging.FieldImpact, "job is missing from history"),
		)
	}
	return true
}
