package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"ytqueue/internal/logging"
	"ytqueue/internal/notifications"
	"ytqueue/internal/queue"
)

// Cancel removes pending jobs and stops active ones. A job whose worker has
// started is killed and reported by its run once the worker exits; any other
// job is removed and reported immediately. Unknown ids are ignored.
func (m *Manager) Cancel(ctx context.Context, ids []string) error {
	m.tables.Lock()
	defer m.tables.Unlock()

	var errs []error
	for _, id := range ids {
		if m.stores.Pending.Exists(id) {
			if err := m.stores.Pending.Delete(ctx, id); err != nil {
				errs = append(errs, err)
				continue
			}
			m.notifyCanceled(ctx, id)
			continue
		}
		if !m.stores.Queue.Exists(id) {
			m.logger.Warn("requested cancel for unknown download", logging.String(logging.FieldURL, id))
			continue
		}

		m.mu.Lock()
		r := m.runners[id]
		m.mu.Unlock()
		if r != nil && r.Cancel() {
			continue
		}

		m.mu.Lock()
		delete(m.runners, id)
		m.mu.Unlock()
		if err := m.stores.Queue.Delete(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		m.notifyCanceled(ctx, id)
	}
	return errors.Join(errs...)
}

func (m *Manager) notifyCanceled(ctx context.Context, id string) {
	m.notify(ctx, notifications.EventCanceled, func(ctx context.Context) error { return m.notifier.Canceled(ctx, id) })
}

// StartPending moves pending jobs into the active table and starts them.
func (m *Manager) StartPending(ctx context.Context, ids []string) error {
	m.tables.Lock()
	defer m.tables.Unlock()

	var errs []error
	for _, id := range ids {
		job, ok := m.stores.Pending.Get(id)
		if !ok {
			m.logger.Warn("requested start for unknown download", logging.String(logging.FieldURL, id))
			continue
		}
		req, err := m.plan(job, true)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := m.stores.Pending.Delete(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := m.stores.Queue.Put(ctx, job); err != nil {
			errs = append(errs, err)
			if restoreErr := m.stores.Pending.Put(ctx, job); restoreErr != nil {
				logging.WarnWithContext(m.logger, "failed to return job to pending table", "queue_put_failed",
					logging.String(logging.FieldURL, id),
					logging.Error(restoreErr),
					logging.String(logging.FieldErrorHint, "check the state directory, then add the url again"),
					logging.String(logging.FieldImpact, "job was dropped from the queue"),
				)
			}
			continue
		}
		m.launch(job, req)
	}
	return errors.Join(errs...)
}

// Clear drops finished jobs from the done table, deleting the downloaded file
// first when configured to. File removal is best effort.
func (m *Manager) Clear(ctx context.Context, ids []string) error {
	m.tables.Lock()
	defer m.tables.Unlock()

	var errs []error
	for _, id := range ids {
		job, ok := m.stores.Done.Get(id)
		if !ok {
			m.logger.Warn("requested clear for unknown download", logging.String(logging.FieldURL, id))
			continue
		}
		if m.cfg.Downloads.DeleteFileOnClear && job.Filename != "" {
			m.removeOutput(job)
		}
		if err := m.stores.Done.Delete(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		m.notify(ctx, notifications.EventCleared, func(ctx context.Context) error { return m.notifier.Cleared(ctx, id) })
	}
	return errors.Join(errs...)
}

func (m *Manager) removeOutput(job *queue.Job) {
	dir, err := m.downloadDir(job.Quality, job.Format, job.Folder, false)
	if err == nil {
		err = os.Remove(filepath.Join(dir, job.Filename))
	}
	if err != nil {
		m.logger.Warn("deleting downloaded file failed",
			logging.String(logging.FieldURL, job.URL),
			logging.String("filename", job.Filename),
			logging.Error(err),
		)
	}
}

// Snapshot is the in-memory view of the queue.
type Snapshot struct {
	// Queue lists active jobs followed by pending ones.
	Queue []*queue.Job
	Done  []*queue.Job
}

// Get returns the current view. Active jobs reflect their live run state.
func (m *Manager) Get() Snapshot {
	active := m.stores.Queue.Items()
	m.mu.Lock()
	for i, job := range active {
		if r, ok := m.runners[job.URL]; ok {
			active[i] = r.Job()
		}
	}
	m.mu.Unlock()
	return Snapshot{
		Queue: append(active, m.stores.Pending.Items()...),
		Done:  m.stores.Done.Items(),
	}
}

// History is the persisted content of every table.
type History struct {
	Done    []*queue.Job
	Queue   []*queue.Job
	Pending []*queue.Job
}

// History reads every table from disk.
func (m *Manager) History(ctx context.Context) (History, error) {
	var (
		h   History
		err error
	)
	if h.Done, err = m.stores.Done.SavedItems(ctx); err != nil {
		return History{}, err
	}
	if h.Queue, err = m.stores.Queue.SavedItems(ctx); err != nil {
		return History{}, err
	}
	if h.Pending, err = m.stores.Pending.SavedItems(ctx); err != nil {
		return History{}, err
	}
	return h, nil
}

// StatusSummary represents lightweight engine diagnostics.
type StatusSummary struct {
	Running       bool
	Concurrency   string
	MaxConcurrent int
	Active        int
	Pending       int
	Done          int
	LiveWorkers   int
}

// Status returns the latest engine information.
func (m *Manager) Status() StatusSummary {
	m.mu.Lock()
	summary := StatusSummary{
		Running:       m.running && !m.stopping,
		Concurrency:   m.concurrency,
		MaxConcurrent: m.limit,
	}
	m.mu.Unlock()
	summary.Active = m.stores.Queue.Len()
	summary.Pending = m.stores.Pending.Len()
	summary.Done = m.stores.Done.Len()
	summary.LiveWorkers = m.workers.Live()
	return summary
}
