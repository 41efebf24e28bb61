package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"ytqueue/internal/logging"
	"ytqueue/internal/services"
)

// Put stores job under its URL, replacing any previous record with that key.
// A replaced key keeps its position in Items.
func (s *Store) Put(ctx context.Context, job *Job) error {
	if job == nil || job.URL == "" {
		return services.Wrap(services.ErrValidation, "queue", "put", s.name, fmt.Errorf("job url is required"))
	}
	record := job.Clone()
	record.normalize()
	payload, err := json.Marshal(record)
	if err != nil {
		return services.Wrap(services.ErrStorage, "queue", "encode job", record.URL, err)
	}

	if _, err := s.execWithRetry(ctx,
		`INSERT INTO jobs (url, created_at, record) VALUES (?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET record = excluded.record`,
		record.URL, record.Timestamp, string(payload),
	); err != nil {
		return services.Wrap(services.ErrStorage, "queue", "put", s.name, err)
	}

	s.mu.Lock()
	if _, ok := s.items[record.URL]; !ok {
		s.order = append(s.order, record.URL)
	}
	s.items[record.URL] = record
	s.mu.Unlock()
	return nil
}

// Delete removes the job stored under url. Unknown keys are ignored.
func (s *Store) Delete(ctx context.Context, url string) error {
	if !s.Exists(url) {
		return nil
	}
	if _, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE url = ?`, url); err != nil {
		return services.Wrap(services.ErrStorage, "queue", "delete", s.name, err)
	}

	s.mu.Lock()
	delete(s.items, url)
	if idx := slices.Index(s.order, url); idx >= 0 {
		s.order = slices.Delete(s.order, idx, idx+1)
	}
	s.mu.Unlock()
	return nil
}

// Exists reports whether url is present in the mirror.
func (s *Store) Exists(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[url]
	return ok
}

// Get returns a copy of the job stored under url.
func (s *Store) Get(url string) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.items[url]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// Items returns copies of every job in admission order.
func (s *Store) Items() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.order))
	for _, url := range s.order {
		out = append(out, s.items[url].Clone())
	}
	return out
}

// Len returns the number of mirrored jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// SavedItems reads every job from disk ordered by admission timestamp. Rows
// that cannot be decoded are skipped with a warning.
func (s *Store) SavedItems(ctx context.Context) ([]*Job, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT url, record FROM jobs ORDER BY created_at, rowid`)
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "queue", "list", s.name, err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var (
			url     string
			payload string
		)
		if err := rows.Scan(&url, &payload); err != nil {
			return nil, services.Wrap(services.ErrStorage, "queue", "scan", s.name, err)
		}
		job := &Job{}
		if err := json.Unmarshal([]byte(payload), job); err != nil {
			logging.WarnWithContext(s.logger, "skipping undecodable job record", "queue_record_invalid",
				logging.String(logging.FieldURL, url),
				logging.Error(err),
				logging.String(logging.FieldImpact, "job is hidden until the table is cleared"),
			)
			continue
		}
		job.URL = url
		job.normalize()
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrStorage, "queue", "iterate", s.name, err)
	}
	sortByTimestamp(jobs)
	return jobs, nil
}

// Load rebuilds the in-memory mirror from disk.
func (s *Store) Load(ctx context.Context) error {
	jobs, err := s.SavedItems(ctx)
	if err != nil {
		return err
	}
	items := make(map[string]*Job, len(jobs))
	order := make([]string, 0, len(jobs))
	for _, job := range jobs {
		if _, dup := items[job.URL]; !dup {
			order = append(order, job.URL)
		}
		items[job.URL] = job
	}

	s.mu.Lock()
	s.items = items
	s.order = order
	s.mu.Unlock()

	s.logger.Debug("job table loaded", logging.Int("jobs", len(order)))
	return nil
}
