package testsupport

import (
	"context"
	"testing"

	"ytqueue/internal/config"
	"ytqueue/internal/queue"
)

// MustOpenSet opens the job tables for tests and registers cleanup.
func MustOpenSet(t testing.TB, cfg *config.Config) *queue.Set {
	t.Helper()

	set, err := queue.OpenSet(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("queue.OpenSet: %v", err)
	}
	t.Cleanup(func() {
		_ = set.Close()
	})
	return set
}

// NewJob builds a job for url with the given format and quality.
func NewJob(url, format, quality string) *queue.Job {
	return queue.NewJob(queue.Params{
		ID:      url,
		Title:   url,
		URL:     url,
		Format:  format,
		Quality: quality,
	})
}
