package queue_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"ytqueue/internal/queue"
	"ytqueue/internal/services"
	"ytqueue/internal/testsupport"
)

func TestPutGetDeleteRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set := testsupport.MustOpenSet(t, cfg)
	ctx := context.Background()

	job := testsupport.NewJob("https://example.com/a", "mp4", "best")
	if err := set.Pending.Put(ctx, job); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !set.Pending.Exists(job.URL) {
		t.Fatal("expected job to exist after put")
	}
	if set.Queue.Exists(job.URL) || set.Done.Exists(job.URL) {
		t.Fatal("job must only exist in the table it was put in")
	}

	got, ok := set.Pending.Get(job.URL)
	if !ok || got.Format != "mp4" {
		t.Fatalf("unexpected get result: %#v ok=%v", got, ok)
	}
	got.Format = "mutated"
	again, _ := set.Pending.Get(job.URL)
	if again.Format != "mp4" {
		t.Fatal("Get must return a copy")
	}

	if err := set.Pending.Delete(ctx, job.URL); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if set.Pending.Exists(job.URL) {
		t.Fatal("expected job removed")
	}
	saved, err := set.Pending.SavedItems(ctx)
	if err != nil {
		t.Fatalf("SavedItems: %v", err)
	}
	if len(saved) != 0 {
		t.Fatalf("expected empty table on disk, got %d rows", len(saved))
	}
	if err := set.Pending.Delete(ctx, "https://unknown"); err != nil {
		t.Fatalf("deleting unknown key should be a no-op: %v", err)
	}
}

func TestPutRequiresURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set := testsupport.MustOpenSet(t, cfg)

	err := set.Queue.Put(context.Background(), &queue.Job{ID: "x"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestItemsFollowAdmissionOrderAcrossReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()
	path := filepath.Join(cfg.Paths.StateDir, queue.CompletedFile)

	store, err := queue.Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	first := testsupport.NewJob("https://example.com/1", "any", "best")
	second := testsupport.NewJob("https://example.com/2", "any", "best")
	third := testsupport.NewJob("https://example.com/3", "any", "best")
	// Insert out of admission order; listing must still follow timestamps.
	for _, job := range []*queue.Job{third, first, second} {
		if err := store.Put(ctx, job); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := queue.Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	items := reopened.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, want := range []string{first.URL, second.URL, third.URL} {
		if items[i].URL != want {
			t.Fatalf("item %d = %s, want %s", i, items[i].URL, want)
		}
	}
	for _, job := range items {
		if job.ChapterFiles == nil || job.SubtitleFiles == nil {
			t.Fatal("artifact lists must be non-nil after load")
		}
	}
}

func TestPutReplacesInPlace(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set := testsupport.MustOpenSet(t, cfg)
	ctx := context.Background()

	a := testsupport.NewJob("https://example.com/a", "any", "best")
	b := testsupport.NewJob("https://example.com/b", "any", "best")
	for _, job := range []*queue.Job{a, b} {
		if err := set.Done.Put(ctx, job); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	a.Status = queue.StatusFinished
	if err := set.Done.Put(ctx, a); err != nil {
		t.Fatalf("Put update: %v", err)
	}
	items := set.Done.Items()
	if len(items) != 2 || items[0].URL != a.URL || items[0].Status != queue.StatusFinished {
		t.Fatalf("unexpected items after update: %+v", items)
	}
}

func TestOpenRecoversFromCorruptFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(cfg.Paths.StateDir, queue.QueueFile)
	if err := os.WriteFile(path, []byte("\x00\x01this is definitely not sqlite\xff\xfe"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	store, err := queue.Open(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Open should survive corruption, got %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(path + queue.BackupSuffix); err != nil {
		t.Fatalf("expected .old backup: %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store after reset, got %d", store.Len())
	}
	if err := store.Put(context.Background(), testsupport.NewJob("https://example.com/x", "any", "best")); err != nil {
		t.Fatalf("store must be writable after reset: %v", err)
	}
}

func TestOpenTakesBackupOfHealthyFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()
	path := filepath.Join(cfg.Paths.StateDir, queue.PendingFile)

	store, err := queue.Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Put(ctx, testsupport.NewJob("https://example.com/keep", "mp3", "best")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_ = store.Close()

	reopened, err := queue.Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if !reopened.Exists("https://example.com/keep") {
		t.Fatal("expected job to survive reopen")
	}
	health, err := reopened.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if !health.BackupExists || !health.IntegrityCheck || health.TotalItems != 1 || health.Name != "pending" {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestSetCheckHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	set := testsupport.MustOpenSet(t, cfg)

	reports, err := set.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}
	for _, report := range reports {
		if !report.DatabaseReadable || !report.TableExists {
			t.Fatalf("unexpected report %+v", report)
		}
	}
}
