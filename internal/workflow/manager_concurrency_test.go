package workflow_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"ytqueue/internal/config"
	"ytqueue/internal/notifications"
	"ytqueue/internal/testsupport"
	"ytqueue/internal/workflow"
)

func TestConcurrentAddKeepsURLInOneTable(t *testing.T) {
	h := newHarness(t, testsupport.WithConcurrency(config.ConcurrencyUnlimited, 0))

	for i := 0; i < 5; i++ {
		entry := video(fmt.Sprintf("race%d", i))
		h.register(entry.WebpageURL, entry)

		// Both requests finish extracting before either is admitted.
		var arrived sync.WaitGroup
		arrived.Add(2)
		release := make(chan struct{})
		h.extractor.mu.Lock()
		h.extractor.hold = func() {
			arrived.Done()
			<-release
		}
		h.extractor.mu.Unlock()

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for n, autoStart := range []bool{true, false} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs[n] = h.manager.Add(context.Background(), workflow.AddRequest{
					URL:       entry.WebpageURL,
					Quality:   "best",
					Format:    "any",
					AutoStart: autoStart,
				})
			}()
		}
		arrived.Wait()
		close(release)
		wg.Wait()

		h.extractor.mu.Lock()
		h.extractor.hold = nil
		h.extractor.mu.Unlock()

		for _, err := range errs {
			if err != nil {
				t.Fatalf("Add: %v", err)
			}
		}
		inQueue := h.stores.Queue.Exists(entry.WebpageURL)
		inPending := h.stores.Pending.Exists(entry.WebpageURL)
		if inQueue == inPending {
			t.Fatalf("%s: queue=%v pending=%v, want exactly one table", entry.ID, inQueue, inPending)
		}
		if got := h.notifier.count(notifications.EventAdded, entry.WebpageURL); got != 1 {
			t.Fatalf("%s: added emitted %d times", entry.ID, got)
		}
		if inQueue {
			h.launcher.next(t).exit(nil)
			waitFor(t, "job in done", func() bool { return h.stores.Done.Exists(entry.WebpageURL) })
		}
		h.launcher.expectNone(t)
	}
}

func TestConcurrentStartPendingLaunchesOnce(t *testing.T) {
	h := newHarness(t)
	url := h.addVideo(t, "twice", false)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := h.manager.StartPending(context.Background(), []string{url}); err != nil {
				t.Errorf("StartPending: %v", err)
			}
		}()
	}
	wg.Wait()

	if h.stores.Pending.Exists(url) || !h.stores.Queue.Exists(url) {
		t.Fatal("job not moved from pending to active")
	}
	listed := 0
	for _, job := range h.manager.Get().Queue {
		if job.URL == url {
			listed++
		}
	}
	if listed != 1 {
		t.Fatalf("job listed %d times in the queue view", listed)
	}
	h.launcher.next(t).exit(nil)
	h.launcher.expectNone(t)
}

func TestLoweringConcurrencyAppliesToWaitingJobs(t *testing.T) {
	h := newHarness(t, testsupport.WithConcurrency(config.ConcurrencyLimited, 2))
	h.addVideo(t, "a", true)
	h.addVideo(t, "b", true)
	h.addVideo(t, "c", true)
	first := h.launcher.next(t)
	second := h.launcher.next(t)
	h.launcher.expectNone(t)

	if err := h.manager.SetConcurrency(config.ConcurrencySequential, 0); err != nil {
		t.Fatal(err)
	}
	h.addVideo(t, "d", true)
	h.launcher.expectNone(t)

	// two running against a limit of one: the first exit frees nothing usable
	first.exit(nil)
	h.launcher.expectNone(t)

	second.exit(nil)
	third := h.launcher.next(t)
	h.launcher.expectNone(t)

	third.exit(nil)
	h.launcher.next(t).exit(nil)
	h.launcher.expectNone(t)
}

func TestRaisingConcurrencyReleasesWaitingJobs(t *testing.T) {
	h := newHarness(t, testsupport.WithConcurrency(config.ConcurrencySequential, 0))
	h.addVideo(t, "a", true)
	h.addVideo(t, "b", true)
	first := h.launcher.next(t)
	h.launcher.expectNone(t)

	if err := h.manager.SetConcurrency(config.ConcurrencyUnlimited, 0); err != nil {
		t.Fatal(err)
	}
	second := h.launcher.next(t)

	first.exit(nil)
	second.exit(nil)
}

func TestSlotFreedBeforeCompletionIsReported(t *testing.T) {
	h := newHarness(t, testsupport.WithConcurrency(config.ConcurrencySequential, 0))
	completing := make(chan struct{})
	h.notifier.mu.Lock()
	h.notifier.completing = completing
	h.notifier.mu.Unlock()
	defer close(completing)

	urlA := h.addVideo(t, "a", true)
	h.addVideo(t, "b", true)
	h.launcher.next(t).exit(nil)

	// a's completion report is still blocked while b starts
	h.launcher.next(t)
	waitFor(t, "a in done", func() bool { return h.stores.Done.Exists(urlA) })
	if h.notifier.count(notifications.EventCompleted, urlA) != 0 {
		t.Fatal("completion reported before the notifier was released")
	}
}

func TestExtractorMessageBecomesJobError(t *testing.T) {
	h := newHarness(t)
	entry := video("note")
	entry.Message = "Premieres in 2 hours"
	h.register(entry.WebpageURL, entry)

	if err := h.manager.Add(context.Background(), workflow.AddRequest{URL: entry.WebpageURL, Quality: "best", Format: "any"}); err != nil {
		t.Fatal(err)
	}
	job, ok := h.stores.Pending.Get(entry.WebpageURL)
	if !ok {
		t.Fatal("job not admitted")
	}
	if job.Error != "Premieres in 2 hours" {
		t.Fatalf("error = %q", job.Error)
	}
}
