package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ytqueue/internal/config"
	"ytqueue/internal/logging"
	"ytqueue/internal/notifications"
	"ytqueue/internal/queue"
	"ytqueue/internal/runner"
	"ytqueue/internal/testsupport"
	"ytqueue/internal/workflow"
	"ytqueue/internal/ytdlp"
)

type fakeExtractor struct {
	mu      sync.Mutex
	entries map[string]*ytdlp.Entry
	calls   []string
	// hold, when set, runs after the lookup and before Extract returns.
	hold func()
}

func (f *fakeExtractor) Extract(_ context.Context, url string) (*ytdlp.Entry, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	entry, ok := f.entries[url]
	hold := f.hold
	f.mu.Unlock()
	if hold != nil {
		hold()
	}
	if !ok {
		return nil, fmt.Errorf("%w: ytdlp: extract: ERROR: unsupported url %s", errExtract, url)
	}
	return entry, nil
}

var errExtract = errors.New("extraction error")

func video(id string) *ytdlp.Entry {
	return &ytdlp.Entry{
		Kind:       ytdlp.KindVideo,
		ID:         id,
		Title:      "Video " + id,
		WebpageURL: "https://example.com/watch?v=" + id,
	}
}

type fakeProc struct {
	req     ytdlp.Request
	events  chan ytdlp.Event
	done    chan struct{}
	once    sync.Once
	exitErr error
}

func (p *fakeProc) Events() <-chan ytdlp.Event { return p.events }
func (p *fakeProc) Wait() error                { <-p.done; return p.exitErr }
func (p *fakeProc) Kill() error                { p.exit(errors.New("signal: killed")); return nil }
func (p *fakeProc) PID() int                   { return 1 }

func (p *fakeProc) exit(err error) {
	p.once.Do(func() {
		p.exitErr = err
		close(p.events)
		close(p.done)
	})
}

type fakeLauncher struct {
	launched chan *fakeProc
}

func newFakeLauncher() *fakeLauncher {
	return &fakeLauncher{launched: make(chan *fakeProc, 32)}
}

func (l *fakeLauncher) Launch(ctx context.Context, req ytdlp.Request) (ytdlp.Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := &fakeProc{req: req, events: make(chan ytdlp.Event, 8), done: make(chan struct{})}
	l.launched <- p
	return p, nil
}

func (l *fakeLauncher) next(t *testing.T) *fakeProc {
	t.Helper()
	select {
	case p := <-l.launched:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("no worker launched")
		return nil
	}
}

func (l *fakeLauncher) expectNone(t *testing.T) {
	t.Helper()
	select {
	case p := <-l.launched:
		t.Fatalf("unexpected launch of %s", p.req.URL)
	case <-time.After(50 * time.Millisecond):
	}
}

type recordedEvent struct {
	kind notifications.EventType
	id   string
	job  *queue.Job
}

type recorder struct {
	mu     sync.Mutex
	events []recordedEvent
	// completing, when set, blocks Completed until it is closed.
	completing chan struct{}
}

func (r *recorder) add(kind notifications.EventType, id string, job *queue.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{kind: kind, id: id, job: job.Clone()})
	return nil
}

func (r *recorder) Added(_ context.Context, job *queue.Job) error {
	return r.add(notifications.EventAdded, job.URL, job)
}

func (r *recorder) Updated(_ context.Context, job *queue.Job) error {
	return r.add(notifications.EventUpdated, job.URL, job)
}

func (r *recorder) Completed(_ context.Context, job *queue.Job) error {
	r.mu.Lock()
	completing := r.completing
	r.mu.Unlock()
	if completing != nil {
		<-completing
	}
	return r.add(notifications.EventCompleted, job.URL, job)
}

func (r *recorder) Canceled(_ context.Context, id string) error {
	return r.add(notifications.EventCanceled, id, nil)
}

func (r *recorder) Cleared(_ context.Context, id string) error {
	return r.add(notifications.EventCleared, id, nil)
}

func (r *recorder) count(kind notifications.EventType, id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, evt := range r.events {
		if evt.kind == kind && (id == "" || evt.id == id) {
			n++
		}
	}
	return n
}

func (r *recorder) last(kind notifications.EventType) *queue.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].kind == kind {
			return r.events[i].job
		}
	}
	return nil
}

type harness struct {
	cfg       *config.Config
	stores    *queue.Set
	extractor *fakeExtractor
	launcher  *fakeLauncher
	notifier  *recorder
	manager   *workflow.Manager
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	return newHarnessWithConfig(t, cfg)
}

func newHarnessWithConfig(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	h := &harness{
		cfg:       cfg,
		stores:    testsupport.MustOpenSet(t, cfg),
		extractor: &fakeExtractor{entries: map[string]*ytdlp.Entry{}},
		launcher:  newFakeLauncher(),
		notifier:  &recorder{},
	}
	workers := runner.NewWorkers(h.launcher, logging.NewNop())
	mgr, err := workflow.NewManager(cfg, h.stores, h.extractor, workers, h.notifier, logging.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	h.manager = mgr
	t.Cleanup(mgr.Stop)
	return h
}

func (h *harness) register(url string, entry *ytdlp.Entry) {
	h.extractor.mu.Lock()
	h.extractor.entries[url] = entry
	h.extractor.mu.Unlock()
}

func (h *harness) addVideo(t *testing.T, id string, autoStart bool) string {
	t.Helper()
	entry := video(id)
	h.register(entry.WebpageURL, entry)
	if err := h.manager.Add(context.Background(), workflow.AddRequest{
		URL:       entry.WebpageURL,
		Quality:   "best",
		Format:    "any",
		AutoStart: autoStart,
	}); err != nil {
		t.Fatalf("Add %s: %v", id, err)
	}
	return entry.WebpageURL
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
