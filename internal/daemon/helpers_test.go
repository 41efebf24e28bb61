package daemon

import (
	"context"
	"errors"
	"testing"

	"ytqueue/internal/config"
	"ytqueue/internal/logging"
	"ytqueue/internal/notifications"
	"ytqueue/internal/runner"
	"ytqueue/internal/services"
	"ytqueue/internal/testsupport"
	"ytqueue/internal/workflow"
	"ytqueue/internal/ytdlp"
)

type stubExtractor map[string]*ytdlp.Entry

func (s stubExtractor) Extract(_ context.Context, url string) (*ytdlp.Entry, error) {
	if entry, ok := s[url]; ok {
		return entry, nil
	}
	return nil, services.Wrap(services.ErrExtraction, "", "", "ERROR: Unsupported URL: "+url, nil)
}

type idleLauncher struct{}

func (idleLauncher) Launch(context.Context, ytdlp.Request) (ytdlp.Process, error) {
	return nil, errors.New("launch disabled in tests")
}

type stubVersion string

func (v stubVersion) Version(context.Context) (string, error) { return string(v), nil }

func newTestDaemon(t *testing.T, mutate func(*config.Config)) *Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	set := testsupport.MustOpenSet(t, cfg)
	hub := notifications.NewEventHub(64)
	extractor := stubExtractor{
		"https://example.com/watch?v=a": {
			Kind:       ytdlp.KindVideo,
			ID:         "a",
			Title:      "Video a",
			WebpageURL: "https://example.com/watch?v=a",
		},
	}
	workers := runner.NewWorkers(idleLauncher{}, logging.NewNop())
	mgr, err := workflow.NewManager(cfg, set, extractor, workers, hub, logging.NewNop())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	d, err := New(Options{
		Config:    cfg,
		Stores:    set,
		Workflow:  mgr,
		Events:    hub,
		LogStream: logging.NewStreamHub(16),
		YTDLP:     stubVersion("2025.01.01"),
		Logger:    logging.NewNop(),
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d
}
