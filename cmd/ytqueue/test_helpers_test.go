package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"ytqueue/internal/config"
	"ytqueue/internal/daemon"
	"ytqueue/internal/ipc"
	"ytqueue/internal/logging"
	"ytqueue/internal/notifications"
	"ytqueue/internal/queue"
	"ytqueue/internal/runner"
	"ytqueue/internal/services"
	"ytqueue/internal/testsupport"
	"ytqueue/internal/workflow"
	"ytqueue/internal/ytdlp"
)

const testVideoURL = "https://example.com/watch?v=a"

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, url string) (*ytdlp.Entry, error) {
	if url == testVideoURL {
		return &ytdlp.Entry{Kind: ytdlp.KindVideo, ID: "a", Title: "Video a", WebpageURL: url}, nil
	}
	return nil, services.Wrap(services.ErrExtraction, "", "", "ERROR: Unsupported URL: "+url, nil)
}

type idleLauncher struct{}

func (idleLauncher) Launch(context.Context, ytdlp.Request) (ytdlp.Process, error) {
	return nil, errors.New("launch disabled in tests")
}

type stubVersion string

func (v stubVersion) Version(context.Context) (string, error) { return string(v), nil }

type cliTestEnv struct {
	cfg        *config.Config
	stores     *queue.Set
	daemon     *daemon.Daemon
	socketPath string
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries("yt-dlp", "ffmpeg", "ffprobe"))
	cfg.API.Bind = ""
	// The daemon serves no HTTP API; the CLI is pointed at a closed port so
	// API-first commands fall back to IPC.
	cliCfg := *cfg
	cliCfg.API.Bind = "127.0.0.1:1"
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, &cliCfg)

	set := testsupport.MustOpenSet(t, cfg)
	logger := logging.NewNop()
	workers := runner.NewWorkers(idleLauncher{}, logger)
	mgr, err := workflow.NewManager(cfg, set, stubExtractor{}, workers, notifications.NewEventHub(16), logger)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	d, err := daemon.New(daemon.Options{
		Config:   cfg,
		Stores:   set,
		Workflow: mgr,
		YTDLP:    stubVersion("2025.01.01"),
		Logger:   logger,
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(d.Stop)

	socketPath := filepath.Join(cfg.Paths.LogDir, ipc.SocketName)
	srv, err := ipc.NewServer(ctx, socketPath, d, func() {}, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	return &cliTestEnv{
		cfg:        cfg,
		stores:     set,
		daemon:     d,
		socketPath: socketPath,
		configPath: configPath,
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, args, e.socketPath, e.configPath)
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if socket != "" {
		flags = append(flags, "--socket", socket)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
