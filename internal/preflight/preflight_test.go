package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"ytqueue/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	result := CheckDirectoryAccess("test", t.TempDir())
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckDirectoryAccess("test", f); result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckNtfy_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"healthy":true}`))
	}))
	defer srv.Close()

	result := CheckNtfy(context.Background(), srv.URL+"/downloads")
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckNtfy_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	result := CheckNtfy(context.Background(), srv.URL+"/downloads")
	if result.Passed {
		t.Fatal("expected failure")
	}
	if result.Detail != "health check failed (503)" {
		t.Fatalf("unexpected detail: %s", result.Detail)
	}
}

func TestCheckNtfy_InvalidURL(t *testing.T) {
	if result := CheckNtfy(context.Background(), "just-a-topic"); result.Passed {
		t.Fatal("expected failure for bare topic name")
	}
}

func TestCheckOptionsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "options.yaml")
	if err := os.WriteFile(path, []byte("options:\n  no_mtime: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.YTDLP.OptionsFile = path
	if result := CheckOptionsFile(&cfg); !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}

	cfg.YTDLP.OptionsFile = filepath.Join(dir, "missing.yaml")
	if result := CheckOptionsFile(&cfg); result.Passed {
		t.Fatal("expected failure for missing options file")
	}
}

func TestRunAllSkipsUnconfiguredChecks(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DownloadDir = base
	cfg.Paths.AudioDownloadDir = base
	cfg.Paths.StateDir = base
	cfg.Paths.TempDir = ""
	cfg.Notifications.NtfyTopic = ""

	results := RunAll(context.Background(), &cfg)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAllReportsMissingDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DownloadDir = filepath.Join(base, "missing")
	cfg.Paths.AudioDownloadDir = filepath.Join(base, "missing")
	cfg.Paths.StateDir = base
	cfg.Paths.TempDir = ""
	cfg.Notifications.NtfyTopic = ""

	failed := Failed(RunAll(context.Background(), &cfg))
	if len(failed) != 1 || failed[0].Name != "Download directory" {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}
