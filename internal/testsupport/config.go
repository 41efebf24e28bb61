package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"ytqueue/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfgVal.Paths.AudioDownloadDir = filepath.Join(base, "audio")
	cfgVal.Paths.TempDir = filepath.Join(base, "tmp")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.API.Bind = "127.0.0.1:0"
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithConcurrency sets the concurrency policy and limit.
func WithConcurrency(policy string, limit int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Downloads.Concurrency = policy
		b.cfg.Downloads.MaxConcurrent = limit
	}
}

// WithCustomDirs toggles subfolder support and on-demand creation.
func WithCustomDirs(enabled, create bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Downloads.CustomDirs = enabled
		b.cfg.Downloads.CreateCustomDirs = create
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, yt-dlp and ffmpeg are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"yt-dlp", "ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteScript(b.t, filepath.Join(binDir, name), "exit 0\n")
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// WithYTDLPScript installs body as a shell script and points the config's
// yt-dlp binary at it.
func WithYTDLPScript(body string) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "bin", "yt-dlp")
		WriteScript(b.t, path, body)
		b.cfg.YTDLP.Binary = path
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
