package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DownloadDir      string `toml:"download_dir"`
	AudioDownloadDir string `toml:"audio_download_dir"`
	TempDir          string `toml:"temp_dir"`
	StateDir         string `toml:"state_dir"`
	LogDir           string `toml:"log_dir"`
}

// API contains the HTTP API listener configuration.
type API struct {
	Bind               string   `toml:"bind"`
	Token              string   `toml:"token"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
}

// Templates contains yt-dlp output templates.
type Templates struct {
	Output   string `toml:"output"`
	Chapter  string `toml:"chapter"`
	Playlist string `toml:"playlist"`
	Channel  string `toml:"channel"`
}

// Downloads contains queue admission and destination policy.
type Downloads struct {
	Concurrency              string `toml:"concurrency"`
	MaxConcurrent            int    `toml:"max_concurrent"`
	CustomDirs               bool   `toml:"custom_dirs"`
	CreateCustomDirs         bool   `toml:"create_custom_dirs"`
	CustomDirsExcludeRegex   string `toml:"custom_dirs_exclude_regex"`
	DeleteFileOnClear        bool   `toml:"delete_file_on_clear"`
	DefaultPlaylistItemLimit int    `toml:"default_playlist_item_limit"`
}

// YTDLP contains settings for the yt-dlp executable.
type YTDLP struct {
	Binary        string   `toml:"binary"`
	SocketTimeout int      `toml:"socket_timeout"`
	ExtraArgs     []string `toml:"extra_args"`
	OptionsFile   string   `toml:"options_file"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for ytqueue.
//
// Configuration sections by subsystem:
//   - Paths: download roots, temp, state and log directories
//   - API: HTTP listener and CORS origins
//   - Templates: yt-dlp output templates
//   - Downloads: concurrency policy and custom directory rules
//   - YTDLP: executable, timeouts and pass-through arguments
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	Templates     Templates     `toml:"templates"`
	Downloads     Downloads     `toml:"downloads"`
	YTDLP         YTDLP         `toml:"ytdlp"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ytqueue/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ytqueue.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DownloadDir, c.Paths.AudioDownloadDir, c.Paths.StateDir, c.Paths.LogDir}
	if c.Paths.TempDir != "" {
		dirs = append(dirs, c.Paths.TempDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// YTDLPBinary returns the yt-dlp executable name or path.
func (c *Config) YTDLPBinary() string {
	if c == nil || strings.TrimSpace(c.YTDLP.Binary) == "" {
		return defaultYTDLPBinary
	}
	return c.YTDLP.Binary
}

// FFmpegBinary returns the ffmpeg executable name used by yt-dlp post-processors.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// DownloadRoot returns the base directory for the given media class.
func (c *Config) DownloadRoot(audio bool) string {
	if audio {
		return c.Paths.AudioDownloadDir
	}
	return c.Paths.DownloadDir
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
