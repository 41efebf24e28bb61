package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

func (c *Config) normalize() error {
	c.applyEnvOverrides()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeTemplates()
	c.normalizeDownloads()
	if err := c.normalizeYTDLP(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) applyEnvOverrides() {
	if value, ok := os.LookupEnv("YTQUEUE_DOWNLOAD_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.DownloadDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("YTQUEUE_STATE_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.StateDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("YTQUEUE_MAX_CONCURRENT"); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			c.Downloads.MaxConcurrent = n
		}
	}
	if c.API.Token == "" {
		if value, ok := os.LookupEnv("YTQUEUE_API_TOKEN"); ok {
			c.API.Token = strings.TrimSpace(value)
		}
	}
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("YTQUEUE_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = expandPath(c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AudioDownloadDir) == "" {
		c.Paths.AudioDownloadDir = c.Paths.DownloadDir
	}
	if c.Paths.AudioDownloadDir, err = expandPath(c.Paths.AudioDownloadDir); err != nil {
		return fmt.Errorf("paths.audio_download_dir: %w", err)
	}
	if c.Paths.TempDir, err = expandPath(strings.TrimSpace(c.Paths.TempDir)); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	c.API.Token = strings.TrimSpace(c.API.Token)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	origins := make([]string, 0, len(c.API.CORSAllowedOrigins))
	for _, origin := range c.API.CORSAllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	c.API.CORSAllowedOrigins = origins
}

func (c *Config) normalizeTemplates() {
	if strings.TrimSpace(c.Templates.Output) == "" {
		c.Templates.Output = defaultOutputTemplate
	}
	if strings.TrimSpace(c.Templates.Chapter) == "" {
		c.Templates.Chapter = defaultChapterTemplate
	}
}

func (c *Config) normalizeDownloads() {
	c.Downloads.Concurrency = strings.ToLower(strings.TrimSpace(c.Downloads.Concurrency))
	if c.Downloads.Concurrency == "" {
		c.Downloads.Concurrency = defaultConcurrency
	}
	if c.Downloads.Concurrency == ConcurrencyLimited && c.Downloads.MaxConcurrent == 0 {
		c.Downloads.MaxConcurrent = defaultMaxConcurrent
	}
}

func (c *Config) normalizeYTDLP() error {
	c.YTDLP.Binary = strings.TrimSpace(c.YTDLP.Binary)
	if c.YTDLP.Binary == "" {
		c.YTDLP.Binary = defaultYTDLPBinary
	}
	if c.YTDLP.SocketTimeout == 0 {
		c.YTDLP.SocketTimeout = defaultSocketTimeout
	}
	if strings.TrimSpace(c.YTDLP.OptionsFile) != "" {
		var err error
		if c.YTDLP.OptionsFile, err = expandPath(strings.TrimSpace(c.YTDLP.OptionsFile)); err != nil {
			return fmt.Errorf("ytdlp.options_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
