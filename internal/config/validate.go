package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateTemplates(); err != nil {
		return err
	}
	if err := c.validateDownloads(); err != nil {
		return err
	}
	if err := c.validateYTDLP(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		return errors.New("paths.download_dir must be set")
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	return nil
}

func (c *Config) validateTemplates() error {
	if strings.TrimSpace(c.Templates.Output) == "" {
		return errors.New("templates.output must be set")
	}
	if strings.TrimSpace(c.Templates.Chapter) == "" {
		return errors.New("templates.chapter must be set")
	}
	return nil
}

func (c *Config) validateDownloads() error {
	switch c.Downloads.Concurrency {
	case ConcurrencySequential, ConcurrencyUnlimited:
	case ConcurrencyLimited:
		if c.Downloads.MaxConcurrent <= 0 {
			return errors.New("downloads.max_concurrent must be positive when downloads.concurrency is limited")
		}
	default:
		return fmt.Errorf("downloads.concurrency must be one of sequential, limited, unlimited (got %q)", c.Downloads.Concurrency)
	}
	if c.Downloads.DefaultPlaylistItemLimit < 0 {
		return errors.New("downloads.default_playlist_item_limit must be >= 0")
	}
	if expr := strings.TrimSpace(c.Downloads.CustomDirsExcludeRegex); expr != "" {
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("downloads.custom_dirs_exclude_regex must be a valid regular expression: %w", err)
		}
	}
	return nil
}

func (c *Config) validateYTDLP() error {
	if c.YTDLP.SocketTimeout < 0 {
		return errors.New("ytdlp.socket_timeout must be >= 0")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}
