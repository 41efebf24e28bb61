// Package config loads, normalizes, and validates ytqueue configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// YTQUEUE_DOWNLOAD_DIR. The Config type centralizes every knob the daemon and
// CLI need, allowing download roots, templates, and the concurrency policy to
// be discovered in one pass. The optional yt-dlp options file is YAML and is
// re-read on demand through YTDLPArgs.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
