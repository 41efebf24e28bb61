// Package logging assembles structured slog loggers and formatting helpers used
// across ytqueue services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so engine and runner code can tag
// log lines with job IDs, stages, and correlation IDs. The StreamHub keeps a
// bounded tail of recent records for the CLI log viewer, and ProgressSampler
// keeps per-job download progress from flooding the output.
//
// Prefer these constructors over hand-rolled slog setup to ensure new
// components emit data with the same shape and routing guarantees as the rest
// of the system.
package logging
