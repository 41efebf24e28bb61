// Package services defines shared utilities consumed by the queue engine, the
// download runner, and the daemon surfaces.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that let callers decide
//     whether a failure is reported synchronously or recorded on a job.
//
// Use these helpers when wiring new engine logic so error handling and
// observability stay uniform across the daemon.
package services
