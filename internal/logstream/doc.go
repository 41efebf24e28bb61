// Package logstream prints daemon logs for the CLI, preferring structured
// records from the HTTP API and falling back to the IPC file tail.
package logstream
