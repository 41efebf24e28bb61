package api

import (
	"ytqueue/internal/logging"
	"ytqueue/internal/queue"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Status values of StatusResponse.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// StatusResponse acknowledges a mutating request.
type StatusResponse struct {
	Status string `json:"status"`
	Msg    string `json:"msg,omitempty"`
}

// DeleteRequest cancels active or pending jobs (where=queue) or clears
// finished ones (where=done).
type DeleteRequest struct {
	IDs   []string `json:"ids"`
	Where string   `json:"where"`
}

// StartRequest starts pending jobs.
type StartRequest struct {
	IDs []string `json:"ids"`
}

// ConcurrencyRequest switches the concurrency policy at runtime.
type ConcurrencyRequest struct {
	Policy string `json:"policy"`
	Limit  int    `json:"limit"`
}

// QueueResponse is the live view: active jobs followed by pending ones, then
// finished jobs.
type QueueResponse struct {
	Queue []*queue.Job `json:"queue"`
	Done  []*queue.Job `json:"done"`
}

// HistoryResponse is the persisted content of every table.
type HistoryResponse struct {
	Done    []*queue.Job `json:"done"`
	Queue   []*queue.Job `json:"queue"`
	Pending []*queue.Job `json:"pending"`
}

// Event is one job lifecycle event.
type Event struct {
	Sequence  uint64     `json:"seq"`
	Timestamp string     `json:"ts"`
	Type      string     `json:"type"`
	ID        string     `json:"id,omitempty"`
	Job       *queue.Job `json:"job,omitempty"`
}

// EventsResponse carries the events after a cursor. Next is the cursor for the
// following request.
type EventsResponse struct {
	Events []Event `json:"events"`
	Next   uint64  `json:"next"`
}

// LogStreamResponse carries daemon log records after a cursor.
type LogStreamResponse struct {
	Events []logging.LogEvent `json:"events"`
	Next   uint64             `json:"next"`
}

// VersionResponse reports the application and yt-dlp versions.
type VersionResponse struct {
	YTDLP   string `json:"yt-dlp"`
	Version string `json:"version"`
}

// CustomDirsResponse lists the folders a download may target, relative to each
// download root. The empty string stands for the root itself.
type CustomDirsResponse struct {
	DownloadDir      []string `json:"download_dir"`
	AudioDownloadDir []string `json:"audio_download_dir"`
}

// WorkflowStatus summarizes queue engine state.
type WorkflowStatus struct {
	Running       bool   `json:"running"`
	Concurrency   string `json:"concurrency"`
	MaxConcurrent int    `json:"max_concurrent"`
	Active        int    `json:"active"`
	Pending       int    `json:"pending"`
	Done          int    `json:"done"`
	LiveWorkers   int    `json:"live_workers"`
}

// DependencyStatus captures availability of an external program.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CheckResult is the outcome of one environment check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	SessionID    string             `json:"session_id,omitempty"`
	LockFilePath string             `json:"lock_file_path"`
	StateDir     string             `json:"state_dir"`
	LogPath      string             `json:"log_path"`
	APIAddress   string             `json:"api_address,omitempty"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
	Checks       []CheckResult      `json:"checks,omitempty"`
}
