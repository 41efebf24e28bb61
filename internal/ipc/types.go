package ipc

import "ytqueue/internal/api"

// SocketName is the IPC socket file created under the log directory.
const SocketName = "ytqueue.sock"

// Empty is the argument of calls that take no input.
type Empty struct{}

// Request and response DTOs shared with the HTTP API.
type (
	AddRequest          = api.AddRequest
	AckResponse         = api.StatusResponse
	DeleteRequest       = api.DeleteRequest
	StartPendingRequest = api.StartRequest
	QueueResponse       = api.QueueResponse
	HistoryResponse     = api.HistoryResponse
	StatusResponse      = api.DaemonStatus
	ConcurrencyRequest  = api.ConcurrencyRequest
	WorkflowStatus      = api.WorkflowStatus
	VersionResponse     = api.VersionResponse
	CustomDirsResponse  = api.CustomDirsResponse
)

// StopResponse acknowledges a shutdown request.
type StopResponse struct {
	Stopping bool `json:"stopping"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
	Reset  bool     `json:"reset,omitempty"`
}

// DatabaseHealth reports the state of one job table.
type DatabaseHealth struct {
	Name             string `json:"name"`
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	SchemaVersion    int    `json:"schema_version"`
	TableExists      bool   `json:"table_exists"`
	IntegrityCheck   bool   `json:"integrity_check"`
	TotalItems       int    `json:"total_items"`
	BackupExists     bool   `json:"backup_exists"`
	Error            string `json:"error,omitempty"`
}

// DatabaseHealthResponse reports every job table.
type DatabaseHealthResponse struct {
	Tables []DatabaseHealth `json:"tables"`
}
