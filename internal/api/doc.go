// Package api defines the wire-format types shared by the HTTP API, the IPC
// server and the CLI, together with the request validation that sits in front
// of the queue engine.
//
// # Key Types
//
// AddRequest: the body of POST /api/add. Optional fields are pointers so that
// an omitted field picks up the configured default rather than the zero value.
//
// QueueService: validates requests and forwards them to an Engine (the
// workflow manager in production). Both transports call through it so the two
// stay consistent.
//
// DaemonStatus, WorkflowStatus, DependencyStatus: runtime information rendered
// by `ytqueue status` and GET /api/status.
//
// # Design Notes
//
// JSON uses snake_case to match the persisted job records, which are sent to
// clients unchanged. Mutating endpoints answer with StatusResponse: request
// problems are reported as errors (HTTP 400) while engine failures come back
// as {"status":"error","msg":...} so that clients can show the message as is.
package api
