// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// Request and response types alias the api package DTOs so both transports
// share one wire format. The socket lives next to the daemon log and is
// removed when the server closes.
package ipc
