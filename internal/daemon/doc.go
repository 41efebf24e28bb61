// Package daemon coordinates the long-running ytqueue process.
//
// It wires configuration, the job tables, the queue engine and the HTTP API
// into a single lifecycle with flock-based locking to prevent multiple
// instances. The API server lives here as well: gorilla/mux routes wrapped in
// bearer-token auth, request ids and optional CORS.
//
// Keep orchestration logic here: queue semantics belong to the workflow
// package and request validation to the api package.
package daemon
