// Package main hosts the ytqueue CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into IPC calls against
// the daemon: adding downloads, inspecting and editing the three job tables,
// switching the concurrency policy, and tailing logs and job events. The
// hidden `daemon` subcommand runs the daemon itself in the foreground.
//
// Keep this package lean. New behavior belongs in the internal packages first
// and is surfaced here through commands or flags.
package main
