// Package logs provides log viewing helpers shared by the CLI and the daemon.
//
// Tail reads the daemon log file with bounded memory: a negative offset returns
// the last N lines, a positive one resumes where a previous call stopped, and
// follow mode polls until new lines arrive. StreamClient reads the structured
// log and job event streams from the HTTP API when it is enabled.
package logs
