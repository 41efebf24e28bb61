// Package runner executes a single download job in a yt-dlp worker process.
//
// A Runner moves its job through preparing and running to a terminal state,
// folding worker events into the job and reporting snapshots to a Notifier.
// Cancellation is sticky: once Cancel is called no further updates are sent
// and the run ends as canceled regardless of how the worker exits. Workers is
// the shared handle that tracks live processes so shutdown can kill them.
package runner
