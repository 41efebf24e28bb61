// Package workflow is the queue engine.
//
// The Manager admits download requests by extracting their metadata, expands
// playlists and channels into one job per video, and persists each job in the
// active or pending table. Active jobs run through a runner.Runner once the
// concurrency gate admits them; when a run ends the job moves to the done
// table, or is dropped if it was canceled. The Manager also owns the download
// path policy and output naming, and reports every lifecycle change to a
// notifications.Notifier.
package workflow
