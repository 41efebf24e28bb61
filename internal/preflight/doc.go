// Package preflight runs the environment checks shown by `ytqueue status` and
// logged when the daemon starts: download and state directory access, the
// yt-dlp options file, and ntfy reachability.
package preflight
