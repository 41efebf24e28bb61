// Package ytdlp drives the yt-dlp executable.
//
// Extract returns the flat metadata tree for a URL as Entry values tagged with
// a closed EntryKind. Launch starts a download in its own process group and
// relays a fixed set of events (progress, final file, chapter files, caption
// files) parsed from marked stdout lines; the event channel closes once the
// process has exited. Kill signals the whole group.
package ytdlp
