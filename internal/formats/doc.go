// Package formats translates a logical format/quality request into yt-dlp
// format selectors and post-processing directives.
//
// Resolve and ResolveOptions are pure: they hold no state and touch no disk.
// Options.Args renders the directive set as command-line flags for the
// download worker. SRTToText backs the derived "txt" subtitle format.
package formats
