package preflight

import (
	"context"
	"strings"

	"ytqueue/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check that applies to cfg. The ntfy check only runs
// when a topic is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{CheckDirectoryAccess("Download directory", cfg.Paths.DownloadDir)}
	if cfg.Paths.AudioDownloadDir != cfg.Paths.DownloadDir {
		results = append(results, CheckDirectoryAccess("Audio download directory", cfg.Paths.AudioDownloadDir))
	}
	if cfg.Paths.TempDir != "" {
		results = append(results, CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir))
	}
	results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))

	if strings.TrimSpace(cfg.YTDLP.OptionsFile) != "" {
		results = append(results, CheckOptionsFile(cfg))
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
