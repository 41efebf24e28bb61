package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"ytqueue/internal/config"
)

// Requirement names an external program ytqueue runs.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports whether a requirement resolved to an executable.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ForConfig lists the programs the configured downloads depend on.
func ForConfig(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.YTDLPBinary(),
			Description: "Extracts metadata and downloads media",
		},
		{
			Name:        "FFmpeg",
			Command:     ResolveFFmpeg(cfg.YTDLPBinary(), cfg.FFmpegBinary()),
			Description: "Merges formats and runs audio, thumbnail and chapter post-processing",
		},
		{
			Name:        "FFprobe",
			Command:     "ffprobe",
			Description: "Reads stream durations for chapter splitting",
			Optional:    true,
		},
	}
}

// Check resolves every requirement for cfg.
func Check(cfg *config.Config) []Status {
	return CheckBinaries(ForConfig(cfg))
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch resolved, err := exec.LookPath(cmd); {
		case cmd == "":
			status.Detail = "command not configured"
		case err != nil:
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
		default:
			status.Command = resolved
			status.Available = true
		}
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of unavailable, non-optional programs.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
