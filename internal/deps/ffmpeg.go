package deps

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ResolveFFmpeg returns the ffmpeg binary yt-dlp will pick up. Standalone
// yt-dlp builds prefer an ffmpeg sitting next to their own executable, so a
// sidecar wins over the configured name.
func ResolveFFmpeg(ytdlpCommand, fallback string) string {
	if fallback = strings.TrimSpace(fallback); fallback == "" {
		fallback = "ffmpeg"
	}
	ytdlp := strings.TrimSpace(ytdlpCommand)
	if ytdlp == "" {
		return fallback
	}
	resolved, err := exec.LookPath(ytdlp)
	if err != nil {
		return fallback
	}
	candidate := filepath.Join(filepath.Dir(resolved), executableName("ffmpeg"))
	if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
		return candidate
	}
	return fallback
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
