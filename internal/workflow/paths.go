package workflow

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"ytqueue/internal/fileutil"
	"ytqueue/internal/formats"
	"ytqueue/internal/outtmpl"
	"ytqueue/internal/queue"
	"ytqueue/internal/services"
	"ytqueue/internal/ytdlp"
)

// downloadDir resolves the directory a job writes into. With create set a
// missing custom folder is created when the configuration allows it.
func (m *Manager) downloadDir(quality, format, folder string, create bool) (string, error) {
	base := m.cfg.DownloadRoot(formats.IsAudioOnly(format, quality))
	if folder == "" {
		return base, nil
	}
	if !m.cfg.Downloads.CustomDirs {
		return "", userError(services.ErrConfiguration,
			"A folder for the download was specified but downloads.custom_dirs is not enabled in the configuration.")
	}

	realBase, err := realPath(base)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "workflow", "resolve download root", base, err)
	}
	target, err := realPath(filepath.Join(base, folder))
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "workflow", "resolve folder", folder, err)
	}
	if !fileutil.Within(realBase, target) {
		return "", userError(services.ErrConfiguration,
			fmt.Sprintf("Folder %q must resolve inside the base download directory %q", folder, realBase))
	}

	info, err := os.Stat(target)
	switch {
	case err == nil && info.IsDir():
		return target, nil
	case err != nil && !errors.Is(err, fs.ErrNotExist):
		return "", services.Wrap(services.ErrConfiguration, "workflow", "stat folder", folder, err)
	}
	if !create {
		return target, nil
	}
	if !m.cfg.Downloads.CreateCustomDirs {
		return "", userError(services.ErrConfiguration, fmt.Sprintf(
			"Folder %q for download does not exist inside base directory %q, and downloads.create_custom_dirs is not enabled in the configuration.",
			folder, realBase))
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "workflow", "create folder", folder, err)
	}
	return target, nil
}

// realPath resolves symlinks in the longest existing prefix of path and
// appends the remainder unchanged.
func realPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	existing, rest := abs, ""
	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(existing), rest)
		existing = parent
	}
}

// outputTemplate picks the yt-dlp naming template for job and fills in the
// collection fields recorded at admission.
func (m *Manager) outputTemplate(job *queue.Job) string {
	tmpl := m.cfg.Templates.Output
	if job.CustomNamePrefix != "" {
		tmpl = job.CustomNamePrefix + "." + tmpl
	}
	entry := job.Entry
	switch {
	case entry.Linked("playlist"):
		if m.cfg.Templates.Playlist != "" {
			tmpl = m.cfg.Templates.Playlist
		}
		tmpl = outtmpl.SubstitutePrefixed(tmpl, "playlist", entry.Fields)
	case entry.Linked("channel_index"):
		if m.cfg.Templates.Channel != "" {
			tmpl = m.cfg.Templates.Channel
		}
		tmpl = outtmpl.SubstitutePrefixed(tmpl, "channel", entry.Fields)
	}
	return tmpl
}

func (m *Manager) chapterTemplate(job *queue.Job) string {
	if job.SplitByChapters && job.ChapterTemplate != "" {
		return job.ChapterTemplate
	}
	return m.cfg.Templates.Chapter
}

// plan builds the worker request for job.
func (m *Manager) plan(job *queue.Job, create bool) (ytdlp.Request, error) {
	dir, err := m.downloadDir(job.Quality, job.Format, job.Folder, create)
	if err != nil {
		return ytdlp.Request{}, err
	}
	opts, err := formats.ResolveOptions(job.Format, job.Quality, formats.Options{}, formats.Params{
		SubtitleFormat:   job.SubtitleFormat,
		SubtitleLanguage: job.SubtitleLanguage,
		SubtitleMode:     job.SubtitleMode,
		SplitChapters:    job.SplitByChapters,
	})
	if err != nil {
		return ytdlp.Request{}, err
	}
	return ytdlp.Request{
		URL:             job.URL,
		Options:         opts,
		HomeDir:         dir,
		TempDir:         m.cfg.Paths.TempDir,
		OutputTemplate:  m.outputTemplate(job),
		ChapterTemplate: m.chapterTemplate(job),
		PlaylistEnd:     job.PlaylistItemLimit,
	}, nil
}
