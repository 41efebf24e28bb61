package api

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"ytqueue/internal/config"
	"ytqueue/internal/services"
)

// ListCustomDirs walks the download roots and returns every directory below
// them, relative to the root, minus those matching the exclude pattern. The
// audio list repeats the video list when both roots are the same directory.
func ListCustomDirs(cfg *config.Config) (CustomDirsResponse, error) {
	if cfg == nil {
		return CustomDirsResponse{}, services.Wrap(services.ErrConfiguration, "api", "custom dirs", "configuration unavailable", nil)
	}
	var exclude *regexp.Regexp
	if expr := strings.TrimSpace(cfg.Downloads.CustomDirsExcludeRegex); expr != "" {
		compiled, err := regexp.Compile(expr)
		if err != nil {
			return CustomDirsResponse{}, services.Wrap(services.ErrConfiguration, "api", "custom dirs", "invalid custom_dirs_exclude_regex", err)
		}
		exclude = compiled
	}

	downloadRoot := cfg.DownloadRoot(false)
	audioRoot := cfg.DownloadRoot(true)
	download, err := recursiveDirs(downloadRoot, exclude)
	if err != nil {
		return CustomDirsResponse{}, err
	}
	audio := download
	if filepath.Clean(audioRoot) != filepath.Clean(downloadRoot) {
		if audio, err = recursiveDirs(audioRoot, exclude); err != nil {
			return CustomDirsResponse{}, err
		}
	}
	return CustomDirsResponse{DownloadDir: download, AudioDownloadDir: audio}, nil
}

func recursiveDirs(root string, exclude *regexp.Regexp) ([]string, error) {
	dirs := []string{}
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return dirs, nil
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped; the root itself must be readable.
			if path == root {
				return err
			}
			return fs.SkipDir
		}
		if !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			rel = ""
		}
		rel = filepath.ToSlash(rel)
		if exclude != nil && exclude.MatchString(rel) {
			return nil
		}
		dirs = append(dirs, rel)
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "api", "custom dirs", root, err)
	}
	return dirs, nil
}
