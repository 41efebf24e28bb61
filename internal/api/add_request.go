package api

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"ytqueue/internal/config"
	"ytqueue/internal/formats"
	"ytqueue/internal/services"
	"ytqueue/internal/workflow"
)

// AddRequest is the body of POST /api/add. Nil optional fields take their
// configured or built-in defaults.
type AddRequest struct {
	URL               string  `json:"url"`
	Quality           string  `json:"quality"`
	Format            string  `json:"format,omitempty"`
	Folder            string  `json:"folder,omitempty"`
	CustomNamePrefix  string  `json:"custom_name_prefix,omitempty"`
	PlaylistItemLimit *int    `json:"playlist_item_limit,omitempty"`
	AutoStart         *bool   `json:"auto_start,omitempty"`
	SplitByChapters   *bool   `json:"split_by_chapters,omitempty"`
	ChapterTemplate   *string `json:"chapter_template,omitempty"`
	SubtitleFormat    *string `json:"subtitle_format,omitempty"`
	SubtitleLanguage  *string `json:"subtitle_language,omitempty"`
	SubtitleMode      *string `json:"subtitle_mode,omitempty"`
}

const (
	defaultSubtitleFormat   = "srt"
	defaultSubtitleLanguage = "en"
)

var subtitleLanguagePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{0,34}$`)

// Resolve applies defaults and validates the request. Failures carry
// services.ErrValidation.
func (r AddRequest) Resolve(cfg *config.Config) (workflow.AddRequest, error) {
	url := strings.TrimSpace(r.URL)
	quality := strings.TrimSpace(r.Quality)
	if url == "" || quality == "" {
		return workflow.AddRequest{}, invalid("url and quality are required")
	}

	out := workflow.AddRequest{
		URL:              url,
		Quality:          quality,
		Format:           strings.TrimSpace(r.Format),
		Folder:           r.Folder,
		CustomNamePrefix: r.CustomNamePrefix,
		AutoStart:        true,
		SubtitleFormat:   defaultSubtitleFormat,
		SubtitleLanguage: defaultSubtitleLanguage,
		SubtitleMode:     formats.SubtitlePreferManual,
	}
	if out.Format == "" {
		out.Format = formats.FormatAny
	}
	if cfg != nil {
		out.PlaylistItemLimit = cfg.Downloads.DefaultPlaylistItemLimit
		out.ChapterTemplate = cfg.Templates.Chapter
	}

	if r.PlaylistItemLimit != nil {
		if *r.PlaylistItemLimit < 0 {
			return workflow.AddRequest{}, invalid("playlist_item_limit must not be negative")
		}
		out.PlaylistItemLimit = *r.PlaylistItemLimit
	}
	if r.AutoStart != nil {
		out.AutoStart = *r.AutoStart
	}
	if r.SplitByChapters != nil {
		out.SplitByChapters = *r.SplitByChapters
	}
	if r.ChapterTemplate != nil {
		out.ChapterTemplate = *r.ChapterTemplate
	}
	if r.SubtitleFormat != nil {
		out.SubtitleFormat = strings.ToLower(strings.TrimSpace(*r.SubtitleFormat))
	}
	if r.SubtitleLanguage != nil {
		out.SubtitleLanguage = strings.TrimSpace(*r.SubtitleLanguage)
	}
	if r.SubtitleMode != nil {
		out.SubtitleMode = strings.TrimSpace(*r.SubtitleMode)
	}

	if out.CustomNamePrefix != "" && unsafeRelative(out.CustomNamePrefix) {
		return workflow.AddRequest{}, invalid(`custom_name_prefix must not contain ".." or start with a path separator`)
	}
	if out.ChapterTemplate != "" && unsafeRelative(out.ChapterTemplate) {
		return workflow.AddRequest{}, invalid(`chapter_template must not contain ".." or start with a path separator`)
	}
	if !slices.Contains(formats.SubtitleFormats, out.SubtitleFormat) {
		return workflow.AddRequest{}, invalid(fmt.Sprintf("subtitle_format must be one of %s", strings.Join(formats.SubtitleFormats, ", ")))
	}
	if !subtitleLanguagePattern.MatchString(out.SubtitleLanguage) {
		return workflow.AddRequest{}, invalid("subtitle_language must match pattern [A-Za-z0-9-] and be at most 35 characters")
	}
	if !slices.Contains(formats.SubtitleModes, out.SubtitleMode) {
		return workflow.AddRequest{}, invalid(fmt.Sprintf("subtitle_mode must be one of %s", strings.Join(formats.SubtitleModes, ", ")))
	}
	return out, nil
}

func unsafeRelative(value string) bool {
	return strings.Contains(value, "..") || strings.HasPrefix(value, "/") || strings.HasPrefix(value, `\`)
}

func invalid(msg string) error {
	return services.Wrap(services.ErrValidation, "", "", msg, nil)
}
