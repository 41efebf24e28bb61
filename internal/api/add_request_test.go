package api_test

import (
	"errors"
	"strings"
	"testing"

	"ytqueue/internal/api"
	"ytqueue/internal/services"
	"ytqueue/internal/testsupport"
)

func ptr[T any](v T) *T { return &v }

func TestAddRequestDefaults(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Downloads.DefaultPlaylistItemLimit = 25

	got, err := api.AddRequest{URL: " https://example.com/v ", Quality: "best"}.Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.URL != "https://example.com/v" {
		t.Fatalf("url = %q", got.URL)
	}
	if got.Format != "any" {
		t.Fatalf("format = %q, want any", got.Format)
	}
	if !got.AutoStart {
		t.Fatal("expected auto start by default")
	}
	if got.PlaylistItemLimit != 25 {
		t.Fatalf("playlist limit = %d, want 25", got.PlaylistItemLimit)
	}
	if got.ChapterTemplate != cfg.Templates.Chapter {
		t.Fatalf("chapter template = %q, want %q", got.ChapterTemplate, cfg.Templates.Chapter)
	}
	if got.SubtitleFormat != "srt" || got.SubtitleLanguage != "en" || got.SubtitleMode != "prefer_manual" {
		t.Fatalf("subtitle defaults = %q %q %q", got.SubtitleFormat, got.SubtitleLanguage, got.SubtitleMode)
	}
}

func TestAddRequestOverrides(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	req := api.AddRequest{
		URL:               "https://example.com/v",
		Quality:           "720",
		Format:            "mp4",
		Folder:            "music",
		CustomNamePrefix:  "tag",
		PlaylistItemLimit: ptr(0),
		AutoStart:         ptr(false),
		SplitByChapters:   ptr(true),
		ChapterTemplate:   ptr("%(section_title)s.%(ext)s"),
		SubtitleFormat:    ptr(" VTT "),
		SubtitleLanguage:  ptr("pt-BR"),
		SubtitleMode:      ptr("auto_only"),
	}
	got, err := req.Resolve(cfg)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.AutoStart || !got.SplitByChapters {
		t.Fatalf("flags = auto %v split %v", got.AutoStart, got.SplitByChapters)
	}
	if got.SubtitleFormat != "vtt" || got.SubtitleLanguage != "pt-BR" || got.SubtitleMode != "auto_only" {
		t.Fatalf("subtitles = %q %q %q", got.SubtitleFormat, got.SubtitleLanguage, got.SubtitleMode)
	}
	if got.Folder != "music" || got.CustomNamePrefix != "tag" || got.Quality != "720" {
		t.Fatalf("unexpected resolve result %+v", got)
	}
}

func TestAddRequestValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := func() api.AddRequest {
		return api.AddRequest{URL: "https://example.com/v", Quality: "best"}
	}
	cases := []struct {
		name   string
		mutate func(*api.AddRequest)
		want   string
	}{
		{"missing url", func(r *api.AddRequest) { r.URL = "" }, "url and quality are required"},
		{"missing quality", func(r *api.AddRequest) { r.Quality = " " }, "url and quality are required"},
		{"prefix traversal", func(r *api.AddRequest) { r.CustomNamePrefix = "../x" }, "custom_name_prefix"},
		{"prefix absolute", func(r *api.AddRequest) { r.CustomNamePrefix = "/x" }, "custom_name_prefix"},
		{"chapter backslash", func(r *api.AddRequest) { r.ChapterTemplate = ptr(`\x`) }, "chapter_template"},
		{"subtitle format", func(r *api.AddRequest) { r.SubtitleFormat = ptr("ass") }, "subtitle_format must be one of"},
		{"subtitle language", func(r *api.AddRequest) { r.SubtitleLanguage = ptr("-en") }, "subtitle_language"},
		{"subtitle language length", func(r *api.AddRequest) { r.SubtitleLanguage = ptr(strings.Repeat("a", 36)) }, "subtitle_language"},
		{"subtitle mode", func(r *api.AddRequest) { r.SubtitleMode = ptr("always") }, "subtitle_mode must be one of"},
		{"negative limit", func(r *api.AddRequest) { r.PlaylistItemLimit = ptr(-1) }, "playlist_item_limit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := base()
			tc.mutate(&req)
			_, err := req.Resolve(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("error %v is not a validation error", err)
			}
			if msg := services.Message(err); !strings.Contains(msg, tc.want) {
				t.Fatalf("message %q does not mention %q", msg, tc.want)
			}
		})
	}
}
