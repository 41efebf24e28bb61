package formats

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"ytqueue/internal/services"
)

// PostprocessorKind names a yt-dlp post-processing step.
type PostprocessorKind string

const (
	ExtractAudio        PostprocessorKind = "FFmpegExtractAudio"
	ThumbnailsConvertor PostprocessorKind = "FFmpegThumbnailsConvertor"
	EmbedMetadata       PostprocessorKind = "FFmpegMetadata"
	EmbedThumbnail      PostprocessorKind = "EmbedThumbnail"
	SubtitlesConvertor  PostprocessorKind = "FFmpegSubtitlesConvertor"
	SplitChapters       PostprocessorKind = "FFmpegSplitChapters"
)

// Postprocessor is one post-processing directive applied after the raw download.
type Postprocessor struct {
	Kind             PostprocessorKind `json:"key"`
	PreferredCodec   string            `json:"preferredcodec,omitempty"`
	PreferredQuality string            `json:"preferredquality,omitempty"`
	Format           string            `json:"format,omitempty"`
	When             string            `json:"when,omitempty"`
}

// Options is the per-job option set handed to the download backend.
type Options struct {
	Format             string          `json:"format,omitempty"`
	SkipDownload       bool            `json:"skip_download,omitempty"`
	WriteThumbnail     bool            `json:"writethumbnail,omitempty"`
	WriteSubtitles     bool            `json:"writesubtitles,omitempty"`
	WriteAutomaticSubs bool            `json:"writeautomaticsub,omitempty"`
	SubtitleLangs      []string        `json:"subtitleslangs,omitempty"`
	SubtitlesFormat    string          `json:"subtitlesformat,omitempty"`
	MergeOutputFormat  string          `json:"merge_output_format,omitempty"`
	Postprocessors     []Postprocessor `json:"postprocessors,omitempty"`
}

// Subtitle fetch policies.
const (
	SubtitleAutoOnly     = "auto_only"
	SubtitleManualOnly   = "manual_only"
	SubtitlePreferManual = "prefer_manual"
	SubtitlePreferAuto   = "prefer_auto"
)

// SubtitleModes lists every accepted subtitle mode.
var SubtitleModes = []string{SubtitleAutoOnly, SubtitleManualOnly, SubtitlePreferManual, SubtitlePreferAuto}

// SubtitleFormats lists the subtitle formats a caller may request. txt is
// derived from srt after download.
var SubtitleFormats = []string{"srt", "txt", "vtt", "ttml", "sbv", "scc", "dfxp"}

// convertibleSubtitleFormats are the targets ffmpeg's subtitle convertor supports.
var convertibleSubtitleFormats = []string{"ass", "lrc", "srt", "vtt"}

// Params carries the subtitle and chapter knobs of a job.
type Params struct {
	SubtitleFormat   string
	SubtitleLanguage string
	SubtitleMode     string
	SplitChapters    bool
}

// ResolveOptions builds the option set for a job. Directives derived from the
// request are appended after any directives already present in base.
func ResolveOptions(format, quality string, base Options, params Params) (Options, error) {
	selector, err := Resolve(format, quality)
	if err != nil {
		return Options{}, err
	}

	opts := base.clone()
	opts.Format = selector
	var added []Postprocessor

	if IsAudioFormat(format) {
		preferred := quality
		if quality == QualityBest {
			preferred = "0"
		}
		added = append(added, Postprocessor{Kind: ExtractAudio, PreferredCodec: format, PreferredQuality: preferred})
		if format != "wav" && !opts.WriteThumbnail {
			opts.WriteThumbnail = true
			added = append(added,
				Postprocessor{Kind: ThumbnailsConvertor, Format: "jpg", When: "before_dl"},
				Postprocessor{Kind: EmbedMetadata},
				Postprocessor{Kind: EmbedThumbnail},
			)
		}
	}

	switch format {
	case FormatThumbnail:
		opts.SkipDownload = true
		opts.WriteThumbnail = true
		added = append(added, Postprocessor{Kind: ThumbnailsConvertor, Format: "jpg", When: "before_dl"})
	case FormatCaptions:
		captionOpts, err := captionPolicy(params)
		if err != nil {
			return Options{}, err
		}
		opts.SkipDownload = true
		opts.WriteSubtitles = captionOpts.WriteSubtitles
		opts.WriteAutomaticSubs = captionOpts.WriteAutomaticSubs
		opts.SubtitleLangs = captionOpts.SubtitleLangs
		opts.SubtitlesFormat = captionOpts.SubtitlesFormat
		if slices.Contains(convertibleSubtitleFormats, captionOpts.SubtitlesFormat) {
			added = append(added, Postprocessor{Kind: SubtitlesConvertor, Format: captionOpts.SubtitlesFormat, When: "before_dl"})
		}
	case FormatMP4:
		opts.MergeOutputFormat = "mp4"
	}

	if params.SplitChapters {
		added = append(added, Postprocessor{Kind: SplitChapters})
	}

	opts.Postprocessors = append(opts.Postprocessors, added...)
	return opts, nil
}

func captionPolicy(params Params) (Options, error) {
	subFormat := strings.ToLower(strings.TrimSpace(params.SubtitleFormat))
	if subFormat == "" || subFormat == "txt" {
		subFormat = "srt"
	}
	lang := strings.TrimSpace(params.SubtitleLanguage)
	if lang == "" {
		lang = "en"
	}
	mode := strings.TrimSpace(params.SubtitleMode)
	if mode == "" {
		mode = SubtitlePreferManual
	}

	out := Options{SubtitlesFormat: subFormat}
	switch mode {
	case SubtitleManualOnly:
		out.WriteSubtitles = true
		out.SubtitleLangs = []string{lang}
	case SubtitleAutoOnly:
		out.WriteAutomaticSubs = true
		out.SubtitleLangs = []string{lang + "-orig", lang}
	case SubtitlePreferAuto:
		out.WriteSubtitles = true
		out.WriteAutomaticSubs = true
		out.SubtitleLangs = []string{lang + "-orig", lang}
	case SubtitlePreferManual:
		out.WriteSubtitles = true
		out.WriteAutomaticSubs = true
		out.SubtitleLangs = []string{lang, lang + "-orig"}
	default:
		return Options{}, services.Wrap(services.ErrConfiguration, "formats", "captions", fmt.Sprintf("unknown subtitle mode %q", mode), nil)
	}
	return out, nil
}

func (o Options) clone() Options {
	out := o
	out.SubtitleLangs = slices.Clone(o.SubtitleLangs)
	out.Postprocessors = slices.Clone(o.Postprocessors)
	return out
}

// Args translates the option set into yt-dlp command-line flags.
func (o Options) Args() []string {
	var args []string
	if o.Format != "" {
		args = append(args, "-f", o.Format)
	}
	if o.SkipDownload {
		args = append(args, "--skip-download")
	}
	if o.WriteThumbnail {
		args = append(args, "--write-thumbnail")
	}
	if o.WriteSubtitles {
		args = append(args, "--write-subs")
	}
	if o.WriteAutomaticSubs {
		args = append(args, "--write-auto-subs")
	}
	if len(o.SubtitleLangs) > 0 {
		args = append(args, "--sub-langs", strings.Join(o.SubtitleLangs, ","))
	}
	if o.SubtitlesFormat != "" {
		args = append(args, "--sub-format", o.SubtitlesFormat)
	}
	if o.MergeOutputFormat != "" {
		args = append(args, "--merge-output-format", o.MergeOutputFormat)
	}
	for _, pp := range o.Postprocessors {
		args = append(args, pp.args()...)
	}
	return args
}

func (p Postprocessor) args() []string {
	switch p.Kind {
	case ExtractAudio:
		args := []string{"-x"}
		if p.PreferredCodec != "" {
			args = append(args, "--audio-format", p.PreferredCodec)
		}
		if q := audioQualityArg(p.PreferredQuality); q != "" {
			args = append(args, "--audio-quality", q)
		}
		return args
	case ThumbnailsConvertor:
		return []string{"--convert-thumbnails", p.Format}
	case EmbedMetadata:
		return []string{"--embed-metadata"}
	case EmbedThumbnail:
		return []string{"--embed-thumbnail"}
	case SubtitlesConvertor:
		return []string{"--convert-subs", p.Format}
	case SplitChapters:
		return []string{"--split-chapters"}
	default:
		return nil
	}
}

// audioQualityArg maps a preferred quality onto --audio-quality. Values up to
// 10 are VBR levels; larger numbers are bitrates in kbps.
func audioQualityArg(q string) string {
	q = strings.TrimSpace(q)
	if q == "" {
		return ""
	}
	if n, err := strconv.Atoi(q); err == nil && n > 10 {
		return q + "K"
	}
	return q
}
