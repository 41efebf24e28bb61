package ytdlp

import (
	"encoding/json"
	"sort"
	"strings"
)

// Event is one message relayed from a worker process. The set of
// implementations is closed.
type Event interface {
	isEvent()
}

// ProgressEvent carries the whitelisted fields of a download progress report.
type ProgressEvent struct {
	Status             string
	TmpFilename        string
	Filename           string
	DownloadedBytes    *float64
	TotalBytes         *float64
	TotalBytesEstimate *float64
	Speed              *float64
	ETA                *float64
}

// FileEvent reports the final location of the main output file.
type FileEvent struct {
	Path string
}

// ChapterFileEvent reports one file written by chapter splitting.
type ChapterFileEvent struct {
	Path string
}

// SubtitleFileEvent reports one downloaded caption track.
type SubtitleFileEvent struct {
	Language string
	Path     string
}

func (ProgressEvent) isEvent()     {}
func (FileEvent) isEvent()         {}
func (ChapterFileEvent) isEvent()  {}
func (SubtitleFileEvent) isEvent() {}

// Line prefixes emitted through --progress-template and --print.
const (
	markerPrefix    = "ytq:"
	markerProgress  = "ytq:progress "
	markerFile      = "ytq:file "
	markerChapters  = "ytq:chapters "
	markerSubtitles = "ytq:subtitles "
)

type progressPayload struct {
	Status             string   `json:"status"`
	TmpFilename        string   `json:"tmpfilename"`
	Filename           string   `json:"filename"`
	DownloadedBytes    *float64 `json:"downloaded_bytes"`
	TotalBytes         *float64 `json:"total_bytes"`
	TotalBytesEstimate *float64 `json:"total_bytes_estimate"`
	Speed              *float64 `json:"speed"`
	ETA                *float64 `json:"eta"`
}

// ParseLine decodes one marked stdout line into events. Unmarked or
// malformed lines yield nothing.
func ParseLine(line string) []Event {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, markerPrefix) {
		return nil
	}
	switch {
	case strings.HasPrefix(line, markerProgress):
		var payload progressPayload
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, markerProgress)), &payload); err != nil {
			return nil
		}
		return []Event{ProgressEvent{
			Status:             payload.Status,
			TmpFilename:        payload.TmpFilename,
			Filename:           payload.Filename,
			DownloadedBytes:    payload.DownloadedBytes,
			TotalBytes:         payload.TotalBytes,
			TotalBytesEstimate: payload.TotalBytesEstimate,
			Speed:              payload.Speed,
			ETA:                payload.ETA,
		}}
	case strings.HasPrefix(line, markerFile):
		var path string
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, markerFile)), &path); err != nil || path == "" {
			return nil
		}
		return []Event{FileEvent{Path: path}}
	case strings.HasPrefix(line, markerChapters):
		var chapters []struct {
			Filepath string `json:"filepath"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, markerChapters)), &chapters); err != nil {
			return nil
		}
		var events []Event
		for _, chapter := range chapters {
			if chapter.Filepath != "" {
				events = append(events, ChapterFileEvent{Path: chapter.Filepath})
			}
		}
		return events
	case strings.HasPrefix(line, markerSubtitles):
		var subtitles map[string]struct {
			Filepath string `json:"filepath"`
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, markerSubtitles)), &subtitles); err != nil {
			return nil
		}
		langs := make([]string, 0, len(subtitles))
		for lang := range subtitles {
			langs = append(langs, lang)
		}
		sort.Strings(langs)
		var events []Event
		for _, lang := range langs {
			if path := subtitles[lang].Filepath; path != "" {
				events = append(events, SubtitleFileEvent{Language: lang, Path: path})
			}
		}
		return events
	default:
		return nil
	}
}

// reportingArgs makes yt-dlp print the marked lines ParseLine understands.
func reportingArgs(chapters, subtitles bool) []string {
	args := []string{
		"--newline",
		"--progress",
		"--progress-template", "download:" + markerProgress + "%(progress)j",
		"--print", "after_move:" + markerFile + "%(filepath)j",
	}
	if chapters {
		args = append(args, "--print", "after_move:"+markerChapters+"%(chapters)j")
	}
	if subtitles {
		args = append(args, "--print", "after_move:"+markerSubtitles+"%(requested_subtitles)j")
	}
	return args
}
