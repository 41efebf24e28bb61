package queue

import (
	"maps"
	"slices"
	"sync/atomic"
	"time"
)

// Status represents the lifecycle of a download job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
	StatusError     Status = "error"
	StatusCanceled  Status = "canceled"
)

// Terminal reports whether no further transitions follow this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusFinished, StatusError, StatusCanceled:
		return true
	default:
		return false
	}
}

// OutputFile is one artifact produced by a job beyond its main file.
type OutputFile struct {
	Filename string `json:"filename"`
	Size     *int64 `json:"size"`
}

// EntryInfo is the extractor metadata captured when the job was admitted.
type EntryInfo struct {
	ID               string         `json:"id,omitempty"`
	Title            string         `json:"title,omitempty"`
	WebpageURL       string         `json:"webpage_url,omitempty"`
	Uploader         string         `json:"uploader,omitempty"`
	UploaderID       string         `json:"uploader_id,omitempty"`
	Channel          string         `json:"channel,omitempty"`
	ChannelID        string         `json:"channel_id,omitempty"`
	Extractor        string         `json:"extractor,omitempty"`
	LiveStatus       string         `json:"live_status,omitempty"`
	IsLive           bool           `json:"is_live,omitempty"`
	ReleaseTimestamp int64          `json:"release_timestamp,omitempty"`
	Fields           map[string]any `json:"fields,omitempty"`
}

// Linked reports whether the entry carries a playlist_* or channel_* linkage
// field with the given name.
func (e *EntryInfo) Linked(field string) bool {
	if e == nil || e.Fields == nil {
		return false
	}
	_, ok := e.Fields[field]
	return ok
}

// Job is the persisted record of one download request.
type Job struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	URL               string     `json:"url"`
	Quality           string     `json:"quality"`
	Format            string     `json:"format"`
	Folder            string     `json:"folder"`
	CustomNamePrefix  string     `json:"custom_name_prefix"`
	PlaylistItemLimit int        `json:"playlist_item_limit"`
	SplitByChapters   bool       `json:"split_by_chapters"`
	ChapterTemplate   string     `json:"chapter_template"`
	SubtitleFormat    string     `json:"subtitle_format"`
	SubtitleLanguage  string     `json:"subtitle_language"`
	SubtitleMode      string     `json:"subtitle_mode"`
	Error             string     `json:"error,omitempty"`
	Entry             *EntryInfo `json:"entry,omitempty"`
	Timestamp         int64      `json:"timestamp"`

	Status        Status       `json:"status"`
	Phase         string       `json:"phase,omitempty"`
	Message       string       `json:"msg,omitempty"`
	Percent       *float64     `json:"percent"`
	Speed         *float64     `json:"speed"`
	ETA           *int64       `json:"eta"`
	Filename      string       `json:"filename,omitempty"`
	Size          *int64       `json:"size"`
	ChapterFiles  []OutputFile `json:"chapter_files"`
	SubtitleFiles []OutputFile `json:"subtitle_files"`
}

// Params carries the caller-controlled attributes of a new job.
type Params struct {
	ID                string
	Title             string
	URL               string
	Quality           string
	Format            string
	Folder            string
	CustomNamePrefix  string
	PlaylistItemLimit int
	SplitByChapters   bool
	ChapterTemplate   string
	SubtitleFormat    string
	SubtitleLanguage  string
	SubtitleMode      string
	Error             string
	Entry             *EntryInfo
}

// NewJob builds a pending job. A non-empty prefix is prepended to both the id
// and the title as "<prefix>.".
func NewJob(p Params) *Job {
	id, title := p.ID, p.Title
	if p.CustomNamePrefix != "" {
		id = p.CustomNamePrefix + "." + id
		title = p.CustomNamePrefix + "." + title
	}
	return &Job{
		ID:                id,
		Title:             title,
		URL:               p.URL,
		Quality:           p.Quality,
		Format:            p.Format,
		Folder:            p.Folder,
		CustomNamePrefix:  p.CustomNamePrefix,
		PlaylistItemLimit: p.PlaylistItemLimit,
		SplitByChapters:   p.SplitByChapters,
		ChapterTemplate:   p.ChapterTemplate,
		SubtitleFormat:    p.SubtitleFormat,
		SubtitleLanguage:  p.SubtitleLanguage,
		SubtitleMode:      p.SubtitleMode,
		Error:             p.Error,
		Entry:             p.Entry.Clone(),
		Timestamp:         NextTimestamp(),
		Status:            StatusPending,
		ChapterFiles:      []OutputFile{},
		SubtitleFiles:     []OutputFile{},
	}
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Entry = j.Entry.Clone()
	out.Percent = clonePtr(j.Percent)
	out.Speed = clonePtr(j.Speed)
	out.ETA = clonePtr(j.ETA)
	out.Size = clonePtr(j.Size)
	out.ChapterFiles = cloneFiles(j.ChapterFiles)
	out.SubtitleFiles = cloneFiles(j.SubtitleFiles)
	return &out
}

// normalize restores the always-present list fields after decoding records
// written without them.
func (j *Job) normalize() {
	if j.ChapterFiles == nil {
		j.ChapterFiles = []OutputFile{}
	}
	if j.SubtitleFiles == nil {
		j.SubtitleFiles = []OutputFile{}
	}
	if j.Status == "" {
		j.Status = StatusPending
	}
}

// Clone returns a deep copy of the entry metadata.
func (e *EntryInfo) Clone() *EntryInfo {
	if e == nil {
		return nil
	}
	out := *e
	if e.Fields != nil {
		out.Fields = maps.Clone(e.Fields)
	}
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFiles(files []OutputFile) []OutputFile {
	out := make([]OutputFile, 0, len(files))
	for _, f := range files {
		out = append(out, OutputFile{Filename: f.Filename, Size: clonePtr(f.Size)})
	}
	return out
}

var lastTimestamp atomic.Int64

// NextTimestamp returns the current time in unix nanoseconds, bumped so that
// successive calls in this process are strictly increasing.
func NextTimestamp() int64 {
	for {
		now := time.Now().UnixNano()
		prev := lastTimestamp.Load()
		if now <= prev {
			now = prev + 1
		}
		if lastTimestamp.CompareAndSwap(prev, now) {
			return now
		}
	}
}

// DatabaseHealth describes the state of one job database.
type DatabaseHealth struct {
	Name             string
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TableExists      bool
	IntegrityCheck   bool
	TotalItems       int
	BackupExists     bool
	Error            string
}

// sortByTimestamp orders jobs by admission time.
func sortByTimestamp(jobs []*Job) {
	slices.SortStableFunc(jobs, func(a, b *Job) int {
		switch {
		case a.Timestamp < b.Timestamp:
			return -1
		case a.Timestamp > b.Timestamp:
			return 1
		default:
			return 0
		}
	})
}
