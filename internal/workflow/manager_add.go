package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"ytqueue/internal/logging"
	"ytqueue/internal/notifications"
	"ytqueue/internal/queue"
	"ytqueue/internal/services"
	"ytqueue/internal/ytdlp"
)

// AddRequest describes a URL submitted for download.
type AddRequest struct {
	URL               string
	Quality           string
	Format            string
	Folder            string
	CustomNamePrefix  string
	PlaylistItemLimit int
	AutoStart         bool
	SplitByChapters   bool
	ChapterTemplate   string
	SubtitleFormat    string
	SubtitleLanguage  string
	SubtitleMode      string
}

const liveStreamLayout = "%Y-%m-%d %H:%M:%S %z"

// Add resolves url and admits every video it expands to. Playlists and
// channels are expanded one level per extraction; nested URL entries are
// extracted in turn. Child failures do not stop the expansion and are
// reported together.
func (m *Manager) Add(ctx context.Context, req AddRequest) error {
	return m.add(ctx, req, req.URL, make(map[string]struct{}))
}

func (m *Manager) add(ctx context.Context, req AddRequest, url string, seen map[string]struct{}) error {
	logger := m.logger.With(logging.String(logging.FieldURL, url))
	logger.Info("adding url",
		logging.String("quality", req.Quality),
		logging.String("format", req.Format),
		logging.String("folder", req.Folder),
		logging.Int("playlist_item_limit", req.PlaylistItemLimit),
		logging.Bool("auto_start", req.AutoStart),
	)
	if _, ok := seen[url]; ok {
		logger.Info("recursion detected, skipping")
		return nil
	}
	seen[url] = struct{}{}

	entry, err := m.extractor.Extract(ctx, url)
	if err != nil {
		return err
	}
	return m.addEntry(ctx, req, entry, nil, seen)
}

// addEntry admits one node of the entry tree. links carries the
// playlist_*/channel_* fields stamped by the parent collection.
func (m *Manager) addEntry(ctx context.Context, req AddRequest, entry *ytdlp.Entry, links map[string]any, seen map[string]struct{}) error {
	if entry == nil {
		return userError(services.ErrExtraction, "Invalid/empty data was given.")
	}

	switch entry.Kind {
	case ytdlp.KindURL:
		return m.add(ctx, req, entry.URL, seen)
	case ytdlp.KindPlaylist, ytdlp.KindChannel:
		return m.addCollection(ctx, req, entry, seen)
	case ytdlp.KindVideo:
		return m.addVideo(ctx, req, entry, links)
	default:
		return userError(services.ErrExtraction, fmt.Sprintf("Unsupported resource %q", entry.Kind.String()))
	}
}

func (m *Manager) addCollection(ctx context.Context, req AddRequest, entry *ytdlp.Entry, seen map[string]struct{}) error {
	kind := entry.Kind.String()
	children := entry.Entries
	m.logger.Info(kind+" detected",
		logging.String(logging.FieldURL, entry.Key()),
		logging.Int("entries", len(children)),
	)
	digits := len(strconv.Itoa(len(children)))
	if req.PlaylistItemLimit > 0 && len(children) > req.PlaylistItemLimit {
		m.logger.Info("item limit set; processing only the first entries", logging.Int("limit", req.PlaylistItemLimit))
		children = children[:req.PlaylistItemLimit]
	}

	var errs []error
	for i := range children {
		child := children[i]
		child.Kind = ytdlp.KindVideo
		links := map[string]any{
			kind + "_index": fmt.Sprintf("%0*d", digits, i+1),
		}
		if entry.Kind == ytdlp.KindPlaylist {
			// A bare "channel" field would shadow yt-dlp's channel name.
			links["playlist"] = entry.ID
		}
		if entry.ID != "" {
			links[kind+"_id"] = entry.ID
		}
		if entry.Title != "" {
			links[kind+"_title"] = entry.Title
		}
		if entry.Uploader != "" {
			links[kind+"_uploader"] = entry.Uploader
		}
		if entry.UploaderID != "" {
			links[kind+"_uploader_id"] = entry.UploaderID
		}
		if err := m.addEntry(ctx, req, &child, links, seen); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}

func (m *Manager) addVideo(ctx context.Context, req AddRequest, entry *ytdlp.Entry, links map[string]any) error {
	key := entry.Key()
	if key == "" {
		return userError(services.ErrExtraction, "Invalid/empty data was given.")
	}

	m.tables.Lock()
	defer m.tables.Unlock()
	if m.stores.Queue.Exists(key) || m.stores.Pending.Exists(key) {
		m.logger.Debug("already queued", logging.String(logging.FieldURL, key))
		return nil
	}

	entryErr := entry.Message
	if entry.Upcoming() {
		start := time.Unix(entry.ReleaseTimestamp, 0)
		entryErr = "Live stream is scheduled to start at " + strftime.Format(liveStreamLayout, start)
	}

	title := entry.Title
	if title == "" {
		title = entry.ID
	}
	job := queue.NewJob(queue.Params{
		ID:                entry.ID,
		Title:             title,
		URL:               key,
		Quality:           req.Quality,
		Format:            req.Format,
		Folder:            req.Folder,
		CustomNamePrefix:  req.CustomNamePrefix,
		PlaylistItemLimit: req.PlaylistItemLimit,
		SplitByChapters:   req.SplitByChapters,
		ChapterTemplate:   req.ChapterTemplate,
		SubtitleFormat:    req.SubtitleFormat,
		SubtitleLanguage:  req.SubtitleLanguage,
		SubtitleMode:      req.SubtitleMode,
		Error:             entryErr,
		Entry:             entryInfo(entry, links),
	})

	if m.stores.Done.Exists(key) {
		if err := m.stores.Done.Delete(ctx, key); err != nil {
			return err
		}
		m.notify(ctx, notifications.EventCleared, func(ctx context.Context) error { return m.notifier.Cleared(ctx, key) })
	}
	return m.addDownload(ctx, job, req.AutoStart)
}

// addDownload persists job and either starts it or parks it in pending. The
// caller holds m.tables.
func (m *Manager) addDownload(ctx context.Context, job *queue.Job, autoStart bool) error {
	plan, err := m.plan(job, true)
	if err != nil {
		return err
	}
	if job.PlaylistItemLimit > 0 {
		m.logger.Info("playlist limit set", logging.String(logging.FieldURL, job.URL), logging.Int("limit", job.PlaylistItemLimit))
	}

	if autoStart {
		if err := m.stores.Queue.Put(ctx, job); err != nil {
			return err
		}
		m.launch(job, plan)
	} else {
		if err := m.stores.Pending.Put(ctx, job); err != nil {
			return err
		}
	}
	m.notify(ctx, notifications.EventAdded, func(ctx context.Context) error { return m.notifier.Added(ctx, job) })
	return nil
}

func entryInfo(entry *ytdlp.Entry, links map[string]any) *queue.EntryInfo {
	info := &queue.EntryInfo{
		ID:               entry.ID,
		Title:            entry.Title,
		WebpageURL:       entry.WebpageURL,
		Uploader:         entry.Uploader,
		UploaderID:       entry.UploaderID,
		Channel:          entry.Channel,
		ChannelID:        entry.ChannelID,
		Extractor:        entry.Extractor,
		LiveStatus:       entry.LiveStatus,
		IsLive:           entry.IsLive,
		ReleaseTimestamp: entry.ReleaseTimestamp,
	}
	if len(links) > 0 {
		info.Fields = make(map[string]any, len(links))
		for k, v := range links {
			info.Fields[k] = v
		}
	}
	return info
}

// userError tags msg with marker so that services.Message returns msg alone.
func userError(marker error, msg string) error {
	return services.Wrap(marker, "", "", msg, nil)
}

// joinErrors reports every child failure in one message, tagged with the
// marker of the first failure.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, services.Message(err))
	}
	return userError(markerOf(errs[0]), strings.Join(msgs, ", "))
}

func markerOf(err error) error {
	for _, marker := range []error{
		services.ErrConfiguration,
		services.ErrExtraction,
		services.ErrValidation,
		services.ErrNotFound,
		services.ErrStorage,
	} {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return services.ErrDownload
}
