package ytdlp

import (
	"encoding/json"
	"fmt"
	"strings"

	"ytqueue/internal/services"
)

// EntryKind classifies a node of the extractor's entry tree.
type EntryKind int

const (
	KindVideo EntryKind = iota + 1
	KindPlaylist
	KindChannel
	KindURL
)

func (k EntryKind) String() string {
	switch k {
	case KindVideo:
		return "video"
	case KindPlaylist:
		return "playlist"
	case KindChannel:
		return "channel"
	case KindURL:
		return "url"
	default:
		return fmt.Sprintf("EntryKind(%d)", int(k))
	}
}

// Entry is one node of the metadata tree yt-dlp returns for a URL.
type Entry struct {
	Kind             EntryKind
	ID               string
	Title            string
	URL              string
	WebpageURL       string
	Uploader         string
	UploaderID       string
	Channel          string
	ChannelID        string
	Extractor        string
	LiveStatus       string
	IsLive           bool
	ReleaseTimestamp int64
	// Message is the note some extractors attach to an entry they could not
	// fully resolve.
	Message          string
	PlaylistCount    int
	Entries          []Entry
}

// Key returns the canonical URL used to de-duplicate the entry.
func (e Entry) Key() string {
	if e.WebpageURL != "" {
		return e.WebpageURL
	}
	return e.URL
}

// Upcoming reports whether the entry is a live stream that has not started yet.
func (e Entry) Upcoming() bool {
	return e.LiveStatus == "is_upcoming" && e.ReleaseTimestamp > 0
}

type rawEntry struct {
	Type             string      `json:"_type"`
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	URL              string      `json:"url"`
	WebpageURL       string      `json:"webpage_url"`
	Uploader         string      `json:"uploader"`
	UploaderID       string      `json:"uploader_id"`
	Channel          string      `json:"channel"`
	ChannelID        string      `json:"channel_id"`
	ExtractorKey     string      `json:"extractor_key"`
	IEKey            string      `json:"ie_key"`
	LiveStatus       string      `json:"live_status"`
	IsLive           bool        `json:"is_live"`
	ReleaseTimestamp json.Number `json:"release_timestamp"`
	Msg              string      `json:"msg"`
	PlaylistCount    int         `json:"playlist_count"`
	Entries          []*rawEntry `json:"entries"`
}

// ParseEntry decodes the JSON document printed by "yt-dlp -J".
func ParseEntry(data []byte) (*Entry, error) {
	var raw rawEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, services.Wrap(services.ErrExtraction, "ytdlp", "decode metadata", "", err)
	}
	entry, err := raw.toEntry()
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *rawEntry) toEntry() (Entry, error) {
	kind, err := r.kind()
	if err != nil {
		return Entry{}, err
	}
	extractor := r.ExtractorKey
	if extractor == "" {
		extractor = r.IEKey
	}
	entry := Entry{
		Kind:          kind,
		ID:            r.ID,
		Title:         r.Title,
		URL:           r.URL,
		WebpageURL:    r.WebpageURL,
		Uploader:      r.Uploader,
		UploaderID:    r.UploaderID,
		Channel:       r.Channel,
		ChannelID:     r.ChannelID,
		Extractor:     extractor,
		LiveStatus:    r.LiveStatus,
		IsLive:        r.IsLive,
		Message:       r.Msg,
		PlaylistCount: r.PlaylistCount,
	}
	if ts, err := r.ReleaseTimestamp.Float64(); err == nil {
		entry.ReleaseTimestamp = int64(ts)
	}
	if kind == KindPlaylist || kind == KindChannel {
		entry.Entries = make([]Entry, 0, len(r.Entries))
		for _, child := range r.Entries {
			// Flat extraction yields null for unavailable items.
			if child == nil {
				continue
			}
			converted, err := child.toEntry()
			if err != nil {
				return Entry{}, err
			}
			entry.Entries = append(entry.Entries, converted)
		}
	}
	return entry, nil
}

func (r *rawEntry) kind() (EntryKind, error) {
	switch r.Type {
	case "", "video":
		return KindVideo, nil
	case "url", "url_transparent":
		return KindURL, nil
	case "playlist", "multi_video":
		if r.isChannel() {
			return KindChannel, nil
		}
		return KindPlaylist, nil
	default:
		return 0, services.Wrap(services.ErrExtraction, "ytdlp", "classify entry", fmt.Sprintf("unsupported resource %q", r.Type), nil)
	}
}

// isChannel recognises playlists that list a channel's uploads: the playlist
// id is the channel id, or the page is a channel handle or channel path.
func (r *rawEntry) isChannel() bool {
	if r.ChannelID != "" && r.ID == r.ChannelID {
		return true
	}
	page := strings.ToLower(r.WebpageURL)
	for _, marker := range []string{"/@", "/channel/", "/c/", "/user/"} {
		if strings.Contains(page, marker) {
			return true
		}
	}
	return false
}
