package ytdlp_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"ytqueue/internal/formats"
	"ytqueue/internal/services"
	"ytqueue/internal/testsupport"
	"ytqueue/internal/ytdlp"
)

func newClient(t *testing.T, script string) *ytdlp.Client {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithYTDLPScript(script))
	client, err := ytdlp.New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestExtractPlaylist(t *testing.T) {
	client := newClient(t, `cat <<'JSON'
{"_type":"playlist","id":"PL1","title":"Mix","uploader":"Someone","uploader_id":"@someone",
 "webpage_url":"https://www.youtube.com/playlist?list=PL1",
 "entries":[{"_type":"url","id":"a","title":"A","url":"https://youtu.be/a"},null,{"_type":"url","id":"b","title":"B","url":"https://youtu.be/b"}]}
JSON
`)
	entry, err := client.Extract(context.Background(), "https://www.youtube.com/playlist?list=PL1")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if entry.Kind != ytdlp.KindPlaylist || entry.ID != "PL1" || entry.Uploader != "Someone" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if len(entry.Entries) != 2 || entry.Entries[1].URL != "https://youtu.be/b" || entry.Entries[1].Kind != ytdlp.KindURL {
		t.Fatalf("unexpected children %+v", entry.Entries)
	}
}

func TestExtractFailureIsExtractionError(t *testing.T) {
	client := newClient(t, "echo 'WARNING: something' >&2\necho 'ERROR: [generic] Unsupported URL' >&2\nexit 1\n")
	_, err := client.Extract(context.Background(), "https://nope")
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected extraction error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Unsupported URL") {
		t.Fatalf("expected backend message in error, got %v", err)
	}
}

func TestParseEntryKinds(t *testing.T) {
	cases := []struct {
		doc  string
		want ytdlp.EntryKind
	}{
		{`{"id":"x","title":"t"}`, ytdlp.KindVideo},
		{`{"_type":"video","id":"x"}`, ytdlp.KindVideo},
		{`{"_type":"url","url":"https://x"}`, ytdlp.KindURL},
		{`{"_type":"url_transparent","url":"https://x"}`, ytdlp.KindURL},
		{`{"_type":"playlist","id":"PL"}`, ytdlp.KindPlaylist},
		{`{"_type":"playlist","id":"UC1","channel_id":"UC1"}`, ytdlp.KindChannel},
		{`{"_type":"playlist","id":"videos","webpage_url":"https://www.youtube.com/@someone/videos"}`, ytdlp.KindChannel},
	}
	for _, tc := range cases {
		entry, err := ytdlp.ParseEntry([]byte(tc.doc))
		if err != nil {
			t.Fatalf("ParseEntry(%s): %v", tc.doc, err)
		}
		if entry.Kind != tc.want {
			t.Fatalf("ParseEntry(%s) kind = %v, want %v", tc.doc, entry.Kind, tc.want)
		}
	}

	if _, err := ytdlp.ParseEntry([]byte(`{"_type":"compat_list"}`)); !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected unsupported type to fail, got %v", err)
	}
}

func TestParseEntryUpcomingLive(t *testing.T) {
	entry, err := ytdlp.ParseEntry([]byte(`{"id":"x","live_status":"is_upcoming","release_timestamp":1700000000}`))
	if err != nil {
		t.Fatalf("ParseEntry: %v", err)
	}
	if !entry.Upcoming() || entry.ReleaseTimestamp != 1700000000 {
		t.Fatalf("expected upcoming live entry, got %+v", entry)
	}
}

func TestParseEntryCarriesExtractorMessage(t *testing.T) {
	entry, err := ytdlp.ParseEntry([]byte(`{"id":"x","msg":"Premieres in 2 hours"}`))
	if err != nil {
		t.Fatalf("ParseEntry: %v", err)
	}
	if entry.Message != "Premieres in 2 hours" {
		t.Fatalf("message = %q", entry.Message)
	}
}

func TestParseLine(t *testing.T) {
	progress := ytdlp.ParseLine(`ytq:progress {"status":"downloading","downloaded_bytes":50,"total_bytes":200,"speed":1024.5,"eta":3,"tmpfilename":"/tmp/a.part","filename":"/dl/a.mp4"}`)
	if len(progress) != 1 {
		t.Fatalf("expected one progress event, got %v", progress)
	}
	p, ok := progress[0].(ytdlp.ProgressEvent)
	if !ok || p.Status != "downloading" || *p.DownloadedBytes != 50 || *p.TotalBytes != 200 || p.TotalBytesEstimate != nil || p.TmpFilename != "/tmp/a.part" {
		t.Fatalf("unexpected progress %+v", progress[0])
	}

	file := ytdlp.ParseLine(`ytq:file "/dl/a.mp4"`)
	if len(file) != 1 || file[0] != (ytdlp.FileEvent{Path: "/dl/a.mp4"}) {
		t.Fatalf("unexpected file event %v", file)
	}

	chapters := ytdlp.ParseLine(`ytq:chapters [{"title":"one","filepath":"/dl/a - 01.mp4"},{"title":"two"}]`)
	if len(chapters) != 1 || chapters[0] != (ytdlp.ChapterFileEvent{Path: "/dl/a - 01.mp4"}) {
		t.Fatalf("unexpected chapter events %v", chapters)
	}

	subs := ytdlp.ParseLine(`ytq:subtitles {"en":{"ext":"srt","filepath":"/dl/a.en.srt"},"de":{"ext":"srt","filepath":"/dl/a.de.srt"}}`)
	want := []ytdlp.Event{
		ytdlp.SubtitleFileEvent{Language: "de", Path: "/dl/a.de.srt"},
		ytdlp.SubtitleFileEvent{Language: "en", Path: "/dl/a.en.srt"},
	}
	if !slices.Equal(subs, want) {
		t.Fatalf("unexpected subtitle events %v", subs)
	}

	for _, line := range []string{"[download] 10% of 1MiB", "ytq:chapters NA", "ytq:file NA", "ytq:progress {"} {
		if events := ytdlp.ParseLine(line); len(events) != 0 {
			t.Fatalf("expected no events for %q, got %v", line, events)
		}
	}
}

func collect(t *testing.T, proc ytdlp.Process) []ytdlp.Event {
	t.Helper()
	var events []ytdlp.Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case evt, ok := <-proc.Events():
			if !ok {
				return events
			}
			events = append(events, evt)
		case <-timeout:
			t.Fatal("timed out waiting for worker events")
		}
	}
}

func TestLaunchRelaysEvents(t *testing.T) {
	client := newClient(t, `echo '[youtube] noise'
echo 'ytq:progress {"status":"downloading","downloaded_bytes":10,"total_bytes":100}'
echo 'ytq:file "/dl/video.mp4"'
exit 0
`)
	proc, err := client.Launch(context.Background(), ytdlp.Request{URL: "https://x", HomeDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	events := collect(t, proc)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %v", events)
	}
	if _, ok := events[0].(ytdlp.ProgressEvent); !ok {
		t.Fatalf("expected progress first, got %T", events[0])
	}
	if err := proc.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestLaunchReportsLastError(t *testing.T) {
	client := newClient(t, "echo 'ERROR: first' >&2\necho 'ERROR: HTTP Error 403: Forbidden' >&2\nexit 1\n")
	proc, err := client.Launch(context.Background(), ytdlp.Request{URL: "https://x", HomeDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	collect(t, proc)
	err = proc.Wait()
	if !errors.Is(err, services.ErrDownload) || !strings.Contains(err.Error(), "HTTP Error 403") {
		t.Fatalf("expected download error with last message, got %v", err)
	}
}

func TestKillTerminatesProcessGroup(t *testing.T) {
	client := newClient(t, "sleep 30 &\nsleep 30\n")
	proc, err := client.Launch(context.Background(), ytdlp.Request{URL: "https://x", HomeDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if err := proc.Kill(); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- proc.Wait() }()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected killed worker to report an error")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not exit after kill")
	}
}

func TestLaunchArguments(t *testing.T) {
	dir := t.TempDir()
	argsFile := dir + "/args"
	client := newClient(t, `for a in "$@"; do printf '%s\n' "$a"; done > `+argsFile+"\n")
	opts, err := formats.ResolveOptions("mp4", "720", formats.Options{}, formats.Params{SplitChapters: true})
	if err != nil {
		t.Fatalf("ResolveOptions: %v", err)
	}
	proc, err := client.Launch(context.Background(), ytdlp.Request{
		URL:             "https://x",
		Options:         opts,
		HomeDir:         "/dl",
		TempDir:         "/tmp/ytq",
		OutputTemplate:  "%(title)s.%(ext)s",
		ChapterTemplate: "%(section_title)s.%(ext)s",
		PlaylistEnd:     5,
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	collect(t, proc)
	if err := proc.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	data := testsupport.ReadFile(t, argsFile)
	args := strings.Split(strings.TrimSpace(data), "\n")
	for _, want := range [][]string{
		{"-P", "home:/dl"},
		{"-P", "temp:/tmp/ytq"},
		{"-o", "default:%(title)s.%(ext)s"},
		{"-o", "chapter:%(section_title)s.%(ext)s"},
		{"--playlist-end", "5"},
		{"--socket-timeout", "30"},
		{"--merge-output-format", "mp4"},
		{"--print", "after_move:ytq:chapters %(chapters)j"},
	} {
		if !containsPair(args, want[0], want[1]) {
			t.Fatalf("expected %v in %q", want, args)
		}
	}
	if args[len(args)-2] != "--" || args[len(args)-1] != "https://x" {
		t.Fatalf("url must be last after --, got %q", args)
	}
}

func containsPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}
