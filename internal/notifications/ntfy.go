package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"ytqueue/internal/config"
	"ytqueue/internal/queue"
)

const userAgent = "ytqueue/0.1.0"

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

// Ntfy pushes finished and failed downloads to an ntfy topic. Every other
// lifecycle event is ignored.
type Ntfy struct {
	endpoint  string
	client    *http.Client
	completed bool
	errors    bool
}

// NewNtfy returns an ntfy notifier, or nil when no topic is configured.
func NewNtfy(cfg *config.Config) *Ntfy {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return nil
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Ntfy{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		completed: cfg.Notifications.Completed,
		errors:    cfg.Notifications.Errors,
	}
}

func (n *Ntfy) Added(context.Context, *queue.Job) error   { return nil }
func (n *Ntfy) Updated(context.Context, *queue.Job) error { return nil }
func (n *Ntfy) Canceled(context.Context, string) error    { return nil }
func (n *Ntfy) Cleared(context.Context, string) error     { return nil }

// Completed reports the job's outcome.
func (n *Ntfy) Completed(ctx context.Context, job *queue.Job) error {
	if n == nil || job == nil {
		return nil
	}
	switch job.Status {
	case queue.StatusFinished:
		if !n.completed {
			return nil
		}
		msg := fmt.Sprintf("Downloaded: %s", job.Title)
		if job.Filename != "" {
			msg += "\nFile: " + job.Filename
		}
		if job.Size != nil && *job.Size >= 0 {
			msg += "\nSize: " + humanize.Bytes(uint64(*job.Size))
		}
		return n.send(ctx, payload{
			title:   "ytqueue - Download Complete",
			message: msg,
			tags:    []string{"ytqueue", "download", "completed"},
		})
	case queue.StatusError:
		if !n.errors {
			return nil
		}
		reason := strings.TrimSpace(job.Message)
		if reason == "" {
			reason = strings.TrimSpace(job.Error)
		}
		if reason == "" {
			reason = "unknown error"
		}
		return n.send(ctx, payload{
			title:    "ytqueue - Download Failed",
			message:  fmt.Sprintf("Failed: %s\n%s", job.Title, reason),
			tags:     []string{"ytqueue", "download", "error"},
			priority: "high",
		})
	default:
		return nil
	}
}

func (n *Ntfy) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
