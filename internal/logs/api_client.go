package logs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"ytqueue/internal/api"
)

// ErrAPIUnavailable reports that no HTTP API is configured or reachable.
var ErrAPIUnavailable = errors.New("daemon API unavailable")

// StreamClient reads the daemon's log and job event streams over HTTP.
type StreamClient struct {
	base  *url.URL
	token string
	http  *http.Client
}

// LogQuery selects log records from /api/logs.
type LogQuery struct {
	Since     uint64
	Limit     int
	Follow    bool
	Tail      bool
	Component string
	JobID     string
}

// EventQuery selects job events from /api/events.
type EventQuery struct {
	Since uint64
	Limit int
	Wait  bool
}

// NewStreamClient builds a client for the API listening on bind. It returns
// nil when bind is empty.
func NewStreamClient(bind, token string) (*StreamClient, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, err
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &StreamClient{
		base:  base,
		token: strings.TrimSpace(token),
		// Long-poll requests are bounded by the server and the caller's context.
		http: &http.Client{},
	}, nil
}

// Logs fetches one page of log records.
func (c *StreamClient) Logs(ctx context.Context, q LogQuery) (api.LogStreamResponse, error) {
	values := url.Values{}
	if q.Since > 0 {
		values.Set("since", strconv.FormatUint(q.Since, 10))
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Follow {
		values.Set("follow", "1")
	}
	if q.Tail {
		values.Set("tail", "1")
	}
	if strings.TrimSpace(q.Component) != "" {
		values.Set("component", q.Component)
	}
	if strings.TrimSpace(q.JobID) != "" {
		values.Set("job", q.JobID)
	}
	var payload api.LogStreamResponse
	err := c.get(ctx, "/api/logs", values, &payload)
	return payload, err
}

// Events fetches job events after q.Since, blocking server-side when q.Wait
// is set and nothing is available yet.
func (c *StreamClient) Events(ctx context.Context, q EventQuery) (api.EventsResponse, error) {
	values := url.Values{}
	values.Set("since", strconv.FormatUint(q.Since, 10))
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Wait {
		values.Set("wait", "1")
	}
	var payload api.EventsResponse
	err := c.get(ctx, "/api/events", values, &payload)
	return payload, err
}

func (c *StreamClient) get(ctx context.Context, path string, values url.Values, out any) error {
	if c == nil {
		return ErrAPIUnavailable
	}
	endpoint := c.base.ResolveReference(&url.URL{Path: path, RawQuery: values.Encode()})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("api %s returned status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// IsAPIUnavailable reports whether err means the daemon API could not be
// reached at all.
func IsAPIUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	var opErr *net.OpError
	return errors.Is(err, ErrAPIUnavailable) || errors.As(err, &opErr)
}
