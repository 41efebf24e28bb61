package logstream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ytqueue/internal/api"
	"ytqueue/internal/ipc"
	"ytqueue/internal/logging"
	"ytqueue/internal/logs"
)

// ErrFiltersRequireAPI reports that structured filters were requested while
// only the plain log file is reachable.
var ErrFiltersRequireAPI = errors.New("log filters require API access")

// followLimit bounds each page fetched while following.
const followLimit = 200

// TailClient captures the IPC log tail contract used for fallback streaming.
type TailClient interface {
	LogTail(req ipc.LogTailRequest) (*ipc.LogTailResponse, error)
}

// EventSource fetches structured log records from the HTTP API.
type EventSource interface {
	Logs(ctx context.Context, q logs.LogQuery) (api.LogStreamResponse, error)
}

// Filters narrow API log streaming.
type Filters struct {
	Component string
	JobID     string
}

func (f Filters) empty() bool {
	return strings.TrimSpace(f.Component) == "" && strings.TrimSpace(f.JobID) == ""
}

// Options controls stream behavior.
type Options struct {
	Lines   int
	Follow  bool
	Filters Filters
}

// Stream emits structured records from the API when it is reachable and falls
// back to tailing the daemon log file over IPC. It returns true when at least
// one record or line was emitted. Following ends cleanly when ctx is done.
func Stream(
	ctx context.Context,
	source EventSource,
	legacy TailClient,
	opts Options,
	onEvent func(logging.LogEvent),
	onLine func(string),
) (bool, error) {
	printed, err := streamAPI(ctx, source, opts, onEvent)
	if err == nil || (printed && ctx.Err() != nil) {
		return printed, nil
	}
	if !logs.IsAPIUnavailable(err) {
		if ctx.Err() != nil {
			return printed, nil
		}
		return printed, err
	}
	if !opts.Filters.empty() {
		return false, fmt.Errorf("%w: %w", ErrFiltersRequireAPI, logs.ErrAPIUnavailable)
	}
	if legacy == nil {
		return false, logs.ErrAPIUnavailable
	}
	return streamLegacy(ctx, legacy, opts, onLine)
}

func streamAPI(ctx context.Context, source EventSource, opts Options, onEvent func(logging.LogEvent)) (bool, error) {
	if source == nil {
		return false, logs.ErrAPIUnavailable
	}
	query := logs.LogQuery{
		Limit:     opts.Lines,
		Tail:      true,
		Component: strings.TrimSpace(opts.Filters.Component),
		JobID:     strings.TrimSpace(opts.Filters.JobID),
	}
	if query.Limit <= 0 {
		query.Limit = followLimit
	}

	printed := false
	for {
		resp, err := source.Logs(ctx, query)
		if err != nil {
			return printed, err
		}
		for _, evt := range resp.Events {
			if onEvent != nil {
				onEvent(evt)
			}
			printed = true
		}
		if !opts.Follow {
			return printed, nil
		}
		query.Since = resp.Next
		query.Limit = followLimit
		query.Tail = false
		query.Follow = true
	}
}

func streamLegacy(ctx context.Context, client TailClient, opts Options, onLine func(string)) (bool, error) {
	limit := max(opts.Lines, 0)
	offset := int64(-1)
	if limit == 0 {
		offset = 0
	}

	printed := false
	for {
		resp, err := client.LogTail(ipc.LogTailRequest{
			Offset:     offset,
			Limit:      limit,
			Follow:     opts.Follow,
			WaitMillis: 1000,
		})
		if err != nil {
			return printed, fmt.Errorf("tail logs: %w", err)
		}
		if resp == nil {
			return printed, errors.New("log tail response missing")
		}
		for _, line := range resp.Lines {
			if onLine != nil {
				onLine(line)
			}
			printed = true
		}
		offset = resp.Offset
		limit = 0
		if !opts.Follow {
			return printed, nil
		}
		select {
		case <-ctx.Done():
			return printed, nil
		default:
		}
	}
}
