package api

import (
	"ytqueue/internal/deps"
	"ytqueue/internal/logging"
	"ytqueue/internal/notifications"
	"ytqueue/internal/preflight"
	"ytqueue/internal/queue"
	"ytqueue/internal/workflow"
)

// FromEvents converts hub events into their wire form.
func FromEvents(events []notifications.Event) []Event {
	out := make([]Event, 0, len(events))
	for _, evt := range events {
		out = append(out, Event{
			Sequence:  evt.Sequence,
			Timestamp: evt.Timestamp.UTC().Format(dateTimeFormat),
			Type:      string(evt.Type),
			ID:        evt.ID,
			Job:       evt.Job,
		})
	}
	return out
}

// FromStatusSummary converts the engine status.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	return WorkflowStatus{
		Running:       summary.Running,
		Concurrency:   summary.Concurrency,
		MaxConcurrent: summary.MaxConcurrent,
		Active:        summary.Active,
		Pending:       summary.Pending,
		Done:          summary.Done,
		LiveWorkers:   summary.LiveWorkers,
	}
}

// FromDependencies converts binary probe results.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, DependencyStatus{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		})
	}
	return out
}

// FromChecks converts environment check results.
func FromChecks(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	return out
}

// FromSnapshot converts the live engine view.
func FromSnapshot(snapshot workflow.Snapshot) QueueResponse {
	return QueueResponse{Queue: nonNil(snapshot.Queue), Done: nonNil(snapshot.Done)}
}

// FromHistory converts the persisted engine view.
func FromHistory(history workflow.History) HistoryResponse {
	return HistoryResponse{
		Done:    nonNil(history.Done),
		Queue:   nonNil(history.Queue),
		Pending: nonNil(history.Pending),
	}
}

// FromLogEvents wraps a log stream page.
func FromLogEvents(events []logging.LogEvent, next uint64) LogStreamResponse {
	if events == nil {
		events = []logging.LogEvent{}
	}
	return LogStreamResponse{Events: events, Next: next}
}

func nonNil(jobs []*queue.Job) []*queue.Job {
	if jobs == nil {
		return []*queue.Job{}
	}
	return jobs
}
