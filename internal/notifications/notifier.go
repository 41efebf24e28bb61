package notifications

import (
	"context"
	"errors"

	"ytqueue/internal/queue"
)

// Notifier receives job lifecycle events from the queue engine. Delivery is
// fire-and-forget: callers log failures and carry on.
type Notifier interface {
	Added(ctx context.Context, job *queue.Job) error
	Updated(ctx context.Context, job *queue.Job) error
	Completed(ctx context.Context, job *queue.Job) error
	Canceled(ctx context.Context, id string) error
	Cleared(ctx context.Context, id string) error
}

// EventType names a job lifecycle event.
type EventType string

const (
	EventAdded     EventType = "added"
	EventUpdated   EventType = "updated"
	EventCompleted EventType = "completed"
	EventCanceled  EventType = "canceled"
	EventCleared   EventType = "cleared"
)

// Multi fans every event out to each notifier in order. All notifiers are
// called even when one fails; the failures are joined.
type Multi []Notifier

// NewMulti drops nil entries from notifiers.
func NewMulti(notifiers ...Notifier) Multi {
	out := make(Multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m Multi) each(fn func(Notifier) error) error {
	var errs []error
	for _, n := range m {
		if err := fn(n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Added(ctx context.Context, job *queue.Job) error {
	return m.each(func(n Notifier) error { return n.Added(ctx, job) })
}

func (m Multi) Updated(ctx context.Context, job *queue.Job) error {
	return m.each(func(n Notifier) error { return n.Updated(ctx, job) })
}

func (m Multi) Completed(ctx context.Context, job *queue.Job) error {
	return m.each(func(n Notifier) error { return n.Completed(ctx, job) })
}

func (m Multi) Canceled(ctx context.Context, id string) error {
	return m.each(func(n Notifier) error { return n.Canceled(ctx, id) })
}

func (m Multi) Cleared(ctx context.Context, id string) error {
	return m.each(func(n Notifier) error { return n.Cleared(ctx, id) })
}

// Nop discards every event.
type Nop struct{}

func (Nop) Added(context.Context, *queue.Job) error     { return nil }
func (Nop) Updated(context.Context, *queue.Job) error   { return nil }
func (Nop) Completed(context.Context, *queue.Job) error { return nil }
func (Nop) Canceled(context.Context, string) error      { return nil }
func (Nop) Cleared(context.Context, string) error       { return nil }
