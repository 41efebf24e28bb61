package notifications

import (
	"context"
	"sync"
	"time"

	"ytqueue/internal/queue"
)

// Event is one job lifecycle event retained by an EventHub.
type Event struct {
	Sequence  uint64     `json:"seq"`
	Timestamp time.Time  `json:"ts"`
	Type      EventType  `json:"type"`
	ID        string     `json:"id,omitempty"`
	Job       *queue.Job `json:"job,omitempty"`
}

// EventHub keeps a bounded log of recent job events and wakes long-poll
// waiters when new events arrive.
type EventHub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
}

// NewEventHub constructs a hub retaining at most capacity events.
func NewEventHub(capacity int) *EventHub {
	if capacity <= 0 {
		capacity = 1024
	}
	h := &EventHub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

func (h *EventHub) Added(_ context.Context, job *queue.Job) error {
	h.publish(Event{Type: EventAdded, ID: job.URL, Job: job.Clone()})
	return nil
}

func (h *EventHub) Updated(_ context.Context, job *queue.Job) error {
	h.publish(Event{Type: EventUpdated, ID: job.URL, Job: job.Clone()})
	return nil
}

func (h *EventHub) Completed(_ context.Context, job *queue.Job) error {
	h.publish(Event{Type: EventCompleted, ID: job.URL, Job: job.Clone()})
	return nil
}

func (h *EventHub) Canceled(_ context.Context, id string) error {
	h.publish(Event{Type: EventCanceled, ID: id})
	return nil
}

func (h *EventHub) Cleared(_ context.Context, id string) error {
	h.publish(Event{Type: EventCleared, ID: id})
	return nil
}

func (h *EventHub) publish(evt Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	h.cond.Broadcast()
	h.mu.Unlock()
}

// Fetch returns events with a sequence greater than since, at most limit of
// them, plus the cursor to pass on the next call. When wait is true it blocks
// until an event arrives or ctx ends.
func (h *EventHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	stopWake := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-stopWake:
			}
		}()
	}
	defer close(stopWake)

	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, ctxErr(ctx)
		}
		if err := ctxErr(ctx); err != nil {
			return nil, next, err
		}
		h.cond.Wait()
		if err := ctxErr(ctx); err != nil {
			return nil, next, err
		}
	}
}

// Sequence returns the sequence number of the newest event.
func (h *EventHub) Sequence() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextSeq
}

func (h *EventHub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	start := -1
	for i, evt := range h.buffer {
		if evt.Sequence > since {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, h.nextSeq
	}
	end := min(start+limit, len(h.buffer))
	out := make([]Event, end-start)
	copy(out, h.buffer[start:end])
	return out, out[len(out)-1].Sequence
}

func ctxErr(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
