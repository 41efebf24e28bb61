package api

import (
	"context"
	"errors"
	"strings"

	"ytqueue/internal/config"
	"ytqueue/internal/services"
	"ytqueue/internal/workflow"
)

// Engine is the queue surface the transports drive.
type Engine interface {
	Add(ctx context.Context, req workflow.AddRequest) error
	Cancel(ctx context.Context, ids []string) error
	StartPending(ctx context.Context, ids []string) error
	Clear(ctx context.Context, ids []string) error
	Get() workflow.Snapshot
	History(ctx context.Context) (workflow.History, error)
	Status() workflow.StatusSummary
	SetConcurrency(policy string, limit int) error
}

// Delete targets.
const (
	WhereQueue = "queue"
	WhereDone  = "done"
)

// QueueService validates transport requests and forwards them to the engine.
type QueueService struct {
	cfg    *config.Config
	engine Engine
}

// NewQueueService wires a service to engine.
func NewQueueService(cfg *config.Config, engine Engine) *QueueService {
	return &QueueService{cfg: cfg, engine: engine}
}

// Add admits a download. A returned error means the request itself was
// malformed; engine failures are reported through the response.
func (s *QueueService) Add(ctx context.Context, req AddRequest) (StatusResponse, error) {
	resolved, err := req.Resolve(s.cfg)
	if err != nil {
		return StatusResponse{}, err
	}
	return statusOf(s.engine.Add(ctx, resolved)), nil
}

// Delete cancels queued jobs or clears finished ones.
func (s *QueueService) Delete(ctx context.Context, req DeleteRequest) (StatusResponse, error) {
	ids := cleanIDs(req.IDs)
	if len(ids) == 0 {
		return StatusResponse{}, invalid("ids are required")
	}
	switch strings.TrimSpace(req.Where) {
	case WhereQueue:
		return statusOf(s.engine.Cancel(ctx, ids)), nil
	case WhereDone:
		return statusOf(s.engine.Clear(ctx, ids)), nil
	default:
		return StatusResponse{}, invalid(`where must be "queue" or "done"`)
	}
}

// Start releases pending jobs into the queue.
func (s *QueueService) Start(ctx context.Context, req StartRequest) (StatusResponse, error) {
	ids := cleanIDs(req.IDs)
	if len(ids) == 0 {
		return StatusResponse{}, invalid("ids are required")
	}
	return statusOf(s.engine.StartPending(ctx, ids)), nil
}

// Queue returns the live view.
func (s *QueueService) Queue() QueueResponse {
	return FromSnapshot(s.engine.Get())
}

// History returns what is stored on disk.
func (s *QueueService) History(ctx context.Context) (HistoryResponse, error) {
	history, err := s.engine.History(ctx)
	if err != nil {
		return HistoryResponse{}, err
	}
	return FromHistory(history), nil
}

// Status summarizes the engine.
func (s *QueueService) Status() WorkflowStatus {
	return FromStatusSummary(s.engine.Status())
}

// SetConcurrency switches the concurrency policy and returns the new status.
func (s *QueueService) SetConcurrency(req ConcurrencyRequest) (WorkflowStatus, error) {
	if err := s.engine.SetConcurrency(strings.TrimSpace(req.Policy), req.Limit); err != nil {
		return WorkflowStatus{}, err
	}
	return s.Status(), nil
}

// IsRequestError reports whether err stems from a malformed request rather
// than an engine failure.
func IsRequestError(err error) bool {
	return errors.Is(err, services.ErrValidation) || errors.Is(err, services.ErrConfiguration)
}

func statusOf(err error) StatusResponse {
	if err != nil {
		return StatusResponse{Status: StatusError, Msg: services.Message(err)}
	}
	return StatusResponse{Status: StatusOK}
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
