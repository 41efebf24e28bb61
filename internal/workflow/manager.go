package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"ytqueue/internal/config"
	"ytqueue/internal/logging"
	"ytqueue/internal/notifications"
	"ytqueue/internal/queue"
	"ytqueue/internal/runner"
	"ytqueue/internal/services"
	"ytqueue/internal/ytdlp"
)

// Extractor resolves a URL into the metadata tree describing it.
type Extractor interface {
	Extract(ctx context.Context, url string) (*ytdlp.Entry, error)
}

// Manager admits download requests, persists them across the active, pending
// and done tables, and runs active jobs under the configured concurrency gate.
type Manager struct {
	cfg       *config.Config
	stores    *queue.Set
	extractor Extractor
	workers   *runner.Workers
	notifier  notifications.Notifier
	logger    *slog.Logger

	// tables orders every change to the active, pending and done tables, from
	// the duplicate check through the write and the launch that follows it.
	tables sync.Mutex
	gate   *gate

	mu          sync.Mutex
	runners     map[string]*runner.Runner
	concurrency string
	limit       int
	running     bool
	stopping    bool
	runCtx      context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// NewManager wires the engine. A nil notifier discards events.
func NewManager(cfg *config.Config, stores *queue.Set, extractor Extractor, workers *runner.Workers, notifier notifications.Notifier, logger *slog.Logger) (*Manager, error) {
	if cfg == nil || stores == nil || extractor == nil || workers == nil {
		return nil, fmt.Errorf("workflow: config, stores, extractor and workers are required")
	}
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	m := &Manager{
		cfg:       cfg,
		stores:    stores,
		extractor: extractor,
		workers:   workers,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(logger, "workflow"),
		runners:   make(map[string]*runner.Runner),
		gate:      newGate(0),
	}
	m.runCtx, m.cancel = context.WithCancel(context.Background())
	if err := m.SetConcurrency(cfg.Downloads.Concurrency, cfg.Downloads.MaxConcurrent); err != nil {
		return nil, err
	}
	return m, nil
}

// SetConcurrency changes the concurrency policy. Waiting jobs are admitted
// under the new limit; running jobs are left alone, so a lower limit takes
// effect as they finish.
func (m *Manager) SetConcurrency(policy string, limit int) error {
	limit, err := concurrencyLimit(policy, limit)
	if err != nil {
		return services.Wrap(services.ErrValidation, "", "", err.Error(), nil)
	}
	m.mu.Lock()
	m.concurrency = policy
	m.limit = limit
	m.mu.Unlock()
	m.gate.setLimit(limit)
	m.logger.Info("concurrency updated",
		logging.String("policy", policy),
		logging.Int("limit", limit),
	)
	return nil
}

// Concurrency returns the current policy and limit.
func (m *Manager) Concurrency() (string, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.concurrency, m.limit
}

func (m *Manager) notify(ctx context.Context, event notifications.EventType, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		logging.WithContext(ctx, m.logger).Debug("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}
