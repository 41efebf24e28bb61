package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ytqueue/internal/config"
)

var errGateAbandoned = errors.New("gate wait abandoned")

// gate bounds how many jobs run at once. The limit can change while jobs are
// waiting: every waiter re-checks the current limit when it wakes, and jobs
// already running keep their slot. A limit of zero admits everything.
type gate struct {
	mu      sync.Mutex
	cond    *sync.Cond
	limit   int
	running int
}

func newGate(limit int) *gate {
	g := &gate{limit: limit}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// concurrencyLimit validates a policy and returns its slot count, zero
// meaning unbounded.
func concurrencyLimit(policy string, limit int) (int, error) {
	switch policy {
	case config.ConcurrencySequential:
		return 1, nil
	case config.ConcurrencyLimited:
		if limit <= 0 {
			return 0, errors.New("downloads.max_concurrent must be positive when downloads.concurrency is limited")
		}
		return limit, nil
	case config.ConcurrencyUnlimited:
		return 0, nil
	default:
		return 0, fmt.Errorf("downloads.concurrency must be one of sequential, limited, unlimited (got %q)", policy)
	}
}

func (g *gate) setLimit(limit int) {
	g.mu.Lock()
	g.limit = limit
	g.mu.Unlock()
	g.cond.Broadcast()
}

func (g *gate) hasSlot() bool {
	return g.limit <= 0 || g.running < g.limit
}

// acquire blocks until a slot frees, ctx ends or abandon is closed.
func (g *gate) acquire(ctx context.Context, abandon <-chan struct{}) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-abandon:
		case <-stop:
			return
		}
		g.mu.Lock()
		g.cond.Broadcast()
		g.mu.Unlock()
	}()

	g.mu.Lock()
	defer g.mu.Unlock()
	for !g.hasSlot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-abandon:
			return errGateAbandoned
		default:
		}
		g.cond.Wait()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-abandon:
		return errGateAbandoned
	default:
	}
	g.running++
	return nil
}

func (g *gate) release() {
	g.mu.Lock()
	if g.running > 0 {
		g.running--
	}
	g.mu.Unlock()
	g.cond.Broadcast()
}
