package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"ytqueue/internal/config"
)

// Database file names under the state directory.
const (
	QueueFile     = "queue.db"
	PendingFile   = "pending.db"
	CompletedFile = "completed.db"
)

// Set bundles the three disjoint job tables: active (queue), pending and done.
type Set struct {
	Queue   *Store
	Pending *Store
	Done    *Store
}

// OpenSet opens the three job tables under the configured state directory.
func OpenSet(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Set, error) {
	if cfg == nil {
		return nil, errors.New("queue: config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	dir := cfg.Paths.StateDir

	set := &Set{}
	var err error
	if set.Queue, err = Open(ctx, filepath.Join(dir, QueueFile), logger); err != nil {
		return nil, err
	}
	if set.Pending, err = Open(ctx, filepath.Join(dir, PendingFile), logger); err != nil {
		_ = set.Close()
		return nil, err
	}
	if set.Done, err = Open(ctx, filepath.Join(dir, CompletedFile), logger); err != nil {
		_ = set.Close()
		return nil, err
	}
	return set, nil
}

// Stores returns the tables in active, pending, done order.
func (s *Set) Stores() []*Store {
	if s == nil {
		return nil
	}
	return []*Store{s.Queue, s.Pending, s.Done}
}

// CheckHealth collects diagnostics for every table.
func (s *Set) CheckHealth(ctx context.Context) ([]DatabaseHealth, error) {
	var (
		out  []DatabaseHealth
		errs []error
	)
	for _, store := range s.Stores() {
		if store == nil {
			continue
		}
		health, err := store.CheckHealth(ctx)
		out = append(out, health)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
		}
	}
	return out, errors.Join(errs...)
}

// Close closes every opened table.
func (s *Set) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, store := range s.Stores() {
		if err := store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
