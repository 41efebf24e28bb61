package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"ytqueue/internal/logging"
	"ytqueue/internal/services"
)

// Store is one key→job table backed by its own SQLite database. Jobs are keyed
// by URL and mirrored in memory in admission order.
type Store struct {
	db     *sql.DB
	path   string
	name   string
	logger *slog.Logger

	mu    sync.RWMutex
	items map[string]*Job
	order []string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open repairs and opens the job database at path, then loads its rows into
// the in-memory mirror. Repair problems are logged and never prevent the
// store from opening.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	ctx = ensureContext(ctx)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	logger = logging.NewComponentLogger(logger, "queue").With(logging.String("store", name))

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrStorage, "queue", "ensure state dir", name, err)
	}

	repairDatabase(ctx, path, logger)

	db, err := openDatabase(ctx, path)
	if errors.Is(err, ErrSchemaMismatch) {
		db, err = rebuildForSchema(ctx, path, err, logger)
	}
	if err != nil {
		logging.WarnWithContext(logger, "job database unreadable after repair; resetting", "queue_reset",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "previous contents remain in the .old backup"),
			logging.String(logging.FieldImpact, "jobs stored in this table were discarded"),
		)
		removeDatabaseFiles(path)
		db, err = openDatabase(ctx, path)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrStorage, "queue", "open", name, err)
	}

	store := &Store{
		db:     db,
		path:   path,
		name:   name,
		logger: logger,
		items:  make(map[string]*Job),
	}
	if err := store.Load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// rebuildForSchema carries the readable rows of a table written with another
// schema version into a fresh database. When no row can be carried over the
// table is emptied. The .old backup keeps the original either way.
func rebuildForSchema(ctx context.Context, path string, cause error, logger *slog.Logger) (*sql.DB, error) {
	salvaged, err := salvage(ctx, path)
	if err != nil {
		logging.WarnWithContext(logger, "job database schema mismatch; resetting", "queue_schema_reset",
			logging.String("path", path),
			logging.Error(cause),
			logging.String(logging.FieldErrorHint, "previous contents remain in the .old backup"),
			logging.String(logging.FieldImpact, "jobs stored in this table were discarded"),
		)
		removeDatabaseFiles(path)
	} else {
		logging.WarnWithContext(logger, "job database schema mismatch; rebuilt from readable rows", "queue_schema_rebuilt",
			logging.String("path", path),
			logging.Error(cause),
			logging.Int("rows", salvaged),
			logging.String(logging.FieldImpact, "rows that did not fit the current schema were dropped"),
		)
	}
	return openDatabase(ctx, path)
}

func openDatabase(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if err := initSchema(ctx, db, path); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Name returns the table name derived from the database file name.
func (s *Store) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
