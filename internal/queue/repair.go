package queue

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"ytqueue/internal/fileutil"
	"ytqueue/internal/logging"
)

// BackupSuffix is appended to a database path for the copy taken before repair.
const BackupSuffix = ".old"

var sidecarSuffixes = []string{"-wal", "-shm"}

// repairDatabase makes one best-effort attempt to bring the database at path
// into a readable state. It never fails: every problem is logged and the
// caller opens whatever remains.
func repairDatabase(ctx context.Context, path string, logger *slog.Logger) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	if err := backupDatabase(path); err != nil {
		// Without a backup a repair could lose the only copy of the data.
		logger.Debug("job database backup failed; skipping repair", logging.String("path", path), logging.Error(err))
		return
	}

	if info.Size() == 0 {
		return
	}

	healthy, err := quickCheck(ctx, path)
	switch {
	case err != nil:
		logging.WarnWithContext(logger, "job database unreadable; resetting", "queue_reset",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "previous contents remain in the .old backup"),
			logging.String(logging.FieldImpact, "jobs stored in this table were discarded"),
		)
		removeDatabaseFiles(path)
		return
	case !healthy:
		salvaged, err := salvage(ctx, path)
		if err != nil {
			logging.WarnWithContext(logger, "job database salvage failed", "queue_repair_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "table opens with whatever rows remain readable"),
			)
		} else {
			logging.WarnWithContext(logger, "job database rebuilt from readable rows", "queue_repaired",
				logging.String("path", path),
				logging.Int("rows", salvaged),
				logging.String(logging.FieldImpact, "unreadable rows were dropped"),
			)
		}
	}

	deleted, err := deleteEmptyKeys(ctx, path)
	if err != nil {
		logger.Debug("empty key cleanup failed", logging.String("path", path), logging.Error(err))
		return
	}
	if deleted > 0 {
		logging.WarnWithContext(logger, "removed corrupt job keys", "queue_null_keys",
			logging.String("path", path),
			logging.Int64("deleted", deleted),
			logging.String(logging.FieldImpact, "records without a usable key were dropped"),
		)
	}
}

// backupDatabase copies the database file and its write-ahead log next to it
// with the .old suffix.
func backupDatabase(path string) error {
	if err := fileutil.CopyFileVerified(path, path+BackupSuffix); err != nil {
		return fmt.Errorf("backup %s: %w", path, err)
	}
	wal := path + "-wal"
	if _, err := os.Stat(wal); err == nil {
		if err := fileutil.CopyFileVerified(wal, path+BackupSuffix+"-wal"); err != nil {
			return fmt.Errorf("backup %s: %w", wal, err)
		}
	}
	return nil
}

func openRaw(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// quickCheck reports whether SQLite considers the file consistent. An error
// means the file could not be read as a database at all.
func quickCheck(ctx context.Context, path string) (bool, error) {
	db, err := openRaw(path)
	if err != nil {
		return false, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, "PRAGMA quick_check")
	if err != nil {
		return false, fmt.Errorf("quick_check: %w", err)
	}
	defer rows.Close()

	healthy := true
	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return false, fmt.Errorf("scan quick_check: %w", err)
		}
		if !strings.EqualFold(result, "ok") {
			healthy = false
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("quick_check: %w", err)
	}
	return healthy, nil
}

// salvage copies every readable row into a fresh database and swaps it in
// place of the damaged file.
func salvage(ctx context.Context, path string) (int, error) {
	tmpPath := path + ".tmp"
	removeDatabaseFiles(tmpPath)

	src, err := openRaw(path)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	dst, err := openRaw(tmpPath)
	if err != nil {
		return 0, err
	}
	if err := createSchema(ctx, dst); err != nil {
		_ = dst.Close()
		removeDatabaseFiles(tmpPath)
		return 0, err
	}

	copied, copyErr := copyReadableRows(ctx, src, dst)
	if err := dst.Close(); err != nil {
		removeDatabaseFiles(tmpPath)
		return 0, fmt.Errorf("close salvage db: %w", err)
	}
	_ = src.Close()
	if copyErr != nil && copied == 0 {
		removeDatabaseFiles(tmpPath)
		return 0, copyErr
	}

	for _, suffix := range sidecarSuffixes {
		_ = os.Remove(path + suffix)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		removeDatabaseFiles(tmpPath)
		return 0, fmt.Errorf("swap salvaged db: %w", err)
	}
	return copied, nil
}

// copyReadableRows reads jobs until the first unreadable row.
func copyReadableRows(ctx context.Context, src, dst *sql.DB) (int, error) {
	rows, err := src.QueryContext(ctx, `SELECT url, created_at, record FROM jobs`)
	if err != nil {
		return 0, fmt.Errorf("read damaged rows: %w", err)
	}
	defer rows.Close()

	copied := 0
	for rows.Next() {
		var (
			url       string
			createdAt int64
			record    string
		)
		if err := rows.Scan(&url, &createdAt, &record); err != nil {
			return copied, fmt.Errorf("scan damaged row: %w", err)
		}
		if _, err := dst.ExecContext(ctx,
			`INSERT OR REPLACE INTO jobs (url, created_at, record) VALUES (?, ?, ?)`,
			url, createdAt, record,
		); err != nil {
			return copied, fmt.Errorf("insert salvaged row: %w", err)
		}
		copied++
	}
	return copied, rows.Err()
}

// deleteEmptyKeys drops rows whose key or record is empty or made only of NUL
// bytes.
func deleteEmptyKeys(ctx context.Context, path string) (int64, error) {
	db, err := openRaw(path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var tables int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='jobs'",
	).Scan(&tables); err != nil {
		return 0, fmt.Errorf("check jobs table: %w", err)
	}
	if tables == 0 {
		return 0, nil
	}

	res, err := db.ExecContext(ctx, `DELETE FROM jobs
		WHERE url IS NULL OR trim(url, char(0)) = ''
		   OR record IS NULL OR trim(record, char(0)) = ''`)
	if err != nil {
		return 0, fmt.Errorf("delete empty keys: %w", err)
	}
	return res.RowsAffected()
}

// removeDatabaseFiles deletes a database and its sidecar files.
func removeDatabaseFiles(path string) {
	paths := []string{path}
	for _, suffix := range sidecarSuffixes {
		paths = append(paths, path+suffix)
	}
	_ = fileutil.RemoveFiles(paths...)
}
