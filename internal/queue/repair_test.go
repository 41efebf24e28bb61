package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestRepairDeletesEmptyKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")

	store, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := store.Put(ctx, NewJob(Params{URL: "https://example.com/ok"})); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rows := []struct{ url, record string }{
		{"", `{"url":""}`},
		{"https://example.com/empty-record", ""},
	}
	for _, row := range rows {
		if _, err := store.db.ExecContext(ctx, `INSERT INTO jobs (url, created_at, record) VALUES (?, 0, ?)`, row.url, row.record); err != nil {
			t.Fatalf("insert raw row: %v", err)
		}
	}
	_ = store.Close()

	reopened, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	var count int
	if err := reopened.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected only the valid row to remain, got %d", count)
	}
	if !reopened.Exists("https://example.com/ok") {
		t.Fatal("valid row lost during repair")
	}
}

func TestOpenRebuildsTableWithForeignSchemaVersion(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")

	store, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, url := range []string{"https://example.com/a", "https://example.com/b"} {
		if err := store.Put(ctx, NewJob(Params{URL: url})); err != nil {
			t.Fatalf("Put %s: %v", url, err)
		}
	}
	if _, err := store.db.ExecContext(ctx, `UPDATE schema_version SET version = ?`, schemaVersion+1); err != nil {
		t.Fatalf("bump schema version: %v", err)
	}
	_ = store.Close()

	reopened, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("reopen with foreign schema version: %v", err)
	}
	defer reopened.Close()

	version, err := readSchemaVersion(ctx, reopened.db)
	if err != nil {
		t.Fatalf("readSchemaVersion: %v", err)
	}
	if version != schemaVersion {
		t.Fatalf("expected schema version %d after rebuild, got %d", schemaVersion, version)
	}
	if reopened.Len() != 2 {
		t.Fatalf("expected both rows carried over, got %d", reopened.Len())
	}
	if _, err := os.Stat(path + BackupSuffix); err != nil {
		t.Fatalf("expected backup of the original table: %v", err)
	}
}

func TestOpenResetsForeignSchemaWithoutJobsTable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")

	db, err := openRaw(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, stmt := range []string{
		`CREATE TABLE schema_version (version INTEGER NOT NULL)`,
		`INSERT INTO schema_version (version) VALUES (99)`,
		`CREATE TABLE things (name TEXT)`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	_ = db.Close()

	store, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()
	if store.Len() != 0 {
		t.Fatalf("expected empty table, got %d rows", store.Len())
	}
	if err := store.Put(ctx, NewJob(Params{URL: "https://example.com/new"})); err != nil {
		t.Fatalf("Put after reset: %v", err)
	}
}

func TestQuickCheckRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.db")
	if err := writeBytes(path, []byte("not a database, just bytes that are long enough to look like a header")); err != nil {
		t.Fatal(err)
	}
	if _, err := quickCheck(context.Background(), path); err == nil {
		t.Fatal("expected quick_check to fail on a non-database file")
	}
}

func writeBytes(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
