package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := []byte("verified copy content")
	if err := os.WriteFile(src, content, 0o600); err != nil {
		t.Fatal(err)
	}

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerified_MissingSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "nonexistent")
	dst := filepath.Join(dir, "dst.bin")

	err := CopyFileVerified(src, dst)
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestRemoveFilesIgnoresMissing(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present")
	if err := os.WriteFile(present, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RemoveFiles(present, filepath.Join(dir, "missing"), ""); err != nil {
		t.Fatalf("RemoveFiles: %v", err)
	}
	if _, err := os.Stat(present); !os.IsNotExist(err) {
		t.Fatalf("expected file removed, stat err=%v", err)
	}
}

func TestRelativeTo(t *testing.T) {
	cases := []struct {
		base, path, want string
	}{
		{"/data/downloads", "/data/downloads/music/song.mp3", "music/song.mp3"},
		{"/data/downloads", "/elsewhere/song.mp3", "/elsewhere/song.mp3"},
		{"/data/downloads", "relative.mp3", "relative.mp3"},
		{"", "/data/x", "/data/x"},
	}
	for _, tc := range cases {
		if got := RelativeTo(tc.base, tc.path); got != tc.want {
			t.Fatalf("RelativeTo(%q, %q) = %q, want %q", tc.base, tc.path, got, tc.want)
		}
	}
}

func TestSizeOf(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file")
	if err := os.WriteFile(path, []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}
	if size := SizeOf(path); size == nil || *size != 5 {
		t.Fatalf("unexpected size %v", size)
	}
	if SizeOf(filepath.Join(dir, "missing")) != nil {
		t.Fatal("expected nil size for missing file")
	}
	if SizeOf(dir) != nil {
		t.Fatal("expected nil size for directory")
	}
}

func TestWithin(t *testing.T) {
	cases := []struct {
		root, target string
		want         bool
	}{
		{"/data", "/data", true},
		{"/data", "/data/a/b", true},
		{"/data", "/data2", false},
		{"/data", "/etc", false},
		{"/data", "/data/../etc", false},
	}
	for _, tc := range cases {
		if got := Within(tc.root, filepath.Clean(tc.target)); got != tc.want {
			t.Fatalf("Within(%q, %q) = %v, want %v", tc.root, tc.target, got, tc.want)
		}
	}
}
