package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"ytqueue/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExtraction, "add", "extract", "metadata lookup failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"add", "extract", "metadata lookup failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapWithoutDetail(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrDownload) {
		t.Fatalf("expected download marker default, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected placeholder detail, got %q", err.Error())
	}
}

func TestIsUserFacing(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{services.Wrap(services.ErrConfiguration, "paths", "resolve", "escape", nil), true},
		{services.Wrap(services.ErrExtraction, "add", "extract", "", errors.New("x")), true},
		{fmt.Errorf("outer: %w", services.Wrap(services.ErrValidation, "api", "add", "bad", nil)), true},
		{services.Wrap(services.ErrDownload, "runner", "wait", "exit 1", nil), false},
		{services.Wrap(services.ErrStorage, "queue", "put", "", errors.New("disk")), false},
		{errors.New("plain"), false},
	}
	for _, tc := range cases {
		if got := services.IsUserFacing(tc.err); got != tc.want {
			t.Fatalf("IsUserFacing(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestMessageStripsMarker(t *testing.T) {
	err := services.Wrap(services.ErrConfiguration, "paths", "resolve", "folder escapes download root", nil)
	if got := services.Message(err); got != "paths: resolve: folder escapes download root" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := services.Message(nil); got != "" {
		t.Fatalf("expected empty message for nil, got %q", got)
	}
}
