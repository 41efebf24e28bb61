package logs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"ytqueue/internal/api"
	"ytqueue/internal/logging"
	"ytqueue/internal/logs"
)

func TestNewStreamClientEmptyBind(t *testing.T) {
	client, err := logs.NewStreamClient("", "")
	if err != nil {
		t.Fatalf("NewStreamClient error: %v", err)
	}
	if client != nil {
		t.Fatal("expected nil client for empty bind")
	}
	if _, err := client.Logs(context.Background(), logs.LogQuery{}); !logs.IsAPIUnavailable(err) {
		t.Fatalf("expected unavailable error from nil client, got %v", err)
	}
}

func TestStreamClientLogsBuildsQueryAndDecodes(t *testing.T) {
	var (
		gotQuery url.Values
		gotAuth  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.LogStreamResponse{
			Events: []logging.LogEvent{{
				Timestamp: time.Now().UTC(),
				Level:     "info",
				Message:   "hello",
			}},
			Next: 42,
		})
	}))
	defer srv.Close()

	client, err := logs.NewStreamClient(srv.URL, "secret")
	if err != nil {
		t.Fatalf("NewStreamClient error: %v", err)
	}

	resp, err := client.Logs(context.Background(), logs.LogQuery{
		Since:     3,
		Limit:     50,
		Follow:    true,
		Tail:      true,
		Component: "workflow",
		JobID:     "https://example.com/v",
	})
	if err != nil {
		t.Fatalf("Logs error: %v", err)
	}
	if len(resp.Events) != 1 || resp.Next != 42 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("authorization = %q", gotAuth)
	}

	for key, want := range map[string]string{
		"since":     "3",
		"limit":     "50",
		"follow":    "1",
		"tail":      "1",
		"component": "workflow",
		"job":       "https://example.com/v",
	} {
		if got := gotQuery.Get(key); got != want {
			t.Fatalf("query[%s]: expected %q, got %q", key, want, got)
		}
	}
}

func TestStreamClientEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events" || r.URL.Query().Get("wait") != "1" || r.URL.Query().Get("since") != "7" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(api.EventsResponse{
			Events: []api.Event{{Sequence: 8, Type: "canceled", ID: "https://example.com/v"}},
			Next:   8,
		})
	}))
	defer srv.Close()

	client, err := logs.NewStreamClient(srv.URL, "")
	if err != nil {
		t.Fatalf("NewStreamClient: %v", err)
	}
	resp, err := client.Events(context.Background(), logs.EventQuery{Since: 7, Wait: true})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(resp.Events) != 1 || resp.Next != 8 || resp.Events[0].Type != "canceled" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestStreamClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client, _ := logs.NewStreamClient(srv.URL, "")
	if _, err := client.Events(context.Background(), logs.EventQuery{}); err == nil {
		t.Fatal("expected error for 401")
	}
}

func TestIsAPIUnavailable(t *testing.T) {
	if !logs.IsAPIUnavailable(logs.ErrAPIUnavailable) {
		t.Fatal("expected ErrAPIUnavailable to be unavailable")
	}
	if logs.IsAPIUnavailable(errors.New("other")) {
		t.Fatal("did not expect generic error to be unavailable")
	}
}
