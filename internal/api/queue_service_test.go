package api_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"ytqueue/internal/api"
	"ytqueue/internal/queue"
	"ytqueue/internal/services"
	"ytqueue/internal/testsupport"
	"ytqueue/internal/workflow"
)

type fakeEngine struct {
	added    []workflow.AddRequest
	canceled []string
	cleared  []string
	started  []string
	policy   string
	limit    int
	err      error
}

func (f *fakeEngine) Add(_ context.Context, req workflow.AddRequest) error {
	f.added = append(f.added, req)
	return f.err
}

func (f *fakeEngine) Cancel(_ context.Context, ids []string) error {
	f.canceled = append(f.canceled, ids...)
	return f.err
}

func (f *fakeEngine) StartPending(_ context.Context, ids []string) error {
	f.started = append(f.started, ids...)
	return f.err
}

func (f *fakeEngine) Clear(_ context.Context, ids []string) error {
	f.cleared = append(f.cleared, ids...)
	return f.err
}

func (f *fakeEngine) Get() workflow.Snapshot {
	return workflow.Snapshot{Queue: []*queue.Job{testsupport.NewJob("https://example.com/a", "any", "best")}}
}

func (f *fakeEngine) History(context.Context) (workflow.History, error) {
	return workflow.History{Pending: []*queue.Job{testsupport.NewJob("https://example.com/p", "any", "best")}}, f.err
}

func (f *fakeEngine) Status() workflow.StatusSummary {
	return workflow.StatusSummary{Running: true, Concurrency: f.policy, MaxConcurrent: f.limit}
}

func (f *fakeEngine) SetConcurrency(policy string, limit int) error {
	if policy == "bogus" {
		return services.Wrap(services.ErrValidation, "", "", "unknown policy", nil)
	}
	f.policy, f.limit = policy, limit
	return nil
}

func newService(t *testing.T) (*api.QueueService, *fakeEngine) {
	t.Helper()
	engine := &fakeEngine{policy: "unlimited"}
	return api.NewQueueService(testsupport.NewConfig(t), engine), engine
}

func TestQueueServiceAdd(t *testing.T) {
	svc, engine := newService(t)
	resp, err := svc.Add(context.Background(), api.AddRequest{URL: "https://example.com/v", Quality: "best"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if resp.Status != api.StatusOK {
		t.Fatalf("status = %+v", resp)
	}
	if len(engine.added) != 1 || engine.added[0].URL != "https://example.com/v" {
		t.Fatalf("engine saw %+v", engine.added)
	}
}

func TestQueueServiceAddRejectsBeforeEngine(t *testing.T) {
	svc, engine := newService(t)
	_, err := svc.Add(context.Background(), api.AddRequest{URL: "https://example.com/v"})
	if !api.IsRequestError(err) {
		t.Fatalf("expected request error, got %v", err)
	}
	if len(engine.added) != 0 {
		t.Fatal("engine should not see invalid requests")
	}
}

func TestQueueServiceAddReportsEngineFailure(t *testing.T) {
	svc, engine := newService(t)
	engine.err = services.Wrap(services.ErrExtraction, "", "", "Unsupported URL: x", nil)
	resp, err := svc.Add(context.Background(), api.AddRequest{URL: "x", Quality: "best"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if resp.Status != api.StatusError || resp.Msg != "Unsupported URL: x" {
		t.Fatalf("response = %+v", resp)
	}
}

func TestQueueServiceDelete(t *testing.T) {
	svc, engine := newService(t)
	ctx := context.Background()

	if _, err := svc.Delete(ctx, api.DeleteRequest{IDs: []string{"a", " "}, Where: "queue"}); err != nil {
		t.Fatalf("Delete queue: %v", err)
	}
	if _, err := svc.Delete(ctx, api.DeleteRequest{IDs: []string{"b"}, Where: "done"}); err != nil {
		t.Fatalf("Delete done: %v", err)
	}
	if !slices.Equal(engine.canceled, []string{"a"}) || !slices.Equal(engine.cleared, []string{"b"}) {
		t.Fatalf("canceled %q cleared %q", engine.canceled, engine.cleared)
	}

	if _, err := svc.Delete(ctx, api.DeleteRequest{IDs: []string{"a"}, Where: "elsewhere"}); !api.IsRequestError(err) {
		t.Fatalf("expected request error for bad where, got %v", err)
	}
	if _, err := svc.Delete(ctx, api.DeleteRequest{Where: "queue"}); !api.IsRequestError(err) {
		t.Fatalf("expected request error for missing ids, got %v", err)
	}
}

func TestQueueServiceStart(t *testing.T) {
	svc, engine := newService(t)
	if _, err := svc.Start(context.Background(), api.StartRequest{IDs: []string{"p"}}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !slices.Equal(engine.started, []string{"p"}) {
		t.Fatalf("started %q", engine.started)
	}
	if _, err := svc.Start(context.Background(), api.StartRequest{}); !api.IsRequestError(err) {
		t.Fatalf("expected request error, got %v", err)
	}
}

func TestQueueServiceViews(t *testing.T) {
	svc, _ := newService(t)
	view := svc.Queue()
	if len(view.Queue) != 1 || view.Done == nil {
		t.Fatalf("queue view = %+v", view)
	}
	history, err := svc.History(context.Background())
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history.Pending) != 1 || history.Done == nil || history.Queue == nil {
		t.Fatalf("history = %+v", history)
	}
}

func TestQueueServiceSetConcurrency(t *testing.T) {
	svc, _ := newService(t)
	status, err := svc.SetConcurrency(api.ConcurrencyRequest{Policy: "limited", Limit: 2})
	if err != nil {
		t.Fatalf("SetConcurrency: %v", err)
	}
	if status.Concurrency != "limited" || status.MaxConcurrent != 2 {
		t.Fatalf("status = %+v", status)
	}
	if _, err := svc.SetConcurrency(api.ConcurrencyRequest{Policy: "bogus"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
