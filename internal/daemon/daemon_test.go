package daemon

import (
	"context"
	"testing"
)

func TestDaemonStartStop(t *testing.T) {
	d := newTestDaemon(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.APIAddress == "" {
		t.Fatal("expected api listener address")
	}
	if !status.Workflow.Running {
		t.Fatal("expected workflow to report running")
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
	if status.APIAddress != "" {
		t.Fatalf("expected listener closed, got %q", status.APIAddress)
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	first := newTestDaemon(t, nil)
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	second, err := New(Options{
		Config:   first.cfg,
		Stores:   first.stores,
		Workflow: first.workflow,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected lock contention error")
	}
}

func TestDaemonVersion(t *testing.T) {
	d := newTestDaemon(t, nil)
	resp, err := d.Version(context.Background())
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if resp.YTDLP != "2025.01.01" || resp.Version != "test" {
		t.Fatalf("version = %+v", resp)
	}
}
