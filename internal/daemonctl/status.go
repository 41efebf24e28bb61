package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"ytqueue/internal/api"
	"ytqueue/internal/config"
	"ytqueue/internal/daemon"
	"ytqueue/internal/deps"
	"ytqueue/internal/ipc"
	"ytqueue/internal/logging"
	"ytqueue/internal/preflight"
	"ytqueue/internal/queue"
)

// DependencySummary aggregates dependency readiness for status output.
type DependencySummary struct {
	Total           int
	Available       int
	MissingRequired int
	MissingOptional int
	Severity        string
	Detail          string
}

// StatusSnapshot is what `ytqueue status` renders.
type StatusSnapshot struct {
	Daemon            api.DaemonStatus
	DependencySummary DependencySummary
}

// BuildStatusSnapshot collects daemon status and falls back to reading the job
// tables and probing dependencies directly when the daemon is not running.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snapshot := &StatusSnapshot{}

	client, err := ipc.Dial(SocketPath(cfg))
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			snapshot.Daemon = *resp
		}
	}

	status := &snapshot.Daemon
	if !status.Running {
		status.StateDir = cfg.Paths.StateDir
		status.LockFilePath = filepath.Join(cfg.Paths.LogDir, daemon.LockFileName)
		status.LogPath = filepath.Join(cfg.Paths.LogDir, daemon.LogFileName)
		status.Workflow = offlineWorkflow(ctx, cfg)
	}
	if len(status.Dependencies) == 0 {
		status.Dependencies = api.FromDependencies(deps.Check(cfg))
	}
	if len(status.Checks) == 0 {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		status.Checks = api.FromChecks(preflight.RunAll(probeCtx, cfg))
		cancel()
	}

	snapshot.DependencySummary = BuildDependencySummary(status.Dependencies)
	return snapshot, nil
}

// offlineWorkflow counts persisted jobs without starting the engine. Every
// job found in the active table will resume when the daemon starts.
func offlineWorkflow(ctx context.Context, cfg *config.Config) api.WorkflowStatus {
	out := api.WorkflowStatus{
		Concurrency:   cfg.Downloads.Concurrency,
		MaxConcurrent: cfg.Downloads.MaxConcurrent,
	}
	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	set, err := queue.OpenSet(queryCtx, cfg, logging.NewNop())
	if err != nil {
		return out
	}
	defer set.Close()
	out.Active = set.Queue.Len()
	out.Pending = set.Pending.Len()
	out.Done = set.Done.Len()
	return out
}

// BuildDependencySummary computes aggregate dependency readiness.
func BuildDependencySummary(statuses []api.DependencyStatus) DependencySummary {
	if len(statuses) == 0 {
		return DependencySummary{
			Severity: "info",
			Detail:   "No dependency checks configured",
		}
	}

	missingRequired := 0
	missingOptional := 0
	for _, dep := range statuses {
		if dep.Available {
			continue
		}
		if dep.Optional {
			missingOptional++
		} else {
			missingRequired++
		}
	}

	missingCount := missingRequired + missingOptional
	available := len(statuses) - missingCount
	severity := "ok"
	if missingRequired > 0 {
		severity = "error"
	} else if missingOptional > 0 {
		severity = "warn"
	}
	detail := fmt.Sprintf("%d/%d available (missing: %d required, %d optional)", available, len(statuses), missingRequired, missingOptional)
	if missingCount == 0 {
		detail = fmt.Sprintf("%d/%d available", available, len(statuses))
	}

	return DependencySummary{
		Total:           len(statuses),
		Available:       available,
		MissingRequired: missingRequired,
		MissingOptional: missingOptional,
		Severity:        severity,
		Detail:          detail,
	}
}
