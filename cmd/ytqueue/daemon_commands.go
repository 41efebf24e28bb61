package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ytqueue/internal/api"
	"ytqueue/internal/config"
	"ytqueue/internal/daemonctl"
)

const (
	startWaitTimeout = 10 * time.Second
	stopGracePeriod  = 10 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the ytqueue daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonLaunchOptions(ctx), startWaitTimeout)
			if err != nil {
				return err
			}
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the ytqueue daemon; active downloads resume on next start",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the ytqueue daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(ctx.configValue(), exe, daemonLaunchOptions(ctx), stopGracePeriod, startWaitTimeout)
			if err != nil {
				return err
			}
			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Killed unresponsive daemon (pid %d)\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", result.Start.PID)
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, dependency and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snapshot.Daemon)
			}
			renderStatus(cmd.OutOrStdout(), snapshot, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw status document")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func renderStatus(w io.Writer, snapshot *daemonctl.StatusSnapshot, colorize bool) {
	status := snapshot.Daemon

	daemonLines := []string{}
	if status.Running {
		daemonLines = append(daemonLines, renderStatusLine("Daemon", statusOK, "Running (pid "+strconv.Itoa(status.PID)+")", colorize))
		if status.APIAddress != "" {
			daemonLines = append(daemonLines, renderStatusLine("HTTP API", statusOK, status.APIAddress, colorize))
		} else {
			daemonLines = append(daemonLines, renderStatusLine("HTTP API", statusInfo, "Disabled", colorize))
		}
	} else {
		daemonLines = append(daemonLines, renderStatusLine("Daemon", statusWarn, "Not running", colorize))
	}
	daemonLines = append(daemonLines,
		renderStatusLine("State directory", statusInfo, status.StateDir, colorize),
		renderStatusLine("Log", statusInfo, status.LogPath, colorize),
	)
	printSection(w, "Daemon", colorize, daemonLines)
	fmt.Fprintln(w)

	printSection(w, "Dependencies", colorize, dependencyLines(status.Dependencies, snapshot.DependencySummary, colorize))
	fmt.Fprintln(w)

	checkLines := make([]string, 0, len(status.Checks))
	for _, check := range status.Checks {
		kind := statusOK
		if !check.Passed {
			kind = statusError
		}
		checkLines = append(checkLines, renderStatusLine(check.Name, kind, check.Detail, colorize))
	}
	printSection(w, "Environment", colorize, checkLines)
	fmt.Fprintln(w)

	printSection(w, "Queue", colorize, nil)
	fmt.Fprint(w, renderTable(
		[]column{{header: "Table"}, {header: "Jobs", right: true}},
		[][]string{
			{"Active", strconv.Itoa(status.Workflow.Active)},
			{"Pending", strconv.Itoa(status.Workflow.Pending)},
			{"Done", strconv.Itoa(status.Workflow.Done)},
		},
	))
	fmt.Fprintln(w, statusIndent+"Concurrency: "+concurrencyLabel(status.Workflow))
}

func dependencyLines(deps []api.DependencyStatus, summary daemonctl.DependencySummary, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	lines = append(lines, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
	}
	return lines
}

func concurrencyLabel(w api.WorkflowStatus) string {
	if w.Concurrency == config.ConcurrencyLimited {
		return fmt.Sprintf("%s (max %d)", w.Concurrency, w.MaxConcurrent)
	}
	return w.Concurrency
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{ConfigPath: ctx.configPath()}
	if ctx.logLevelFlag != nil {
		opts.LogLevel = strings.TrimSpace(*ctx.logLevelFlag)
	}
	return opts
}
