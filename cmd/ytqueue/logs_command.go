package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"ytqueue/internal/logging"
	"ytqueue/internal/logs"
	"ytqueue/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines     int
		follow    bool
		component string
		jobID     string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon logs",
		Long: "Show daemon log records from the HTTP API, or the current log file when the " +
			"API is disabled. Filtering by --component or --job requires the API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if lines < 0 {
				return errors.New("--lines must not be negative")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			source, err := logs.NewStreamClient(cfg.API.Bind, cfg.API.Token)
			if err != nil {
				return err
			}

			var legacy logstream.TailClient
			if client, dialErr := ctx.dialClient(); dialErr == nil {
				defer client.Close()
				legacy = client
			}

			out := cmd.OutOrStdout()
			printed, err := logstream.Stream(cmd.Context(), source, legacy,
				logstream.Options{
					Lines:  lines,
					Follow: follow,
					Filters: logstream.Filters{
						Component: component,
						JobID:     jobID,
					},
				},
				func(evt logging.LogEvent) { fmt.Fprintln(out, formatLogEvent(evt)) },
				func(line string) { fmt.Fprintln(out, line) },
			)
			if errors.Is(err, logs.ErrAPIUnavailable) && legacy == nil {
				return fmt.Errorf("daemon is not reachable; start it with `ytqueue start`")
			}
			if err != nil {
				return err
			}
			if !printed && !follow {
				fmt.Fprintln(out, "No log entries")
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing records to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new records")
	cmd.Flags().StringVar(&component, "component", "", "Only show records from this component")
	cmd.Flags().StringVar(&jobID, "job", "", "Only show records for this job")
	return cmd
}

func formatLogEvent(evt logging.LogEvent) string {
	var b strings.Builder
	b.WriteString(evt.Timestamp.Local().Format("2006-01-02 15:04:05"))
	b.WriteString(" ")
	b.WriteString(strings.ToUpper(evt.Level))
	if evt.Component != "" {
		b.WriteString(" [" + evt.Component + "]")
	}
	b.WriteString(" " + evt.Message)
	keys := make([]string, 0, len(evt.Fields))
	for k := range evt.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, evt.Fields[k])
	}
	return b.String()
}

func (c *commandContext) streamClient() (*logs.StreamClient, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	client, err := logs.NewStreamClient(cfg.API.Bind, cfg.API.Token)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("%w: api.bind is empty", logs.ErrAPIUnavailable)
	}
	return client, nil
}
