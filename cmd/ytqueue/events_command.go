package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ytqueue/internal/api"
	"ytqueue/internal/logs"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var (
		since  uint64
		limit  int
		follow bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show job lifecycle events",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.streamClient()
			if err != nil {
				return err
			}
			query := logs.EventQuery{Since: since, Limit: limit}
			for {
				resp, err := client.Events(cmd.Context(), query)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				for _, evt := range resp.Events {
					if asJSON {
						if err := writeJSON(cmd, evt); err != nil {
							return err
						}
						continue
					}
					fmt.Fprintln(cmd.OutOrStdout(), formatEvent(evt))
				}
				if !follow {
					return nil
				}
				query.Since = resp.Next
				query.Wait = true
			}
		},
	}

	cmd.Flags().Uint64Var(&since, "since", 0, "Only show events after this sequence number")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum events per request")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep waiting for new events")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print one JSON document per event")
	return cmd
}

func formatEvent(evt api.Event) string {
	line := fmt.Sprintf("%6d %s %-9s", evt.Sequence, evt.Timestamp, evt.Type)
	if evt.Job != nil {
		return line + " " + jobTitle(evt.Job) + " [" + jobStatus(evt.Job) + "]"
	}
	if evt.ID != "" {
		return line + " " + evt.ID
	}
	return line
}
