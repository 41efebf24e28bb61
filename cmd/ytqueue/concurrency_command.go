package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ytqueue/internal/api"
	"ytqueue/internal/ipc"
)

func newConcurrencyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "concurrency [sequential|limited|unlimited] [limit]",
		Short: "Show or change how many downloads run at once",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if len(args) == 0 {
					status, err := client.Status()
					if err != nil {
						return err
					}
					printWorkflow(cmd, status.Workflow)
					return nil
				}
				limit := 0
				if len(args) == 2 {
					parsed, err := strconv.Atoi(args[1])
					if err != nil {
						return fmt.Errorf("invalid limit %q", args[1])
					}
					limit = parsed
				}
				status, err := client.SetConcurrency(args[0], limit)
				if err != nil {
					return err
				}
				printWorkflow(cmd, *status)
				return nil
			})
		},
	}
}

func printWorkflow(cmd *cobra.Command, status api.WorkflowStatus) {
	fmt.Fprintf(cmd.OutOrStdout(), "Concurrency: %s\nRunning downloads: %d\nActive jobs: %d\n",
		concurrencyLabel(status), status.LiveWorkers, status.Active)
}
