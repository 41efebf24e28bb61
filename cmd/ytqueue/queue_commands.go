package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"ytqueue/internal/ipc"
	"ytqueue/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage download jobs",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueHistoryCommand(ctx))
	queueCmd.AddCommand(newQueueCancelCommand(ctx))
	queueCmd.AddCommand(newQueueStartCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active and finished jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Queue()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				printJobSection(cmd, "Active", resp.Queue)
				printJobSection(cmd, "Done", resp.Done)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw queue document")
	return cmd
}

func newQueueHistoryCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List jobs in every table, including pending ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History()
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, resp)
				}
				printJobSection(cmd, "Active", resp.Queue)
				printJobSection(cmd, "Pending", resp.Pending)
				printJobSection(cmd, "Done", resp.Done)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw history document")
	return cmd
}

func newQueueCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <url>...",
		Short: "Cancel active or pending jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Cancel(args)
				if err != nil {
					return err
				}
				return printAck(cmd, resp, fmt.Sprintf("Canceled %s", pluralJobs(len(args))))
			})
		},
	}
}

func newQueueStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start <url>...",
		Short: "Start jobs parked in the pending table",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StartPending(args)
				if err != nil {
					return err
				}
				return printAck(cmd, resp, fmt.Sprintf("Started %s", pluralJobs(len(args))))
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clear [url]...",
		Short: "Remove finished jobs from history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("specify job urls or --all")
			}
			return ctx.withClient(func(client *ipc.Client) error {
				ids := args
				if all {
					resp, err := client.Queue()
					if err != nil {
						return err
					}
					ids = make([]string, 0, len(resp.Done))
					for _, job := range resp.Done {
						ids = append(ids, job.URL)
					}
					if len(ids) == 0 {
						fmt.Fprintln(cmd.OutOrStdout(), "History is already empty")
						return nil
					}
				}
				resp, err := client.Clear(ids)
				if err != nil {
					return err
				}
				return printAck(cmd, resp, fmt.Sprintf("Cleared %s", pluralJobs(len(ids))))
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Clear every finished job")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the job databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.DatabaseHealth()
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(resp.Tables))
				for _, t := range resp.Tables {
					rows = append(rows, []string{
						t.Name,
						yesNo(t.DatabaseReadable),
						strconv.Itoa(t.SchemaVersion),
						yesNo(t.IntegrityCheck),
						strconv.Itoa(t.TotalItems),
						yesNo(t.BackupExists),
						t.Error,
					})
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable([]column{
					{header: "Table"},
					{header: "Readable"},
					{header: "Schema", right: true},
					{header: "Integrity"},
					{header: "Jobs", right: true},
					{header: "Backup"},
					{header: "Error"},
				}, rows))
				return nil
			})
		},
	}
}

func printJobSection(cmd *cobra.Command, title string, jobs []*queue.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%d)\n", title, len(jobs))
	if len(jobs) == 0 {
		fmt.Fprintln(out, statusIndent+"none")
		return
	}
	fmt.Fprint(out, renderTable(jobColumns, buildJobRows(jobs)))
}

func pluralJobs(n int) string {
	if n == 1 {
		return "1 job"
	}
	return strconv.Itoa(n) + " jobs"
}
