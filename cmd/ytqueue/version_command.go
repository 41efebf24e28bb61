package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ytqueue/internal/ipc"
)

func newVersionCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show ytqueue and yt-dlp versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ytqueue %s\n", version)
			client, err := ctx.dialClient()
			if err != nil {
				fmt.Fprintln(out, "daemon: not running")
				return nil
			}
			defer client.Close()
			resp, err := client.Version()
			if err != nil {
				return err
			}
			return printDaemonVersion(cmd, resp)
		},
	}
}

func printDaemonVersion(cmd *cobra.Command, resp *ipc.VersionResponse) error {
	fmt.Fprintf(cmd.OutOrStdout(), "daemon: %s\nyt-dlp: %s\n", resp.Version, resp.YTDLP)
	return nil
}
