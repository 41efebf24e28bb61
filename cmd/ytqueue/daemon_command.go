package main

import (
	"github.com/spf13/cobra"

	"ytqueue/internal/daemonrun"
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var development bool
	cmd := &cobra.Command{
		Use:          "daemon",
		Short:        "Run the ytqueue daemon in the foreground",
		Hidden:       true,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    ctx.logLevel(cfg),
				Development: development,
				Version:     version,
			})
		},
	}
	cmd.Flags().BoolVar(&development, "development", false, "Log to the console with source locations")
	return cmd
}
