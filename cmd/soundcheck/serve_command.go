package main

import (
	"github.com/spf13/cobra"

	"soundcheck/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var development bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the soundcheck daemon in the foreground",
		Long: "Run the soundcheck daemon in the foreground. The daemon holds a single-instance lock,\n" +
			"serves JSON-RPC on the configured Unix socket and the HTTP task API on api_bind,\n" +
			"and exits on SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:    cfg.Logging.Level,
				Development: development,
			})
		},
	}
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log lines")
	return cmd
}
