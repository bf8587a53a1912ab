package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"soundcheck/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var out outputFormat
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Report availability of external decoder binaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(deps.DecoderRequirements(cfg))
			if out.json(cmd) {
				return writeJSON(cmd, statuses)
			}
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				location := status.Path
				if !status.Available {
					location = status.Detail
				}
				rows = append(rows, []string{status.Name, status.Command, yesNo(status.Available), yesNo(status.Optional), location})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Dependency", "Command", "Available", "Optional", "Location"}, rows, nil))
			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required dependency(ies) missing", len(missing))
			}
			return nil
		},
	}
	out.bind(cmd)
	return cmd
}
