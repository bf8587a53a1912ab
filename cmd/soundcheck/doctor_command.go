package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"soundcheck/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var live string
	var out outputFormat
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, reference asset, binaries and history before a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			checks := preflight.RunAll(cmd.Context(), cfg, live)
			if out.json(cmd) {
				if err := writeJSON(cmd, checks); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(checks))
				for _, c := range checks {
					state := "ok"
					switch {
					case !c.Passed && c.Optional:
						state = "warn"
					case !c.Passed:
						state = "FAIL"
					}
					rows = append(rows, []string{c.Name, state, c.Detail})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Check", "State", "Detail"}, rows, nil))
			}
			if failed := preflight.Failed(checks); len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&live, "live", "", "Also check that this live URL or path is reachable")
	out.bind(cmd)
	return cmd
}
