package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"soundcheck/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var out outputFormat
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the running daemon's status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				if out.json(cmd) {
					return writeJSON(cmd, status)
				}
				rows := [][]string{
					{"Running", yesNo(status.Running)},
					{"PID", strconv.Itoa(status.PID)},
					{"Socket", status.SocketPath},
					{"Lock", status.LockFilePath},
				}
				if status.StartedAt != nil {
					rows = append(rows, []string{"Uptime", time.Since(*status.StartedAt).Round(time.Second).String()})
				}
				if status.APIAddress != "" {
					rows = append(rows, []string{"HTTP API", status.APIAddress})
				}
				rows = append(rows,
					[]string{"Strategies", strings.Join(status.Strategies, " → ")},
					[]string{"Reference cached", yesNo(status.Cache.Cached)},
					[]string{"Cache hits/misses", fmt.Sprintf("%d/%d", status.Cache.Hits, status.Cache.Misses)},
				)
				for _, dep := range status.Dependencies {
					rows = append(rows, []string{dep.Name, yesNo(dep.Available)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
				return nil
			})
		},
	}
	out.bind(cmd)
	return cmd
}
