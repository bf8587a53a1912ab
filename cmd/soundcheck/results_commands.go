package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"soundcheck/internal/results"
)

var statusTitle = cases.Title(language.English)

func newResultsCommand(ctx *commandContext) *cobra.Command {
	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect recorded run history",
	}
	resultsCmd.AddCommand(newResultsHistoryCommand(ctx))
	resultsCmd.AddCommand(newResultsStepsCommand(ctx))
	return resultsCmd
}

func openHistory(cmd *cobra.Command, ctx *commandContext) (*results.History, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Results.HistoryEnabled {
		return nil, errors.New("run history is disabled (set results.history_enabled = true)")
	}
	return results.OpenHistory(cmd.Context(), cfg.Results.HistoryPath)
}

func newResultsHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var out outputFormat
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List flushed runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := openHistory(cmd, ctx)
			if err != nil {
				return err
			}
			defer history.Close()

			runs, err := history.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if out.json(cmd) {
				return writeJSON(cmd, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				verdict := results.StatusPass
				if !run.Summary.Passed() {
					verdict = results.StatusFail
				}
				rows = append(rows, []string{
					run.RunID,
					run.FlushedAt.Local().Format(time.DateTime),
					strconv.Itoa(run.Summary.Steps),
					strconv.Itoa(run.Summary.Pass),
					strconv.Itoa(run.Summary.Fail),
					strconv.Itoa(run.Summary.Requests),
					statusTitle.String(verdict),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Run", "Flushed", "Steps", "Pass", "Fail", "Requests", "Verdict"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list")
	out.bind(cmd)
	return cmd
}

func newResultsStepsCommand(ctx *commandContext) *cobra.Command {
	var out outputFormat
	cmd := &cobra.Command{
		Use:   "steps <run-id>",
		Short: "List the steps recorded for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := openHistory(cmd, ctx)
			if err != nil {
				return err
			}
			defer history.Close()

			steps, err := history.Steps(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out.json(cmd) {
				return writeJSON(cmd, steps)
			}
			if len(steps) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No steps recorded for run %s\n", args[0])
				return nil
			}
			rows := make([][]string, 0, len(steps))
			for _, step := range steps {
				rows = append(rows, []string{strconv.Itoa(step.Seq), step.Name, statusTitle.String(step.Status)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "Step", "Status"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft}))
			return nil
		},
	}
	out.bind(cmd)
	return cmd
}
