package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"soundcheck/internal/gateway"
	"soundcheck/internal/ipc"
)

func newTaskCommand(ctx *commandContext) *cobra.Command {
	var viaDaemon bool
	var list bool

	cmd := &cobra.Command{
		Use:   "task <name> [json]",
		Short: "Run one gateway task and print its JSON result",
		Long: "Run one gateway task and print its JSON result.\n\n" +
			"The payload is taken from the second argument, or from stdin when stdin is not a\n" +
			"terminal. Operation failures print null (or the documented fallback) and still\n" +
			"exit 0; only unknown task names and transport problems are errors.",
		Args: cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				for _, name := range gateway.Tasks() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}
			if len(args) == 0 {
				return errors.New("task name is required (use --list to see available tasks)")
			}
			name := strings.TrimSpace(args[0])
			payload, err := readPayload(cmd, args[1:])
			if err != nil {
				return err
			}

			if viaDaemon {
				return ctx.withClient(func(client *ipc.Client) error {
					raw, err := client.Invoke(name, payload)
					if err != nil {
						return err
					}
					return writeRawJSON(cmd, raw)
				})
			}

			gw, err := ctx.inProcessGateway(cmd.Context())
			if err != nil {
				return err
			}
			result, err := gw.Dispatch(cmd.Context(), name, payload)
			if err != nil {
				return err
			}
			return writeJSON(cmd, result)
		},
	}
	cmd.Flags().BoolVar(&viaDaemon, "daemon", false, "Send the task to a running daemon instead of running it in-process")
	cmd.Flags().BoolVar(&list, "list", false, "List task names")
	return cmd
}

func readPayload(cmd *cobra.Command, args []string) (json.RawMessage, error) {
	var data []byte
	switch {
	case len(args) > 0:
		data = []byte(args[0])
	case stdinIsPiped(cmd):
		read, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read payload from stdin: %w", err)
		}
		data = read
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}
	if !json.Valid([]byte(trimmed)) {
		// A bare URL or path is accepted as a JSON string.
		encoded, err := json.Marshal(trimmed)
		if err != nil {
			return nil, err
		}
		return encoded, nil
	}
	return json.RawMessage(trimmed), nil
}

func stdinIsPiped(cmd *cobra.Command) bool {
	in := cmd.InOrStdin()
	f, ok := in.(*os.File)
	if !ok {
		return in != nil
	}
	return !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
}
