package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"soundcheck/internal/decoder"
	"soundcheck/internal/fingerprint"
	"soundcheck/internal/gateway"
	"soundcheck/internal/pcm"
	"soundcheck/internal/similarity"
)

func newFingerprintCommand(ctx *commandContext) *cobra.Command {
	var seconds float64
	cmd := &cobra.Command{
		Use:   "fingerprint <url-or-path>",
		Short: "Fingerprint a media source and print the vector as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := ctx.inProcessGateway(cmd.Context())
			if err != nil {
				return err
			}
			vec := gw.FingerprintMedia(cmd.Context(), gateway.MediaRequest{URL: args[0], Seconds: seconds})
			return writeJSON(cmd, vec)
		},
	}
	cmd.Flags().Float64Var(&seconds, "seconds", 0, "Seconds of audio to decode (default from config)")
	return cmd
}

func newCompareCommand(ctx *commandContext) *cobra.Command {
	var seconds float64
	var threshold float64
	var out outputFormat

	cmd := &cobra.Command{
		Use:   "compare <source> [source]",
		Short: "Compare a media source against the reference asset, or two sources against each other",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := ctx.inProcessGateway(cmd.Context())
			if err != nil {
				return err
			}

			var a fingerprint.Vector
			labelA := "reference"
			if len(args) == 2 {
				labelA = args[0]
				a = gw.FingerprintMedia(cmd.Context(), gateway.MediaRequest{URL: args[0], Seconds: seconds})
			} else {
				a = gw.ReferenceFingerprint(cmd.Context())
			}
			labelB := args[len(args)-1]
			b := gw.FingerprintMedia(cmd.Context(), gateway.MediaRequest{URL: labelB, Seconds: seconds})

			req := gateway.CompareRequest{A: a, B: b}
			if cmd.Flags().Changed("threshold") {
				req.Threshold = &threshold
			}
			result := gw.CompareFingerprints(cmd.Context(), req)

			if out.json(cmd) {
				return writeJSON(cmd, result)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"A", "B", "Score", "Verdict"},
				[][]string{{labelA, labelB, strconv.FormatFloat(result.Score, 'f', 4, 64), verdictLabel(result)}},
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().Float64Var(&seconds, "seconds", 0, "Seconds of audio to decode (default from config)")
	cmd.Flags().Float64Var(&threshold, "threshold", similarity.DefaultThreshold, "Similarity pass mark (default from config)")
	out.bind(cmd)
	return cmd
}

func verdictLabel(result similarity.Result) string {
	switch {
	case result.Degenerate:
		return "degenerate (" + result.Reason + ")"
	case result.Pass:
		return "pass"
	default:
		return "fail"
	}
}

func newReferenceCommand(ctx *commandContext) *cobra.Command {
	refCmd := &cobra.Command{
		Use:   "reference",
		Short: "Inspect the configured reference asset",
	}
	refCmd.AddCommand(newReferenceStatCommand(ctx))
	refCmd.AddCommand(newReferenceProbeCommand(ctx))
	refCmd.AddCommand(&cobra.Command{
		Use:   "fingerprint",
		Short: "Print the reference fingerprint as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := ctx.inProcessGateway(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd, gw.ReferenceFingerprint(cmd.Context()))
		},
	})
	return refCmd
}

func newReferenceStatCommand(ctx *commandContext) *cobra.Command {
	var out outputFormat
	cmd := &cobra.Command{
		Use:   "stat",
		Short: "Report reference asset existence, size, modification time and duration",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := ctx.inProcessGateway(cmd.Context())
			if err != nil {
				return err
			}
			stat := gw.StatReference(cmd.Context())
			if out.json(cmd) {
				return writeJSON(cmd, stat)
			}
			rows := [][]string{
				{"Path", stat.Path},
				{"Exists", yesNo(stat.Exists)},
			}
			if stat.Size != nil {
				rows = append(rows, []string{"Size", strconv.FormatInt(*stat.Size, 10) + " bytes"})
			}
			if stat.MTime != nil {
				rows = append(rows, []string{"Modified", stat.MTime.Format(time.RFC3339)})
			}
			if stat.DurationSeconds != nil {
				rows = append(rows, []string{"Duration", strconv.FormatFloat(*stat.DurationSeconds, 'f', 2, 64) + "s"})
			}
			if stat.Error != "" {
				rows = append(rows, []string{"Error", stat.Error})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
	out.bind(cmd)
	return cmd
}

func newReferenceProbeCommand(ctx *commandContext) *cobra.Command {
	var live string
	var seconds float64
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Decode a short window of the reference (or --live source) and report the outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := ctx.inProcessGateway(cmd.Context())
			if err != nil {
				return err
			}
			var result gateway.ProbeResult
			if strings.TrimSpace(live) != "" {
				result = gw.ProbeLiveDecode(cmd.Context(), gateway.MediaRequest{URL: live, Seconds: seconds})
			} else {
				result = gw.ProbeReferenceDecode(cmd.Context())
			}
			return writeJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&live, "live", "", "Probe this URL or path instead of the reference")
	cmd.Flags().Float64Var(&seconds, "seconds", 0, "Seconds of audio to decode")
	return cmd
}

func newDecodeCommand(ctx *commandContext) *cobra.Command {
	var seconds float64
	var outPath string
	cmd := &cobra.Command{
		Use:   "decode <url-or-path>",
		Short: "Decode a source to mono PCM and write it as a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if strings.TrimSpace(outPath) == "" {
				return errors.New("--out is required")
			}
			src, err := decoder.ParseSource(args[0])
			if err != nil {
				return err
			}
			if seconds <= 0 {
				seconds = cfg.Fingerprint.DefaultSeconds
			}
			dec := decoder.New(decoder.OptionsFromConfig(cfg), ctx.logger())
			buf, err := dec.Decode(cmd.Context(), src, seconds)
			if err != nil {
				return fmt.Errorf("decode %s: %w", src, err)
			}

			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			if err := pcm.EncodeWAV(f, buf); err != nil {
				f.Close()
				return fmt.Errorf("encode wav: %w", err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d samples (%s at %d Hz) to %s\n",
				buf.Len(), buf.Duration().Round(time.Millisecond), buf.SampleRate, outPath)
			return nil
		},
	}
	cmd.Flags().Float64Var(&seconds, "seconds", 0, "Seconds of audio to decode (default from config)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Destination WAV file")
	return cmd
}
