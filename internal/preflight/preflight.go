package preflight

import (
	"context"
	"strings"

	"soundcheck/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Optional bool   `json:"optional,omitempty"`
	Detail   string `json:"detail"`
}

// RunAll executes every check applicable to cfg. When live is non-empty the
// source is checked for reachability with the decoder's request headers.
func RunAll(ctx context.Context, cfg *config.Config, live string) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Reports directory", cfg.Paths.ReportsDir),
	}
	if !cfg.Fingerprint.SkipAudio {
		results = append(results, CheckReadableFile("Reference asset", cfg.Paths.ReferenceAsset))
	}
	results = append(results, CheckDecoderBinaries(cfg)...)
	if cfg.Results.HistoryEnabled {
		results = append(results, CheckHistory(ctx, cfg.Results.HistoryPath))
	}
	if strings.TrimSpace(live) != "" {
		results = append(results, CheckSource(ctx, cfg, live))
	}
	return results
}

// Failed returns the non-optional checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}
