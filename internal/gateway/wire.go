package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"soundcheck/internal/config"
	"soundcheck/internal/decoder"
	"soundcheck/internal/logging"
	"soundcheck/internal/refcache"
	"soundcheck/internal/results"
)

// FromConfig builds a gateway with the default decoder chain, a fresh
// reference cache and a results sink writing to paths.reports_dir. When
// results history is enabled the SQLite database is opened too; the returned
// close function releases it.
func FromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, func() error, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("gateway requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var history *results.History
	if cfg.Results.HistoryEnabled && cfg.Results.HistoryPath != "" {
		h, err := results.OpenHistory(ctx, cfg.Results.HistoryPath)
		if err != nil {
			logging.WarnWithContext(logger, "results history disabled", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check results.history_path or set results.history_enabled = false"),
				logging.String(logging.FieldImpact, "flushed runs will not appear in `soundcheck results history`"),
			)
		} else {
			history = h
		}
	}

	dec := decoder.New(decoder.OptionsFromConfig(cfg), logger)
	sink := results.NewSink(cfg.Paths.ReportsDir, history, logger)
	g, err := New(cfg, dec, refcache.New(logger), sink, logger, opts...)
	if err != nil {
		_ = history.Close()
		return nil, nil, err
	}
	return g, history.Close, nil
}
