// Package logging assembles structured slog loggers and formatting helpers used
// across soundcheck.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so gateway code can tag log lines
// with the task name and request ID that triggered them. The package also
// provides a no-op logger for tests and wiring code that cannot fail.
package logging
