package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"soundcheck/internal/config"
	"soundcheck/internal/logging"
)

func newFileLogger(t *testing.T, format, level string) (*slog.Logger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "test.log")
	noColor := false
	logger, err := logging.New(logging.Options{
		Format:      format,
		Level:       level,
		OutputPaths: []string{logPath},
		Color:       &noColor,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return logger, logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from config")

	content := readLog(t, filepath.Join(cfg.Paths.LogDir, "soundcheck.log"))
	if !strings.Contains(content, "hello from config") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	logger, path := newFileLogger(t, "console", "info")

	logging.NewComponentLogger(logger, "decoder").Info("decoded source",
		logging.Int("samples", 80000),
		logging.String("source", "/tmp/a b.wav"),
	)

	content := readLog(t, path)
	for _, want := range []string{"INFO [decoder]", "decoded source", "samples=80000", `source="/tmp/a b.wav"`} {
		if !strings.Contains(content, want) {
			t.Fatalf("expected %q in %q", want, content)
		}
	}
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
	if strings.Contains(content, "\x1b[") {
		t.Fatalf("expected no colour codes in file output, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logger, path := newFileLogger(t, "console", "debug")
	logger.Debug("message with caller")

	if content := readLog(t, path); !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerRespectsLevel(t *testing.T) {
	logger, path := newFileLogger(t, "console", "warn")
	logger.Info("quiet")
	logger.Warn("loud")

	content := readLog(t, path)
	if strings.Contains(content, "quiet") {
		t.Fatalf("expected info line filtered, got %q", content)
	}
	if !strings.Contains(content, "loud") {
		t.Fatalf("expected warn line, got %q", content)
	}
}

func TestJSONLoggerEmitsStructuredRecord(t *testing.T) {
	logger, path := newFileLogger(t, "json", "info")
	logger.Info("json message", logging.String("k", "v"), logging.Error(errors.New("boom")))

	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(readLog(t, path))), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record["msg"] != "json message" || record["k"] != "v" || record["level"] != "info" {
		t.Fatalf("unexpected record: %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsTaskFields(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := logging.WithTask(context.Background(), "fingerprintMedia")
	ctx = logging.WithRequestID(ctx, "req-1")
	logging.WithContext(ctx, base).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record[logging.FieldTask] != "fingerprintMedia" {
		t.Fatalf("expected task field, got %v", record)
	}
	if record[logging.FieldRequestID] != "req-1" {
		t.Fatalf("expected request id field, got %v", record)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	logging.WarnWithContext(base, "decode failed", "decode_failed", logging.String(logging.FieldImpact, "fingerprint skipped"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record[logging.FieldEventType] != "decode_failed" {
		t.Fatalf("expected event_type, got %v", record)
	}
	if record[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error_hint, got %v", record)
	}
	if record[logging.FieldImpact] != "fingerprint skipped" {
		t.Fatalf("expected caller impact to be preserved, got %v", record)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("expected nop logger to be disabled")
	}
	logging.WarnWithContext(nil, "ignored", "noop")
}
