package results

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"soundcheck/internal/fileutil"
	"soundcheck/internal/logging"
)

// FileName is the report written into the reports directory.
const FileName = "results.json"

// Report is the document Flush writes.
type Report struct {
	RunID      string            `json:"runId"`
	StartedAt  time.Time         `json:"startedAt"`
	FlushedAt  time.Time         `json:"flushedAt"`
	Summary    Summary           `json:"summary"`
	Steps      []json.RawMessage `json:"steps"`
	Actions    []json.RawMessage `json:"actions"`
	NavTimings []json.RawMessage `json:"navTimings"`
	Requests   []json.RawMessage `json:"requests"`
}

// Sink accumulates records for one run. It is safe for concurrent use.
type Sink struct {
	dir     string
	history *History
	logger  *slog.Logger
	now     func() time.Time

	mu         sync.Mutex
	runID      string
	startedAt  time.Time
	steps      []json.RawMessage
	actions    []json.RawMessage
	navTimings []json.RawMessage
	requests   []json.RawMessage
}

// NewSink returns a Sink writing into dir. history may be nil.
func NewSink(dir string, history *History, logger *slog.Logger) *Sink {
	s := &Sink{
		dir:     dir,
		history: history,
		logger:  logging.NewComponentLogger(logger, "results"),
		now:     time.Now,
	}
	s.runID = uuid.NewString()
	s.startedAt = s.now().UTC()
	return s
}

// RunID identifies the run this sink is collecting.
func (s *Sink) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Path is where Flush writes the report.
func (s *Sink) Path() string {
	return filepath.Join(s.dir, FileName)
}

// RecordStep appends a step record.
func (s *Sink) RecordStep(record json.RawMessage) { s.add(&s.steps, record) }

// RecordAction appends an action record.
func (s *Sink) RecordAction(record json.RawMessage) { s.add(&s.actions, record) }

// RecordNavTiming appends a navigation timing record.
func (s *Sink) RecordNavTiming(record json.RawMessage) { s.add(&s.navTimings, record) }

// RecordRequest appends a request record.
func (s *Sink) RecordRequest(record json.RawMessage) { s.add(&s.requests, record) }

// RecordRequestsBatch appends every element of a JSON array of requests.
// Anything other than an array is ignored and reported as false.
func (s *Sink) RecordRequestsBatch(batch json.RawMessage) bool {
	var items []json.RawMessage
	if err := json.Unmarshal(batch, &items); err != nil {
		return false
	}
	if items == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.requests = append(s.requests, normalizeRecord(item))
	}
	return true
}

func (s *Sink) add(list *[]json.RawMessage, record json.RawMessage) {
	record = normalizeRecord(record)
	s.mu.Lock()
	*list = append(*list, record)
	s.mu.Unlock()
}

// normalizeRecord copies record and maps empty or invalid JSON to null so the
// report always marshals.
func normalizeRecord(record json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(record)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return json.RawMessage("null")
	}
	return append(json.RawMessage(nil), trimmed...)
}

// Snapshot returns the report as it would be flushed now.
func (s *Sink) Snapshot() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Report{
		RunID:      s.runID,
		StartedAt:  s.startedAt,
		FlushedAt:  s.now().UTC(),
		Summary:    summarize(s.steps, s.actions, s.navTimings, s.requests),
		Steps:      nonNil(s.steps),
		Actions:    nonNil(s.actions),
		NavTimings: nonNil(s.navTimings),
		Requests:   nonNil(s.requests),
	}
}

func nonNil(list []json.RawMessage) []json.RawMessage {
	return append(make([]json.RawMessage, 0, len(list)), list...)
}

// Flush writes the current report atomically under the report lock and
// records the run in history when one is configured. History failures are
// logged, not returned; the JSON report is the source of truth.
func (s *Sink) Flush(ctx context.Context) (string, error) {
	report := s.Snapshot()
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode results: %w", err)
	}
	path := s.Path()
	if err := fileutil.WriteFileLocked(ctx, path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write results: %w", err)
	}

	logger := logging.WithContext(ctx, s.logger)
	logger.Info("results flushed",
		logging.String("path", path),
		logging.String("run_id", report.RunID),
		logging.Int("steps", report.Summary.Steps),
		logging.Int("failed", report.Summary.Fail),
		logging.Int("requests", report.Summary.Requests),
	)

	if s.history != nil {
		if err := s.history.RecordRun(ctx, runFromReport(report, path), stepRows(report)); err != nil {
			logging.WarnWithContext(logger, "results history not updated", "history_write_failed",
				logging.String(logging.FieldErrorHint, "check results.history_path permissions"),
				logging.String(logging.FieldImpact, "run missing from `soundcheck results history`"),
				logging.Error(err),
			)
		}
	}
	return path, nil
}

func runFromReport(report Report, path string) Run {
	return Run{
		RunID:      report.RunID,
		StartedAt:  report.StartedAt,
		FlushedAt:  report.FlushedAt,
		ReportPath: path,
		Summary:    report.Summary,
	}
}

func stepRows(report Report) []StepRow {
	rows := make([]StepRow, 0, len(report.Steps))
	for i, raw := range report.Steps {
		fields := parseStep(raw)
		rows = append(rows, StepRow{
			Seq:     i + 1,
			Name:    fields.Name,
			Status:  fields.Status,
			Payload: string(raw),
		})
	}
	return rows
}
