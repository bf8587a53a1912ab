package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"soundcheck/internal/config"
	"soundcheck/internal/decoder"
	"soundcheck/internal/fingerprint"
	"soundcheck/internal/gateway"
	"soundcheck/internal/pcm"
	"soundcheck/internal/refcache"
	"soundcheck/internal/results"
	"soundcheck/internal/testsupport"
)

func newGateway(t *testing.T, cfg *config.Config, opts ...gateway.Option) *gateway.Gateway {
	t.Helper()
	dec := decoder.New(decoder.OptionsFromConfig(cfg), nil)
	return newGatewayWithDecoder(t, cfg, dec, opts...)
}

func newGatewayWithDecoder(t *testing.T, cfg *config.Config, dec *decoder.Decoder, opts ...gateway.Option) *gateway.Gateway {
	t.Helper()
	sink := results.NewSink(cfg.Paths.ReportsDir, nil, nil)
	opts = append([]gateway.Option{gateway.WithDurationProbe(func(context.Context, string) (float64, error) {
		return 0, errors.New("ffprobe not available in tests")
	})}, opts...)
	g, err := gateway.New(cfg, dec, refcache.New(nil), sink, nil, opts...)
	if err != nil {
		t.Fatalf("gateway.New: %v", err)
	}
	return g
}

func writeReference(t *testing.T, cfg *config.Config) {
	t.Helper()
	testsupport.WriteToneWAV(t, cfg.Paths.ReferenceAsset, 440, 2, 44100)
}

func TestSameClipPasses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeReference(t, cfg)
	live := filepath.Join(testsupport.BaseDir(cfg), "live", "reencoded.wav")
	testsupport.WriteToneWAV(t, live, 440, 2, 22050)

	g := newGateway(t, cfg)
	ctx := context.Background()

	ref := g.ReferenceFingerprint(ctx)
	if len(ref) != fingerprint.Dimensions {
		t.Fatalf("expected %d-dimension reference, got %d", fingerprint.Dimensions, len(ref))
	}
	vec := g.FingerprintMedia(ctx, gateway.MediaRequest{URL: live, Seconds: 2})
	if len(vec) != fingerprint.Dimensions {
		t.Fatalf("expected %d-dimension live vector, got %d", fingerprint.Dimensions, len(vec))
	}

	result := g.CompareFingerprints(ctx, gateway.CompareRequest{A: ref, B: vec})
	if !result.Pass || result.Score < 0.9 {
		t.Fatalf("expected same clip to pass, got %+v", result)
	}
}

func TestUnrelatedClipFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeReference(t, cfg)
	other := filepath.Join(testsupport.BaseDir(cfg), "live", "other.wav")
	testsupport.WriteToneWAV(t, other, 3000, 2, 22050)

	g := newGateway(t, cfg)
	ctx := context.Background()

	ref := g.ReferenceFingerprint(ctx)
	vec := g.FingerprintAudioFromURL(ctx, other)
	if ref == nil || vec == nil {
		t.Fatalf("expected both fingerprints, got ref=%v live=%v", ref, vec)
	}
	result := g.CompareFingerprints(ctx, gateway.CompareRequest{A: ref, B: vec})
	if result.Pass || result.Score >= 0.5 {
		t.Fatalf("expected unrelated clip to fail with score < 0.5, got %+v", result)
	}
}

func TestCompareUsesExplicitThreshold(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	g := newGateway(t, cfg)
	low := 0.1
	result := g.CompareFingerprints(context.Background(), gateway.CompareRequest{
		A:         []float64{1, 0},
		B:         []float64{1, 1},
		Threshold: &low,
	})
	if !result.Pass {
		t.Fatalf("expected pass at threshold 0.1, got %+v", result)
	}
	result = g.CompareFingerprints(context.Background(), gateway.CompareRequest{A: []float64{1, 0}, B: []float64{1, 1}})
	if result.Pass {
		t.Fatalf("expected fail at default threshold, got %+v", result)
	}
}

func TestReferenceCacheReusesAndInvalidates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeReference(t, cfg)
	g := newGateway(t, cfg)
	ctx := context.Background()

	first := g.ReferenceFingerprint(ctx)
	second := g.ReferenceFingerprint(ctx)
	if first == nil || second == nil {
		t.Fatal("expected reference fingerprint")
	}
	stats := g.CacheStats()
	if stats.Computes != 1 || stats.Hits != 1 {
		t.Fatalf("expected one compute and one hit, got %+v", stats)
	}

	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(cfg.Paths.ReferenceAsset, later, later); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if g.ReferenceFingerprint(ctx) == nil {
		t.Fatal("expected reference after touch")
	}
	if got := g.CacheStats().Computes; got != 2 {
		t.Fatalf("expected recompute after mtime change, got %d computes", got)
	}

	cfg.Fingerprint.ReferenceVersion = "v2"
	if g.ReferenceFingerprint(ctx) == nil {
		t.Fatal("expected reference after version bump")
	}
	if got := g.CacheStats().Computes; got != 3 {
		t.Fatalf("expected recompute after version bump, got %d computes", got)
	}

	testsupport.WriteToneWAV(t, cfg.Paths.ReferenceAsset, 3000, 2, 44100)
	rewritten := later.Add(time.Hour)
	if err := os.Chtimes(cfg.Paths.ReferenceAsset, rewritten, rewritten); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	replaced := g.ReferenceFingerprint(ctx)
	if replaced == nil {
		t.Fatal("expected reference after rewrite")
	}
	if got := g.CacheStats().Computes; got != 4 {
		t.Fatalf("expected recompute after rewrite, got %d computes", got)
	}
	if slices.Equal(first, replaced) {
		t.Fatal("expected a different vector after the asset content changed")
	}
	if result := g.CompareFingerprints(ctx, gateway.CompareRequest{A: first, B: replaced}); result.Pass {
		t.Fatalf("old and new reference should not match, got %+v", result)
	}
}

func TestReferenceConcurrentCallsComputeOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeReference(t, cfg)
	g := newGateway(t, cfg)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.ReferenceFingerprint(context.Background()) == nil {
				t.Error("expected reference fingerprint")
			}
		}()
	}
	wg.Wait()
	if got := g.CacheStats().Computes; got != 1 {
		t.Fatalf("expected a single compute, got %d", got)
	}
}

func TestMissingReference(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	g := newGateway(t, cfg)
	ctx := context.Background()

	if vec := g.ReferenceFingerprint(ctx); vec != nil {
		t.Fatalf("expected nil fingerprint, got %v", vec)
	}
	stat := g.StatReference(ctx)
	if stat.Exists || stat.Error == "" || stat.Path != cfg.Paths.ReferenceAsset {
		t.Fatalf("unexpected stat: %+v", stat)
	}
	probe := g.ProbeReferenceDecode(ctx)
	if probe.OK || probe.Error == "" {
		t.Fatalf("expected failed probe, got %+v", probe)
	}
}

func TestStatReferenceReportsDetails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeReference(t, cfg)
	g := newGateway(t, cfg, gateway.WithDurationProbe(func(_ context.Context, path string) (float64, error) {
		if path != cfg.Paths.ReferenceAsset {
			return 0, errors.New("unexpected path")
		}
		return 2, nil
	}))

	stat := g.StatReference(context.Background())
	if !stat.Exists || stat.Error != "" {
		t.Fatalf("expected existing reference, got %+v", stat)
	}
	if stat.Size == nil || *stat.Size <= 44 {
		t.Fatalf("expected size, got %+v", stat.Size)
	}
	if stat.MTime == nil || stat.MTime.IsZero() {
		t.Fatal("expected mtime")
	}
	if stat.DurationSeconds == nil || *stat.DurationSeconds != 2 {
		t.Fatalf("expected duration 2, got %v", stat.DurationSeconds)
	}
}

func TestProbeDecodes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeReference(t, cfg)
	g := newGateway(t, cfg)
	ctx := context.Background()

	ref := g.ProbeReferenceDecode(ctx)
	if !ref.OK || ref.Samples != 32000 {
		t.Fatalf("expected 2 s of samples at 16 kHz, got %+v", ref)
	}
	live := g.ProbeLiveDecode(ctx, gateway.MediaRequest{URL: cfg.Paths.ReferenceAsset, Seconds: 1})
	if !live.OK || live.Samples != 16000 {
		t.Fatalf("expected 1 s of samples, got %+v", live)
	}
}

func TestInvalidInputsYieldSentinels(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	g := newGateway(t, cfg)
	ctx := context.Background()

	sources := []string{
		filepath.Join(testsupport.BaseDir(cfg), "missing.mp3"),
		"ftp://example.com/track.mp3",
		"http://127.0.0.1:1/unreachable.mp3",
		"",
	}
	for _, src := range sources {
		if vec := g.FingerprintMedia(ctx, gateway.MediaRequest{URL: src, Seconds: 2}); vec != nil {
			t.Fatalf("FingerprintMedia(%q) = %v, want nil", src, vec)
		}
		if vec := g.FingerprintAudioFromURL(ctx, src); vec != nil {
			t.Fatalf("FingerprintAudioFromURL(%q) = %v, want nil", src, vec)
		}
		probe := g.ProbeLiveDecode(ctx, gateway.MediaRequest{URL: src})
		if probe.OK || probe.Error == "" {
			t.Fatalf("ProbeLiveDecode(%q) = %+v, want failure", src, probe)
		}
	}
}

func TestShortClipYieldsNil(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	short := filepath.Join(testsupport.BaseDir(cfg), "blip.wav")
	testsupport.WriteToneWAV(t, short, 440, 0.03, 16000)
	g := newGateway(t, cfg)
	if vec := g.FingerprintAudioFromURL(context.Background(), short); vec != nil {
		t.Fatalf("expected nil for a clip shorter than one window, got %v", vec)
	}
}

func TestSkipAudio(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSkipAudio())
	writeReference(t, cfg)
	g := newGateway(t, cfg)
	ctx := context.Background()

	if vec := g.ReferenceFingerprint(ctx); vec != nil {
		t.Fatalf("expected nil while skipping audio, got %v", vec)
	}
	if vec := g.FingerprintMedia(ctx, gateway.MediaRequest{URL: cfg.Paths.ReferenceAsset}); vec != nil {
		t.Fatalf("expected nil while skipping audio, got %v", vec)
	}
	probe := g.ProbeReferenceDecode(ctx)
	if probe.OK || probe.Error != "audio checks skipped" {
		t.Fatalf("unexpected probe while skipping audio: %+v", probe)
	}
	if stat := g.StatReference(ctx); !stat.Exists {
		t.Fatalf("stat should still run while skipping audio: %+v", stat)
	}
	if g.CacheStats().Computes != 0 {
		t.Fatal("expected no decode while skipping audio")
	}
}

type panicStrategy struct{}

func (panicStrategy) Name() string { return "panic" }

func (panicStrategy) Attempt(context.Context, decoder.Request) (pcm.Buffer, error) {
	panic("decoder exploded")
}

func TestPanicsBecomeSentinels(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	writeReference(t, cfg)
	dec := decoder.New(decoder.OptionsFromConfig(cfg), nil, decoder.WithStrategies(panicStrategy{}))
	g := newGatewayWithDecoder(t, cfg, dec)
	ctx := context.Background()

	if vec := g.ReferenceFingerprint(ctx); vec != nil {
		t.Fatalf("expected nil after panic, got %v", vec)
	}
	if vec := g.FingerprintMedia(ctx, gateway.MediaRequest{URL: cfg.Paths.ReferenceAsset}); vec != nil {
		t.Fatalf("expected nil after panic, got %v", vec)
	}
	if probe := g.ProbeLiveDecode(ctx, gateway.MediaRequest{URL: cfg.Paths.ReferenceAsset}); probe.OK || probe.Error == "" {
		t.Fatalf("expected failed probe after panic, got %+v", probe)
	}
}

func TestResultsTasksFlush(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	g := newGateway(t, cfg)
	ctx := context.Background()

	g.RecordStep(ctx, json.RawMessage(`{"name":"audio","status":"passed"}`))
	g.RecordAction(ctx, json.RawMessage(`{"name":"login","durationMs":1200}`))
	g.RecordNavTiming(ctx, json.RawMessage(`{"url":"/"}`))
	g.RecordRequest(ctx, json.RawMessage(`{"url":"/a.mp3"}`))
	g.RecordRequestsBatch(ctx, json.RawMessage(`[{"url":"/b"},{"url":"/c"}]`))

	path := g.FlushResults(ctx)
	if path != filepath.Join(cfg.Paths.ReportsDir, results.FileName) {
		t.Fatalf("unexpected flush path %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read results: %v", err)
	}
	var report results.Report
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode results: %v", err)
	}
	if report.Summary.Pass != 1 || report.Summary.Requests != 3 || report.Summary.Actions != 1 {
		t.Fatalf("unexpected summary: %+v", report.Summary)
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := gateway.New(nil, nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestFromConfigRecordsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistory())
	ctx := context.Background()
	g, closeFn, err := gateway.FromConfig(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	g.RecordStep(ctx, json.RawMessage(`{"name":"reference","status":"failed"}`))
	if path := g.FlushResults(ctx); path == "" {
		t.Fatal("expected flush path")
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	history, err := results.OpenHistory(ctx, cfg.Results.HistoryPath)
	if err != nil {
		t.Fatalf("OpenHistory: %v", err)
	}
	defer history.Close()
	runs, err := history.ListRuns(ctx, 5)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Summary.Fail != 1 {
		t.Fatalf("unexpected history: %+v", runs)
	}
}
