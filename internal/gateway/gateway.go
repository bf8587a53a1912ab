package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"soundcheck/internal/config"
	"soundcheck/internal/decoder"
	"soundcheck/internal/deps"
	"soundcheck/internal/fingerprint"
	"soundcheck/internal/logging"
	"soundcheck/internal/media/ffprobe"
	"soundcheck/internal/refcache"
	"soundcheck/internal/results"
	"soundcheck/internal/similarity"
)

const (
	// maxSeconds caps per-call decode durations.
	maxSeconds = 600
	// probeTimeout bounds the best-effort ffprobe call in StatReference.
	probeTimeout = 10 * time.Second
)

// errAudioSkipped is reported by probes while audio checks are disabled.
var errAudioSkipped = errors.New("audio checks skipped")

// DurationProbe returns the duration of a local media file in seconds.
type DurationProbe func(ctx context.Context, path string) (float64, error)

// Option customizes a Gateway.
type Option func(*Gateway)

// WithDurationProbe replaces the ffprobe-backed duration lookup.
func WithDurationProbe(probe DurationProbe) Option {
	return func(g *Gateway) {
		g.probe = probe
	}
}

// Gateway serves the fingerprint tasks. It is safe for concurrent use.
type Gateway struct {
	cfg     *config.Config
	decoder *decoder.Decoder
	cache   *refcache.Cache
	sink    *results.Sink
	logger  *slog.Logger
	probe   DurationProbe
}

// New wires a gateway. sink may be nil, in which case the results tasks are
// accepted and discarded and flushResults returns nil.
func New(cfg *config.Config, dec *decoder.Decoder, cache *refcache.Cache, sink *results.Sink, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if cfg == nil || dec == nil || cache == nil {
		return nil, errors.New("gateway requires config, decoder, and cache")
	}
	g := &Gateway{
		cfg:     cfg,
		decoder: dec,
		cache:   cache,
		sink:    sink,
		logger:  logging.NewComponentLogger(logger, "gateway"),
	}
	g.probe = g.ffprobeDuration
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Config returns the configuration the gateway was built with.
func (g *Gateway) Config() *config.Config { return g.cfg }

// CacheStats reports reference cache activity.
func (g *Gateway) CacheStats() refcache.Stats { return g.cache.Stats() }

// Strategies lists the decoder strategy chain.
func (g *Gateway) Strategies() []string { return g.decoder.Strategies() }

// ReferenceFingerprint returns the fingerprint of the configured reference
// asset, computing it at most once per (path, mtime, version). It returns nil
// when the asset is missing or cannot be decoded.
func (g *Gateway) ReferenceFingerprint(ctx context.Context) fingerprint.Vector {
	return guard(ctx, g, "referenceFingerprint", nil, func() fingerprint.Vector {
		if g.cfg.Fingerprint.SkipAudio {
			return nil
		}
		vector, err := g.reference(ctx)
		if err != nil {
			g.warn(ctx, "reference fingerprint unavailable", "reference_unavailable", err,
				"place the reference asset at paths.reference_asset or fix its format")
			return nil
		}
		return vector
	})
}

func (g *Gateway) reference(ctx context.Context) (fingerprint.Vector, error) {
	path := g.cfg.Paths.ReferenceAsset
	key, _, err := refcache.KeyForFile(path, g.cfg.Fingerprint.ReferenceVersion)
	if err != nil {
		return nil, err
	}
	return g.cache.Get(ctx, key, func(ctx context.Context) (fingerprint.Vector, error) {
		return g.fingerprintSource(ctx, decoder.FileSource(path), 0)
	})
}

// StatReference reports whether the reference asset exists, with its size,
// modification time and, when ffprobe is available, its duration.
func (g *Gateway) StatReference(ctx context.Context) StatResult {
	path := g.cfg.Paths.ReferenceAsset
	return guard(ctx, g, "statReference", StatResult{Path: path, Error: "internal error"}, func() StatResult {
		result := StatResult{Path: path}
		_, info, err := refcache.KeyForFile(path, g.cfg.Fingerprint.ReferenceVersion)
		if err != nil {
			result.Error = err.Error()
			return result
		}
		size := info.Size()
		mtime := info.ModTime().UTC()
		result.Exists = true
		result.Size = &size
		result.MTime = &mtime

		if g.probe != nil {
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()
			if seconds, err := g.probe(probeCtx, path); err == nil && seconds > 0 {
				result.DurationSeconds = &seconds
			} else if err != nil {
				logging.WithContext(ctx, g.logger).Debug("reference duration unavailable", logging.Error(err))
			}
		}
		return result
	})
}

// ProbeReferenceDecode runs a full decode of the reference asset, bypassing
// the cache.
func (g *Gateway) ProbeReferenceDecode(ctx context.Context) ProbeResult {
	return guard(ctx, g, "probeReferenceDecode", ProbeResult{Error: "internal error"}, func() ProbeResult {
		return g.probeDecode(ctx, decoder.FileSource(g.cfg.Paths.ReferenceAsset), 0)
	})
}

// ProbeLiveDecode runs a full decode of req.URL.
func (g *Gateway) ProbeLiveDecode(ctx context.Context, req MediaRequest) ProbeResult {
	return guard(ctx, g, "probeLiveDecode", ProbeResult{Error: "internal error"}, func() ProbeResult {
		src, err := decoder.ParseSource(req.URL)
		if err != nil {
			return ProbeResult{Error: err.Error()}
		}
		return g.probeDecode(ctx, src, req.Seconds)
	})
}

func (g *Gateway) probeDecode(ctx context.Context, src decoder.Source, seconds float64) ProbeResult {
	if g.cfg.Fingerprint.SkipAudio {
		return ProbeResult{Error: errAudioSkipped.Error()}
	}
	buf, err := g.decoder.Decode(ctx, src, g.seconds(seconds))
	if err != nil {
		g.warn(ctx, "decode probe failed", "decode_probe_failed", err, hintFor(err))
		return ProbeResult{Error: err.Error()}
	}
	return ProbeResult{OK: true, Samples: buf.Len()}
}

// FingerprintAudioFromURL fingerprints the default duration of a directly
// fetchable audio URL or local path. It returns nil on any failure.
func (g *Gateway) FingerprintAudioFromURL(ctx context.Context, url string) fingerprint.Vector {
	return g.FingerprintMedia(logging.WithTask(ctx, "fingerprintAudioFromUrl"), MediaRequest{URL: url})
}

// FingerprintMedia fingerprints the first req.Seconds of a file, HTTP file or
// HLS/DASH manifest. It returns nil on any failure.
func (g *Gateway) FingerprintMedia(ctx context.Context, req MediaRequest) fingerprint.Vector {
	return guard(ctx, g, "fingerprintMedia", nil, func() fingerprint.Vector {
		if g.cfg.Fingerprint.SkipAudio {
			return nil
		}
		src, err := decoder.ParseSource(req.URL)
		if err != nil {
			g.warn(ctx, "invalid media source", "media_source_invalid", err, "pass an http(s) URL or a local path")
			return nil
		}
		vector, err := g.fingerprintSource(ctx, src, req.Seconds)
		if err != nil {
			g.warn(ctx, "live fingerprint unavailable", "fingerprint_failed", err, hintFor(err))
			return nil
		}
		return vector
	})
}

// CompareFingerprints scores a against b. A nil threshold uses the
// configured default.
func (g *Gateway) CompareFingerprints(ctx context.Context, req CompareRequest) similarity.Result {
	return guard(ctx, g, "compareFingerprints", similarity.Result{}, func() similarity.Result {
		threshold := g.cfg.Fingerprint.Threshold
		if req.Threshold != nil {
			threshold = *req.Threshold
		}
		result := similarity.Compare(req.A, req.B, threshold)
		logging.WithContext(ctx, g.logger).Info("fingerprints compared",
			logging.Float64("score", result.Score),
			logging.Bool("pass", result.Pass),
			logging.Float64("threshold", threshold),
			logging.String("reason", result.Reason),
		)
		return result
	})
}

func (g *Gateway) fingerprintSource(ctx context.Context, src decoder.Source, seconds float64) (fingerprint.Vector, error) {
	buf, err := g.decoder.Decode(ctx, src, g.seconds(seconds))
	if err != nil {
		return nil, err
	}
	vector, err := fingerprint.ExtractBuffer(buf)
	if err != nil {
		return nil, err
	}
	if vector.Empty() {
		return nil, fmt.Errorf("%w: %d samples is shorter than one analysis window", decoder.ErrDecode, buf.Len())
	}
	return vector, nil
}

func (g *Gateway) seconds(requested float64) float64 {
	switch {
	case requested <= 0:
		return g.cfg.Fingerprint.DefaultSeconds
	case requested > maxSeconds:
		return maxSeconds
	default:
		return requested
	}
}

// RecordStep appends a step record to the run results.
func (g *Gateway) RecordStep(ctx context.Context, record json.RawMessage) {
	g.record(ctx, "recordStep", func(s *results.Sink) { s.RecordStep(record) })
}

// RecordAction appends an action record to the run results.
func (g *Gateway) RecordAction(ctx context.Context, record json.RawMessage) {
	g.record(ctx, "recordAction", func(s *results.Sink) { s.RecordAction(record) })
}

// RecordNavTiming appends a navigation timing record to the run results.
func (g *Gateway) RecordNavTiming(ctx context.Context, record json.RawMessage) {
	g.record(ctx, "recordNavTiming", func(s *results.Sink) { s.RecordNavTiming(record) })
}

// RecordRequest appends a request record to the run results.
func (g *Gateway) RecordRequest(ctx context.Context, record json.RawMessage) {
	g.record(ctx, "recordRequest", func(s *results.Sink) { s.RecordRequest(record) })
}

// RecordRequestsBatch appends each element of a JSON array of requests.
func (g *Gateway) RecordRequestsBatch(ctx context.Context, batch json.RawMessage) {
	g.record(ctx, "recordRequestsBatch", func(s *results.Sink) {
		if !s.RecordRequestsBatch(batch) {
			logging.WithContext(ctx, g.logger).Debug("requests batch ignored: not an array")
		}
	})
}

func (g *Gateway) record(ctx context.Context, task string, fn func(*results.Sink)) {
	guard(ctx, g, task, struct{}{}, func() struct{} {
		if g.sink != nil {
			fn(g.sink)
		}
		return struct{}{}
	})
}

// FlushResults writes results.json and returns its path, or "" when there is
// no sink or the write failed.
func (g *Gateway) FlushResults(ctx context.Context) string {
	return guard(ctx, g, "flushResults", "", func() string {
		if g.sink == nil {
			return ""
		}
		path, err := g.sink.Flush(ctx)
		if err != nil {
			g.warn(ctx, "results flush failed", "results_flush_failed", err, "check paths.reports_dir permissions")
			return ""
		}
		return path
	})
}

func (g *Gateway) ffprobeDuration(ctx context.Context, path string) (float64, error) {
	binary := g.cfg.Decoder.FFprobeBinary
	if _, err := deps.ResolveBinary(binary); err != nil {
		return 0, err
	}
	result, err := ffprobe.Inspect(ctx, binary, path)
	if err != nil {
		return 0, err
	}
	return result.DurationSeconds(), nil
}

func (g *Gateway) warn(ctx context.Context, msg, eventType string, err error, hint string) {
	logging.WarnWithContext(logging.WithContext(ctx, g.logger), msg, eventType,
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hint),
	)
}

func hintFor(err error) string {
	switch {
	case errors.Is(err, decoder.ErrSourceNotFound):
		return "check the file path"
	case errors.Is(err, decoder.ErrTimeout):
		return "raise decoder.timeout_seconds or check the stream"
	case errors.Is(err, decoder.ErrNetwork):
		return "check the URL is reachable and not blocked by the CDN"
	case errors.Is(err, decoder.ErrInvalidSource):
		return "pass an http(s) URL or a local path"
	default:
		return "run `soundcheck deps` and check the source format"
	}
}

// guard runs fn and converts a panic into sentinel.
func guard[T any](ctx context.Context, g *Gateway, task string, sentinel T, fn func() T) (out T) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := logging.TaskFromContext(ctx); !ok {
				ctx = logging.WithTask(ctx, task)
			}
			logging.ErrorWithContext(logging.WithContext(ctx, g.logger), "task panicked", "task_panic",
				logging.Any("panic", r),
				logging.String(logging.FieldImpact, "task returned its fallback result"),
			)
			out = sentinel
		}
	}()
	return fn()
}
