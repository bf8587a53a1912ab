package decoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"soundcheck/internal/config"
	"soundcheck/internal/fingerprint"
	"soundcheck/internal/logging"
	"soundcheck/internal/pcm"
)

// Options configures a Decoder.
type Options struct {
	FFmpegBinary      string
	Timeout           time.Duration
	ReadTimeout       time.Duration
	ReconnectDelayMax int
	UserAgent         string
	Accept            string
	NativeFallback    bool
	DefaultSeconds    float64
}

// OptionsFromConfig maps the [decoder] and [fingerprint] sections onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FFmpegBinary:      cfg.Decoder.FFmpegBinary,
		Timeout:           cfg.DecodeTimeout(),
		ReadTimeout:       cfg.ReadTimeout(),
		ReconnectDelayMax: cfg.Decoder.ReconnectDelayMax,
		UserAgent:         cfg.Decoder.UserAgent,
		Accept:            cfg.Decoder.Accept,
		NativeFallback:    cfg.Decoder.NativeFallback,
		DefaultSeconds:    cfg.Fingerprint.DefaultSeconds,
	}
}

// Option customizes a Decoder.
type Option func(*Decoder)

// WithRunner replaces the process runner used by the ffmpeg strategies.
func WithRunner(runner ProcessRunner) Option {
	return func(d *Decoder) {
		if runner != nil {
			d.runner = runner
		}
	}
}

// WithHTTPClient replaces the client used by the pipe strategy.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Decoder) {
		if client != nil {
			d.client = client
		}
	}
}

// WithStrategies replaces the default strategy chain.
func WithStrategies(strategies ...Strategy) Option {
	return func(d *Decoder) {
		d.strategies = append([]Strategy(nil), strategies...)
	}
}

// Decoder decodes sources through an ordered strategy chain. It is safe for
// concurrent use.
type Decoder struct {
	opts       Options
	logger     *slog.Logger
	runner     ProcessRunner
	client     *http.Client
	strategies []Strategy
}

// New builds a Decoder with the default chain: direct, pipe, and native when enabled.
func New(opts Options, logger *slog.Logger, options ...Option) *Decoder {
	if opts.DefaultSeconds <= 0 {
		opts.DefaultSeconds = 5
	}
	d := &Decoder{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "decoder"),
		runner: ExecRunner{Timeout: opts.Timeout},
		client: &http.Client{Timeout: opts.Timeout},
	}
	for _, opt := range options {
		opt(d)
	}
	if d.strategies == nil {
		d.strategies = d.defaultStrategies()
	}
	return d
}

func (d *Decoder) defaultStrategies() []Strategy {
	settings := ffmpegSettings{
		binary:            d.opts.FFmpegBinary,
		runner:            d.runner,
		reconnectDelayMax: d.opts.ReconnectDelayMax,
		readTimeout:       d.opts.ReadTimeout,
		userAgent:         d.opts.UserAgent,
		accept:            d.opts.Accept,
	}
	chain := []Strategy{
		DirectInvoke{ffmpegSettings: settings},
		PipeFallback{ffmpegSettings: settings, client: d.client},
	}
	if d.opts.NativeFallback {
		chain = append(chain, NativeFile{})
	}
	return chain
}

// Strategies returns the names of the configured strategies in order.
func (d *Decoder) Strategies() []string {
	names := make([]string, len(d.strategies))
	for i, s := range d.strategies {
		names[i] = s.Name()
	}
	return names
}

// Decode returns up to seconds of src as mono PCM at the fingerprint sample
// rate. Non-positive seconds use the configured default.
func (d *Decoder) Decode(ctx context.Context, src Source, seconds float64) (pcm.Buffer, error) {
	return d.DecodeAt(ctx, src, seconds, fingerprint.SampleRate)
}

// DecodeAt is Decode with an explicit output sample rate.
func (d *Decoder) DecodeAt(ctx context.Context, src Source, seconds float64, sampleRate int) (pcm.Buffer, error) {
	if seconds <= 0 {
		seconds = d.opts.DefaultSeconds
	}
	if sampleRate <= 0 {
		sampleRate = fingerprint.SampleRate
	}
	if err := src.Check(); err != nil {
		return pcm.Buffer{}, err
	}
	if len(d.strategies) == 0 {
		return pcm.Buffer{}, fmt.Errorf("%w: no strategies configured", ErrDecode)
	}

	logger := logging.WithContext(ctx, d.logger).With(logging.String(logging.FieldSource, src.Location))
	req := Request{Source: src, Seconds: seconds, SampleRate: sampleRate}
	errs := make([]error, 0, len(d.strategies))
	for _, strategy := range d.strategies {
		start := time.Now()
		buf, err := strategy.Attempt(ctx, req)
		if err == nil && buf.Len() == 0 {
			err = errors.New("no samples decoded")
		}
		if err == nil {
			buf = buf.Truncate(seconds)
			logger.Debug("source decoded",
				logging.String(logging.FieldStrategy, strategy.Name()),
				logging.Int("samples", buf.Len()),
				logging.Duration("elapsed", time.Since(start)),
			)
			return buf, nil
		}
		logger.Debug("decode strategy failed",
			logging.String(logging.FieldStrategy, strategy.Name()),
			logging.Error(err),
			logging.Duration("elapsed", time.Since(start)),
		)
		errs = append(errs, fmt.Errorf("%s: %w", strategy.Name(), err))
		if ctxErr := ctx.Err(); ctxErr != nil {
			errs = append(errs, ctxErr)
			break
		}
	}
	return pcm.Buffer{}, fmt.Errorf("%w: %w", ErrDecode, errors.Join(errs...))
}
