package decoder

import (
	"context"
	"errors"
	"io"
	"time"

	"soundcheck/internal/pcm"
)

// Request is what every strategy is asked to decode.
type Request struct {
	Source     Source
	Seconds    float64
	SampleRate int
}

// Strategy is one way of turning a Source into PCM.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, req Request) (pcm.Buffer, error)
}

// ffmpegSettings are shared by the strategies that shell out to ffmpeg.
type ffmpegSettings struct {
	binary            string
	runner            ProcessRunner
	reconnectDelayMax int
	readTimeout       time.Duration
	userAgent         string
	accept            string
}

func (s ffmpegSettings) spec(req Request, input string, stdin bool) argSpec {
	return argSpec{
		input:             input,
		remote:            req.Source.IsRemote() && !stdin,
		manifest:          req.Source.IsManifest(),
		stdin:             stdin,
		seconds:           req.Seconds,
		sampleRate:        req.SampleRate,
		reconnectDelayMax: s.reconnectDelayMax,
		readTimeout:       s.readTimeout,
		userAgent:         s.userAgent,
		accept:            s.accept,
	}
}

// run executes ffmpeg and converts its stdout to PCM. Empty output is a
// decode failure even when ffmpeg exits cleanly.
func (s ffmpegSettings) run(ctx context.Context, req Request, args []string, stdin io.Reader) (pcm.Buffer, error) {
	res, err := s.runner.Run(ctx, Command{Path: s.binary, Args: args, Stdin: stdin})
	if err != nil {
		return pcm.Buffer{}, &DecodeError{ExitCode: res.ExitCode, Stderr: res.Stderr, Err: err}
	}
	if len(res.Stdout) < 2 {
		return pcm.Buffer{}, &DecodeError{ExitCode: res.ExitCode, Stderr: res.Stderr, Err: errors.New("no audio output")}
	}
	return pcm.FromS16LE(res.Stdout, req.SampleRate), nil
}

// DirectInvoke hands the source location straight to ffmpeg.
type DirectInvoke struct {
	ffmpegSettings
}

func (DirectInvoke) Name() string { return "direct" }

// Attempt runs ffmpeg on the source location. A remote URL without an
// extension may be a signed playlist, so a failed attempt on one is retried
// once with the playlist extension allow-list.
func (d DirectInvoke) Attempt(ctx context.Context, req Request) (pcm.Buffer, error) {
	spec := d.spec(req, req.Source.Location, false)
	buf, err := d.run(ctx, req, ffmpegArgs(spec), nil)
	if err == nil || spec.manifest || !req.Source.MaybeManifest() || ctx.Err() != nil {
		return buf, err
	}
	spec.manifest = true
	retry, retryErr := d.run(ctx, req, ffmpegArgs(spec), nil)
	if retryErr != nil {
		return pcm.Buffer{}, errors.Join(err, retryErr)
	}
	return retry, nil
}
