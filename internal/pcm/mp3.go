package pcm

import (
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always emits interleaved 16-bit little-endian stereo.
const (
	mp3Channels      = 2
	mp3BytesPerFrame = 4
)

// DecodeMP3 decodes an MP3 stream to mono at rate, reading no more than
// maxSeconds of audio when maxSeconds is positive.
func DecodeMP3(r io.Reader, rate int, maxSeconds float64) (Buffer, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return Buffer{}, fmt.Errorf("mp3 header: %w", err)
	}
	srcRate := decoder.SampleRate()
	if srcRate <= 0 {
		return Buffer{}, fmt.Errorf("mp3 sample rate %d: %w", srcRate, ErrUnsupported)
	}

	var src io.Reader = decoder
	if frames := MaxSamples(maxSeconds, srcRate); frames > 0 {
		src = io.LimitReader(decoder, int64(frames*mp3BytesPerFrame))
	}
	raw, err := io.ReadAll(src)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Buffer{}, fmt.Errorf("mp3 decode: %w", err)
	}
	if len(raw) == 0 {
		return Buffer{}, fmt.Errorf("mp3 decode: no audio frames: %w", ErrUnsupported)
	}

	stereo := FromS16LE(raw[:len(raw)-len(raw)%mp3BytesPerFrame], srcRate).Samples
	mono := Downmix(stereo, mp3Channels)
	out := Buffer{Samples: Resample(mono, srcRate, rate), SampleRate: rate}
	return out.Truncate(maxSeconds), nil
}
