package pcm

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrUnsupported reports a container or sample format the native decoders cannot read.
var ErrUnsupported = errors.New("unsupported audio format")

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
	wavReadFrames       = 4096
)

// DecodeWAV reads an integer PCM WAV stream, downmixes it to mono, resamples
// it to rate, and keeps at most maxSeconds of audio (all of it when
// maxSeconds is non-positive).
func DecodeWAV(r io.ReadSeeker, rate int, maxSeconds float64) (Buffer, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		if err := decoder.Err(); err != nil {
			return Buffer{}, fmt.Errorf("wav header: %w", err)
		}
		return Buffer{}, fmt.Errorf("wav header: %w", ErrUnsupported)
	}
	switch decoder.WavAudioFormat {
	case wavFormatPCM, wavFormatExtensible:
	default:
		return Buffer{}, fmt.Errorf("wav audio format %d: %w", decoder.WavAudioFormat, ErrUnsupported)
	}

	channels := int(decoder.NumChans)
	srcRate := int(decoder.SampleRate)
	bitDepth := int(decoder.BitDepth)
	if srcRate <= 0 {
		return Buffer{}, fmt.Errorf("wav sample rate %d: %w", srcRate, ErrUnsupported)
	}
	scale, offset, err := intScale(bitDepth)
	if err != nil {
		return Buffer{}, err
	}

	frameLimit := MaxSamples(maxSeconds, srcRate)
	buf := &audio.IntBuffer{
		Data:   make([]int, wavReadFrames*channels),
		Format: &audio.Format{NumChannels: channels, SampleRate: srcRate},
	}
	interleaved := make([]float64, 0, wavReadFrames*channels)
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return Buffer{}, fmt.Errorf("wav pcm: %w", err)
		}
		if n == 0 {
			break
		}
		for _, v := range buf.Data[:n] {
			interleaved = append(interleaved, clamp((float64(v)-offset)/scale))
		}
		if frameLimit > 0 && len(interleaved)/channels >= frameLimit {
			break
		}
	}

	mono := Downmix(interleaved, channels)
	if frameLimit > 0 && len(mono) > frameLimit {
		mono = mono[:frameLimit]
	}
	out := Buffer{Samples: Resample(mono, srcRate, rate), SampleRate: rate}
	return out.Truncate(maxSeconds), nil
}

// intScale returns the divisor and zero offset for a WAV integer bit depth.
// 8-bit WAV samples are unsigned.
func intScale(bitDepth int) (float64, float64, error) {
	switch bitDepth {
	case 8:
		return 128, 128, nil
	case 16:
		return 1 << 15, 0, nil
	case 24:
		return 1 << 23, 0, nil
	case 32:
		return 1 << 31, 0, nil
	default:
		return 0, 0, fmt.Errorf("wav bit depth %d: %w", bitDepth, ErrUnsupported)
	}
}

// EncodeWAV writes b as a mono 16-bit PCM WAV stream.
func EncodeWAV(w io.WriteSeeker, b Buffer) error {
	if b.SampleRate <= 0 {
		return fmt.Errorf("encode wav: invalid sample rate %d", b.SampleRate)
	}
	encoder := wav.NewEncoder(w, b.SampleRate, 16, 1, wavFormatPCM)
	data := make([]int, len(b.Samples))
	for i, s := range b.Samples {
		data[i] = int(toInt16(s))
	}
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: 1, SampleRate: b.SampleRate},
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return nil
}
