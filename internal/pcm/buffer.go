package pcm

import (
	"encoding/binary"
	"math"
	"time"
)

// Buffer is a mono run of samples in [-1, 1].
type Buffer struct {
	Samples    []float64
	SampleRate int
}

// Len returns the number of samples.
func (b Buffer) Len() int { return len(b.Samples) }

// Duration returns the playback length of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// Clone returns a buffer that does not share sample storage with b.
func (b Buffer) Clone() Buffer {
	return Buffer{Samples: append([]float64(nil), b.Samples...), SampleRate: b.SampleRate}
}

// Truncate limits the buffer to the first seconds of audio. Non-positive
// seconds leave the buffer untouched.
func (b Buffer) Truncate(seconds float64) Buffer {
	limit := MaxSamples(seconds, b.SampleRate)
	if limit <= 0 || len(b.Samples) <= limit {
		return b
	}
	return Buffer{Samples: b.Samples[:limit], SampleRate: b.SampleRate}
}

// MaxSamples converts a duration in seconds to a sample count at rate. It
// returns 0 when either value is non-positive.
func MaxSamples(seconds float64, rate int) int {
	if seconds <= 0 || rate <= 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	return int(math.Floor(seconds * float64(rate)))
}

// FromS16LE converts signed 16-bit little-endian mono PCM into a Buffer.
// A trailing odd byte is ignored.
func FromS16LE(data []byte, rate int) Buffer {
	count := len(data) / 2
	samples := make([]float64, count)
	for i := range count {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = clamp(float64(v) / 32768)
	}
	return Buffer{Samples: samples, SampleRate: rate}
}

// ToS16LE is the inverse of FromS16LE, rounding to the nearest step.
func ToS16LE(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(toInt16(s)))
	}
	return out
}

func toInt16(s float64) int16 {
	v := math.Round(clamp(s) * 32768)
	if v > math.MaxInt16 {
		v = math.MaxInt16
	}
	return int16(v)
}

func clamp(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}

// Downmix averages interleaved frames of the given channel count into mono.
// A partial trailing frame is dropped.
func Downmix(interleaved []float64, channels int) []float64 {
	if channels <= 1 {
		return append([]float64(nil), interleaved...)
	}
	frames := len(interleaved) / channels
	mono := make([]float64, frames)
	for f := range frames {
		var sum float64
		base := f * channels
		for c := range channels {
			sum += interleaved[base+c]
		}
		mono[f] = sum / float64(channels)
	}
	return mono
}

// Resample converts samples from one rate to another with linear
// interpolation. Equal or invalid rates return a copy.
func Resample(samples []float64, from, to int) []float64 {
	if from <= 0 || to <= 0 || from == to || len(samples) == 0 {
		return append([]float64(nil), samples...)
	}
	ratio := float64(from) / float64(to)
	n := int(int64(len(samples)) * int64(to) / int64(from))
	out := make([]float64, n)
	last := len(samples) - 1
	for i := range n {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= last {
			out[i] = samples[last]
			continue
		}
		frac := pos - float64(idx)
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}
