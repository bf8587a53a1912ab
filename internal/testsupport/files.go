package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"soundcheck/internal/pcm"
)

// WriteFile writes data to path, creating parent directories.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Tone returns seconds of a sine at freq Hz, amplitude 0.5, at rate.
func Tone(freq, seconds float64, rate int) pcm.Buffer {
	n := int(seconds * float64(rate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return pcm.Buffer{Samples: samples, SampleRate: rate}
}

// Chord mixes sines at each frequency with equal weight.
func Chord(freqs []float64, seconds float64, rate int) pcm.Buffer {
	out := pcm.Buffer{Samples: make([]float64, int(seconds*float64(rate))), SampleRate: rate}
	if len(freqs) == 0 {
		return out
	}
	for _, f := range freqs {
		tone := Tone(f, seconds, rate)
		for i := range out.Samples {
			out.Samples[i] += tone.Samples[i] / float64(len(freqs))
		}
	}
	return out
}

// WriteWAV encodes buf as a mono 16-bit WAV at path.
func WriteWAV(t testing.TB, path string, buf pcm.Buffer) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := pcm.EncodeWAV(f, buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// WriteToneWAV writes a sine WAV at path.
func WriteToneWAV(t testing.TB, path string, freq, seconds float64, rate int) {
	t.Helper()
	WriteWAV(t, path, Tone(freq, seconds, rate))
}
