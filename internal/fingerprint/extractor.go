package fingerprint

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sync"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"

	"soundcheck/internal/pcm"
)

// ErrSampleRate is returned by ExtractBuffer for PCM at any rate other than SampleRate.
var ErrSampleRate = errors.New("fingerprint: unexpected sample rate")

const (
	chromaMinHz   = 32.7
	chromaRefHz   = 440.0
	chromaRefBin  = 9 // A, with C at 0
	spectrumBins  = WindowSize/2 + 1
	binResolution = float64(SampleRate) / WindowSize
)

// Extractor computes fingerprints. It owns FFT scratch space and is not safe
// for concurrent use; the package-level Extract draws from a pool instead.
type Extractor struct {
	window []float64
	fft    *fourier.FFT
	dct    [][]float64
	mel    [][]float64
	chroma []int
	frame  []float64
	coeffs []complex128
	power  []float64
	bands  []float64
}

// NewExtractor builds the window, filterbank and transforms.
func NewExtractor() *Extractor {
	return &Extractor{
		window: window.Hann(WindowSize),
		fft:    fourier.NewFFT(WindowSize),
		dct:    dctBasis(),
		mel:    melFilterbank(),
		chroma: chromaMap(),
		frame:  make([]float64, WindowSize),
		coeffs: make([]complex128, spectrumBins),
		power:  make([]float64, spectrumBins),
		bands:  make([]float64, MelBands),
	}
}

var pool = sync.Pool{New: func() any { return NewExtractor() }}

// Extract fingerprints samples (mono, SampleRate). It returns an empty Vector
// when fewer than WindowSize samples are supplied.
func Extract(samples []float64) Vector {
	e := pool.Get().(*Extractor)
	defer pool.Put(e)
	return e.Extract(samples)
}

// ExtractBuffer is Extract with a sample-rate check.
func ExtractBuffer(buf pcm.Buffer) (Vector, error) {
	if buf.SampleRate != SampleRate {
		return nil, fmt.Errorf("%w: got %d Hz, want %d Hz", ErrSampleRate, buf.SampleRate, SampleRate)
	}
	return Extract(buf.Samples), nil
}

// Extract fingerprints samples using e's scratch buffers.
func (e *Extractor) Extract(samples []float64) Vector {
	frames := FrameCount(len(samples))
	if frames == 0 {
		return Vector{}
	}

	sum := make([]float64, Dimensions)
	perFrame := make([]float64, Dimensions)
	for f := range frames {
		start := f * HopSize
		e.analyse(samples[start:start+WindowSize], perFrame)
		floats.Add(sum, perFrame)
	}
	floats.Scale(1/float64(frames), sum)
	return Vector(sum)
}

// analyse writes MFCC ‖ chroma for one frame into dst.
func (e *Extractor) analyse(frame, dst []float64) {
	floats.MulTo(e.frame, frame, e.window)
	e.fft.Coefficients(e.coeffs, e.frame)
	for i, c := range e.coeffs {
		mag := cmplx.Abs(c)
		e.power[i] = mag * mag
	}

	for b, weights := range e.mel {
		e.bands[b] = math.Log1p(floats.Dot(weights, e.power))
	}
	for k, basis := range e.dct {
		dst[k] = floats.Dot(basis, e.bands)
	}

	chroma := dst[MFCCCoefficients:]
	for i := range chroma {
		chroma[i] = 0
	}
	for bin, class := range e.chroma {
		if class >= 0 {
			chroma[class] += e.power[bin]
		}
	}
	if peak := floats.Max(chroma); peak > 0 {
		floats.Scale(1/peak, chroma)
	}
}

// dctBasis returns the first MFCCCoefficients rows of the orthonormal DCT-II
// over MelBands inputs.
func dctBasis() [][]float64 {
	rows := make([][]float64, MFCCCoefficients)
	for k := range rows {
		scale := math.Sqrt(2.0 / MelBands)
		if k == 0 {
			scale = math.Sqrt(1.0 / MelBands)
		}
		row := make([]float64, MelBands)
		for n := range row {
			row[n] = scale * math.Cos(math.Pi*float64(k)*(float64(n)+0.5)/MelBands)
		}
		rows[k] = row
	}
	return rows
}

func hzToMel(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }

func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

// melFilterbank returns MelBands triangular filters spanning 0 Hz to Nyquist,
// each a weight per spectrum bin.
func melFilterbank() [][]float64 {
	nyquist := float64(SampleRate) / 2
	maxMel := hzToMel(nyquist)
	edges := make([]float64, MelBands+2)
	for i := range edges {
		edges[i] = melToHz(maxMel * float64(i) / float64(MelBands+1))
	}

	bank := make([][]float64, MelBands)
	for b := range MelBands {
		lo, center, hi := edges[b], edges[b+1], edges[b+2]
		weights := make([]float64, spectrumBins)
		for k := range spectrumBins {
			hz := float64(k) * binResolution
			switch {
			case hz > lo && hz <= center:
				weights[k] = (hz - lo) / (center - lo)
			case hz > center && hz < hi:
				weights[k] = (hi - hz) / (hi - center)
			}
		}
		bank[b] = weights
	}
	return bank
}

// chromaMap assigns each spectrum bin a pitch class, or -1 below chromaMinHz.
func chromaMap() []int {
	classes := make([]int, spectrumBins)
	for k := range spectrumBins {
		hz := float64(k) * binResolution
		if hz < chromaMinHz {
			classes[k] = -1
			continue
		}
		semitones := int(math.Round(12 * math.Log2(hz/chromaRefHz)))
		classes[k] = ((semitones+chromaRefBin)%ChromaBins + ChromaBins) % ChromaBins
	}
	return classes
}
