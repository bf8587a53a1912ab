package fingerprint

const (
	// SampleRate is the PCM rate the extractor expects.
	SampleRate = 16000
	// WindowSize is the analysis frame length in samples.
	WindowSize = 1024
	// HopSize is the distance between consecutive frame starts.
	HopSize = 512
	// MelBands is the number of triangular mel filters.
	MelBands = 26
	// MFCCCoefficients is the number of cepstral coefficients kept per frame.
	MFCCCoefficients = 13
	// ChromaBins is the number of pitch classes.
	ChromaBins = 12
	// Dimensions is the length of a non-empty Vector.
	Dimensions = MFCCCoefficients + ChromaBins
)

// Vector is a fingerprint: mean MFCC coefficients followed by mean chroma.
// An empty Vector means the input was too short to analyse.
type Vector []float64

// Empty reports whether v carries no features.
func (v Vector) Empty() bool { return len(v) == 0 }

// MFCC returns the cepstral part of v, or nil when v is not full length.
func (v Vector) MFCC() []float64 {
	if len(v) != Dimensions {
		return nil
	}
	return v[:MFCCCoefficients]
}

// Chroma returns the pitch-class part of v, or nil when v is not full length.
func (v Vector) Chroma() []float64 {
	if len(v) != Dimensions {
		return nil
	}
	return v[MFCCCoefficients:]
}

// Clone returns a copy of v. Nil stays nil.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	return append(Vector(nil), v...)
}

// FrameCount returns how many full analysis frames n samples yield.
func FrameCount(n int) int {
	if n < WindowSize {
		return 0
	}
	return 1 + (n-WindowSize)/HopSize
}
