// Package similarity scores two fingerprints with cosine similarity.
//
// Compare never fails: empty, zero-magnitude or non-finite inputs score 0 and
// are flagged degenerate, and vectors of different lengths are rejected
// rather than padded.
package similarity

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultThreshold is the pass mark used when callers do not supply one.
const DefaultThreshold = 0.90

// Reasons reported when a comparison cannot produce a meaningful score.
const (
	ReasonEmpty             = "empty_vector"
	ReasonZeroMagnitude     = "zero_magnitude"
	ReasonNonFinite         = "non_finite"
	ReasonDimensionMismatch = "dimension_mismatch"
)

// Result is the outcome of a comparison.
type Result struct {
	Score      float64 `json:"score"`
	Pass       bool    `json:"pass"`
	Degenerate bool    `json:"degenerate,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// Compare returns the cosine similarity of a and b and whether it reaches threshold.
func Compare(a, b []float64, threshold float64) Result {
	if len(a) == 0 || len(b) == 0 {
		return degenerate(ReasonEmpty)
	}
	if len(a) != len(b) {
		return Result{Reason: ReasonDimensionMismatch}
	}
	if !finite(a) || !finite(b) {
		return degenerate(ReasonNonFinite)
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return degenerate(ReasonZeroMagnitude)
	}

	score := floats.Dot(a, b) / (na * nb)
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return degenerate(ReasonNonFinite)
	}
	score = math.Max(-1, math.Min(1, score))
	return Result{Score: score, Pass: score >= threshold}
}

func degenerate(reason string) Result {
	return Result{Degenerate: true, Reason: reason}
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
