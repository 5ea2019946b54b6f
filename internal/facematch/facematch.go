// Package facematch implements the face match decision: Euclidean distance
// between two embeddings classified against a distance threshold.
package facematch

import (
	"errors"
	"fmt"
	"math"
)

// ErrIncompatibleEmbedding indicates the probe and reference embeddings
// cannot be compared (empty or different dimensionality).
var ErrIncompatibleEmbedding = errors.New("incompatible embeddings")

// Result is the outcome of comparing two embeddings.
type Result struct {
	Matched  bool
	Distance float64
}

// Decide compares a probe embedding against a reference embedding and
// classifies them as the same person when their Euclidean distance is
// strictly below threshold. Both embeddings must be non-empty and of equal
// length; a mismatch is an error, never a truncated comparison. The
// distance is always returned so callers can inspect the margin.
func Decide(probe, reference []float32, threshold float64) (Result, error) {
	if len(probe) == 0 || len(reference) == 0 {
		return Result{}, fmt.Errorf("%w: empty embedding", ErrIncompatibleEmbedding)
	}
	if len(probe) != len(reference) {
		return Result{}, fmt.Errorf("%w: probe dim %d, reference dim %d",
			ErrIncompatibleEmbedding, len(probe), len(reference))
	}

	var sum float64
	for i := range probe {
		d := float64(probe[i]) - float64(reference[i])
		sum += d * d
	}
	distance := math.Sqrt(sum)

	return Result{
		Matched:  distance < threshold,
		Distance: distance,
	}, nil
}
