package extractor

import (
	"context"
	"errors"
)

// Embedding is a fixed-length vector summarizing a face's distinguishing
// features. All embeddings compared against each other must come from the
// same model.
type Embedding = []float32

// ErrNoFace indicates the model found no face in the submitted image.
var ErrNoFace = errors.New("no face detected")

// Client exposes the subset of the recognition service used by the flows.
type Client interface {
	// Extract computes the face embedding for an encoded image.
	Extract(ctx context.Context, image []byte) (Embedding, error)
}
