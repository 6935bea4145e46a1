package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrModelLoad means the embedding backend could not be obtained. Fatal at startup.
	ErrModelLoad = errors.New("embedding model load failed")
	// ErrNotLoaded is returned by encode calls made before a successful Load.
	ErrNotLoaded = errors.New("embedding model not loaded")
	// ErrEmbeddingTimeout means the caller's deadline expired during embedding. Retryable.
	ErrEmbeddingTimeout = errors.New("embedding timed out")
)

func errInvalidDimension(dim int) error {
	return fmt.Errorf("invalid embedding dimension %d", dim)
}
