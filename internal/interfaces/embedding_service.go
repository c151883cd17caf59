package interfaces

import (
	"context"

	"github.com/ternarybob/responsum/internal/models"
)

// EmbeddingService generates vector embeddings of a fixed dimension.
// Every vector returned has exactly Dimension() finite components; any
// backend failure or malformed vector surfaces as an error wrapping
// ErrEmbeddingUnavailable, never as a partial vector.
type EmbeddingService interface {
	// Generate embedding for raw text
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)

	// Generate and set embeddings for a document's segments
	EmbedSegments(ctx context.Context, segments []models.Segment) error

	// Get model information
	ModelName() string
	Dimension() int

	// Check if service is available
	IsAvailable(ctx context.Context) bool
}
