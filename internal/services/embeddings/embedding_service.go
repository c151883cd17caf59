package embeddings

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/interfaces"
	"github.com/ternarybob/responsum/internal/models"
)

// Backend generates raw embedding vectors. GeminiService satisfies this;
// tests supply their own.
type Backend interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbeddingModelName() string
	Dimension() int
}

// Service implements the EmbeddingService interface on top of a Backend,
// enforcing the fixed-dimension contract: every vector it returns has
// exactly the configured dimension with finite components, or the call
// fails with ErrEmbeddingUnavailable.
type Service struct {
	backend   Backend
	dimension int
	logger    arbor.ILogger
}

// NewService creates a new embedding service
func NewService(backend Backend, logger arbor.ILogger) interfaces.EmbeddingService {
	return &Service{
		backend:   backend,
		dimension: backend.Dimension(),
		logger:    logger,
	}
}

// GenerateEmbedding creates a vector embedding for text
func (s *Service) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", interfaces.ErrEmbeddingUnavailable)
	}

	start := time.Now()
	embedding, err := s.backend.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrEmbeddingUnavailable, err)
	}

	if err := s.validate(embedding); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrEmbeddingUnavailable, err)
	}

	s.logger.Debug().
		Int("embedding_dim", len(embedding)).
		Int("text_length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Generated embedding")

	return embedding, nil
}

// EmbedSegments generates and sets embeddings for a document's segments.
// Fails on the first segment error; callers treat the whole document as
// unembedded in that case.
func (s *Service) EmbedSegments(ctx context.Context, segments []models.Segment) error {
	for i := range segments {
		embedding, err := s.GenerateEmbedding(ctx, segments[i].Text)
		if err != nil {
			return fmt.Errorf("segment %s: %w", segments[i].ID, err)
		}
		segments[i].Embedding = embedding
	}

	s.logger.Debug().
		Int("segments", len(segments)).
		Msg("Embedded document segments")

	return nil
}

// ModelName returns the backend embedding model name
func (s *Service) ModelName() string {
	return s.backend.EmbeddingModelName()
}

// Dimension returns the embedding dimension
func (s *Service) Dimension() int {
	return s.dimension
}

// IsAvailable probes the backend with a trivial embedding request
func (s *Service) IsAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.backend.Embed(probeCtx, "probe")
	return err == nil
}

func (s *Service) validate(embedding []float32) error {
	if len(embedding) != s.dimension {
		return fmt.Errorf("dimension mismatch: expected %d, got %d", s.dimension, len(embedding))
	}
	for i, v := range embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("component %d is not finite", i)
		}
	}
	return nil
}
