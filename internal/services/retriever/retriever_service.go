package retriever

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/interfaces"
	"github.com/ternarybob/responsum/internal/models"
)

// Service implements the RetrieverService interface: embed the query,
// search the index, deduplicate overlapping spans per document keeping the
// higher-scored passage.
type Service struct {
	embedder interfaces.EmbeddingService
	index    interfaces.VectorIndex
	config   *common.RetrievalConfig
	logger   arbor.ILogger
}

// NewService creates a new retriever service
func NewService(embedder interfaces.EmbeddingService, index interfaces.VectorIndex, config *common.RetrievalConfig, logger arbor.ILogger) interfaces.RetrieverService {
	return &Service{
		embedder: embedder,
		index:    index,
		config:   config,
		logger:   logger,
	}
}

// Retrieve runs one search query against the corpus
func (s *Service) Retrieve(ctx context.Context, query models.SearchQuery) (*models.SearchResult, error) {
	text := strings.TrimSpace(query.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: query text is empty", interfaces.ErrRetrievalUnavailable)
	}

	// Long queries are truncated rather than rejected
	if s.config.MaxQueryLength > 0 {
		if runes := []rune(text); len(runes) > s.config.MaxQueryLength {
			text = string(runes[:s.config.MaxQueryLength])
			s.logger.Warn().
				Int("max_length", s.config.MaxQueryLength).
				Msg("Query truncated to maximum length")
		}
	}

	topK := query.TopK
	if topK <= 0 {
		topK = s.config.DefaultTopK
	}
	if s.config.MaxTopK > 0 && topK > s.config.MaxTopK {
		topK = s.config.MaxTopK
	}

	minScore := query.MinScore
	if minScore == nil && s.config.MinScore > 0 {
		threshold := s.config.MinScore
		minScore = &threshold
	}

	start := time.Now()

	vector, err := s.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrRetrievalUnavailable, err)
	}

	// Over-fetch so span deduplication doesn't shrink results below topK
	fetchK := topK * 2
	if s.config.MaxTopK > 0 && fetchK > s.config.MaxTopK*2 {
		fetchK = s.config.MaxTopK * 2
	}

	scored, err := s.index.Search(vector, fetchK, minScore)
	if err != nil {
		return nil, fmt.Errorf("%w: index search failed: %v", interfaces.ErrRetrievalUnavailable, err)
	}

	deduped := DeduplicateSpans(scored)
	if len(deduped) > topK {
		deduped = deduped[:topK]
	}

	s.logger.Debug().
		Str("query", text).
		Int("top_k", topK).
		Int("results", len(deduped)).
		Dur("duration", time.Since(start)).
		Msg("Retrieved passages")

	return &models.SearchResult{
		Query:   text,
		Entries: deduped,
	}, nil
}

// DeduplicateSpans drops entries whose span overlaps a higher-scored entry
// from the same document. Input must be sorted by descending score; order
// is preserved.
func DeduplicateSpans(scored []models.ScoredEntry) []models.ScoredEntry {
	if len(scored) <= 1 {
		return scored
	}

	kept := make([]models.ScoredEntry, 0, len(scored))
	byDoc := make(map[string][]*models.IndexEntry)

	for i := range scored {
		entry := &scored[i].Entry
		overlapping := false
		for _, accepted := range byDoc[entry.DocumentID] {
			if entry.Overlaps(accepted) {
				overlapping = true
				break
			}
		}
		if overlapping {
			continue
		}
		byDoc[entry.DocumentID] = append(byDoc[entry.DocumentID], entry)
		kept = append(kept, scored[i])
	}

	return kept
}
