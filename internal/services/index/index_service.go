package index

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/interfaces"
	"github.com/ternarybob/responsum/internal/models"
)

// Service implements the VectorIndex interface: an exact brute-force cosine
// index held in memory and mirrored to durable storage. Every Search scans
// every stored vector, so recall is complete within topK by construction.
//
// Writes persist to storage first (one transaction per document), then swap
// the in-memory entries under the write lock. Readers hold the read lock
// for the whole scan, so they see each document's entries either entirely
// old or entirely new, never mixed.
type Service struct {
	mu        sync.RWMutex
	docs      map[string][]models.IndexEntry
	norms     map[string][]float64 // vector norms aligned with docs entries
	dimension int
	storage   interfaces.IndexStorage
	logger    arbor.ILogger
}

// NewService creates a vector index of the given dimension. storage may be
// nil for a purely in-memory index; otherwise existing entries are loaded
// to warm the index.
func NewService(dimension int, storage interfaces.IndexStorage, logger arbor.ILogger) (*Service, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dimension)
	}

	s := &Service{
		docs:      make(map[string][]models.IndexEntry),
		norms:     make(map[string][]float64),
		dimension: dimension,
		storage:   storage,
		logger:    logger,
	}

	if storage != nil {
		entries, err := storage.LoadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to warm index from storage: %w", err)
		}
		for _, entry := range entries {
			if len(entry.Embedding) != dimension {
				logger.Warn().
					Str("segment_id", entry.SegmentID).
					Int("dimension", len(entry.Embedding)).
					Msg("Skipping stored entry with wrong dimension")
				continue
			}
			s.docs[entry.DocumentID] = append(s.docs[entry.DocumentID], entry)
		}
		total := 0
		for docID, docEntries := range s.docs {
			sort.Slice(docEntries, func(i, j int) bool {
				return docEntries[i].SegmentIndex < docEntries[j].SegmentIndex
			})
			s.norms[docID] = computeNorms(docEntries)
			total += len(docEntries)
		}
		logger.Info().
			Int("documents", len(s.docs)).
			Int("entries", total).
			Msg("Vector index warmed from storage")
	}

	return s, nil
}

// Upsert atomically replaces a document's entries
func (s *Service) Upsert(documentID string, entries []models.IndexEntry) error {
	if documentID == "" {
		return fmt.Errorf("document ID is required")
	}

	for i := range entries {
		if entries[i].DocumentID != documentID {
			return fmt.Errorf("entry %s belongs to document %s, not %s",
				entries[i].SegmentID, entries[i].DocumentID, documentID)
		}
		if len(entries[i].Embedding) != s.dimension {
			return fmt.Errorf("entry %s has dimension %d, index requires %d",
				entries[i].SegmentID, len(entries[i].Embedding), s.dimension)
		}
		for _, v := range entries[i].Embedding {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return fmt.Errorf("entry %s has a non-finite embedding component", entries[i].SegmentID)
			}
		}
	}

	sorted := make([]models.IndexEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].SegmentIndex < sorted[j].SegmentIndex
	})

	// Persist before touching memory so a storage failure leaves the
	// served index unchanged.
	if s.storage != nil {
		if err := s.storage.ReplaceDocument(documentID, sorted); err != nil {
			return err
		}
	}

	norms := computeNorms(sorted)

	s.mu.Lock()
	s.docs[documentID] = sorted
	s.norms[documentID] = norms
	s.mu.Unlock()

	s.logger.Debug().
		Str("document_id", documentID).
		Int("entries", len(sorted)).
		Msg("Upserted document into vector index")

	return nil
}

// Search scans every stored vector and returns the topK best cosine
// matches, descending, ties broken by document ID then segment index.
func (s *Service) Search(vector []float32, topK int, minScore *float64) ([]models.ScoredEntry, error) {
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, index requires %d", len(vector), s.dimension)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	queryNorm := 0.0
	for _, v := range vector {
		queryNorm += float64(v) * float64(v)
	}
	queryNorm = math.Sqrt(queryNorm)
	if queryNorm == 0 {
		return nil, fmt.Errorf("query vector has zero norm")
	}

	s.mu.RLock()
	var scored []models.ScoredEntry
	for docID, docEntries := range s.docs {
		norms := s.norms[docID]
		for i := range docEntries {
			if norms[i] == 0 {
				continue
			}
			dot := 0.0
			embedding := docEntries[i].Embedding
			for d := 0; d < s.dimension; d++ {
				dot += float64(vector[d]) * float64(embedding[d])
			}
			score := dot / (queryNorm * norms[i])
			if minScore != nil && score < *minScore {
				continue
			}
			scored = append(scored, models.ScoredEntry{Entry: docEntries[i], Score: score})
		}
	}
	s.mu.RUnlock()

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].Entry.DocumentID != scored[j].Entry.DocumentID {
			return scored[i].Entry.DocumentID < scored[j].Entry.DocumentID
		}
		return scored[i].Entry.SegmentIndex < scored[j].Entry.SegmentIndex
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Delete removes a document's entries; deleting an absent document is a
// no-op.
func (s *Service) Delete(documentID string) error {
	if s.storage != nil {
		if err := s.storage.DeleteDocument(documentID); err != nil {
			return err
		}
	}

	s.mu.Lock()
	delete(s.docs, documentID)
	delete(s.norms, documentID)
	s.mu.Unlock()

	return nil
}

// Entries returns a document's entries in segment order
func (s *Service) Entries(documentID string) ([]models.IndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docEntries, ok := s.docs[documentID]
	if !ok {
		return nil, nil
	}
	result := make([]models.IndexEntry, len(docEntries))
	copy(result, docEntries)
	return result, nil
}

// Stats reports index size and dimension
func (s *Service) Stats() models.IndexStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, docEntries := range s.docs {
		total += len(docEntries)
	}
	return models.IndexStats{
		Documents: len(s.docs),
		Entries:   total,
		Dimension: s.dimension,
	}
}

// Close is a no-op for the in-memory side; the backing store is owned and
// closed by the storage manager.
func (s *Service) Close() error {
	return nil
}

func computeNorms(entries []models.IndexEntry) []float64 {
	norms := make([]float64, len(entries))
	for i := range entries {
		sum := 0.0
		for _, v := range entries[i].Embedding {
			sum += float64(v) * float64(v)
		}
		norms[i] = math.Sqrt(sum)
	}
	return norms
}
