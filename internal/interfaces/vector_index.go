package interfaces

import (
	"github.com/ternarybob/responsum/internal/models"
)

// VectorIndex is an exact (brute-force) cosine similarity index. Because
// every stored vector is scanned, Search recall is complete: any entry
// meeting the score threshold within topK is returned. Safe for concurrent
// use; writes are serialized per document, reads run concurrently.
type VectorIndex interface {
	// Upsert atomically replaces all entries for a document. Readers never
	// observe a mix of old and new entries. Entries must all carry the
	// document's ID and vectors of the index dimension.
	Upsert(documentID string, entries []models.IndexEntry) error

	// Search returns up to topK entries ranked by descending cosine
	// similarity to the query vector. Ties break by document ID then
	// segment index. minScore of nil applies no threshold.
	Search(vector []float32, topK int, minScore *float64) ([]models.ScoredEntry, error)

	// Delete removes all entries for a document. Deleting an absent
	// document is a no-op.
	Delete(documentID string) error

	// Entries returns the stored entries for a document in segment order
	Entries(documentID string) ([]models.IndexEntry, error)

	// Stats reports index size and dimension
	Stats() models.IndexStats

	// Close flushes and releases the backing store
	Close() error
}
