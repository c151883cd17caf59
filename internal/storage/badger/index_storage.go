package badger

import (
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/responsum/internal/interfaces"
	"github.com/ternarybob/responsum/internal/models"
)

// IndexStorage implements the IndexStorage interface for Badger
type IndexStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewIndexStorage creates a new IndexStorage instance
func NewIndexStorage(db *BadgerDB, logger arbor.ILogger) interfaces.IndexStorage {
	return &IndexStorage{
		db:     db,
		logger: logger,
	}
}

// ReplaceDocument deletes a document's existing entries and writes the new
// set inside one badger transaction. Either all of it commits or none does.
func (s *IndexStorage) ReplaceDocument(documentID string, entries []models.IndexEntry) error {
	if documentID == "" {
		return fmt.Errorf("document ID is required")
	}

	store := s.db.Store()
	err := store.Badger().Update(func(tx *badgerdb.Txn) error {
		if err := store.TxDeleteMatching(tx, &models.IndexEntry{},
			badgerhold.Where("DocumentID").Eq(documentID)); err != nil {
			return fmt.Errorf("failed to delete existing entries: %w", err)
		}
		for i := range entries {
			if err := store.TxUpsert(tx, entries[i].SegmentID, &entries[i]); err != nil {
				return fmt.Errorf("failed to upsert entry %s: %w", entries[i].SegmentID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace index entries for %s: %w", documentID, err)
	}

	s.logger.Debug().Str("document_id", documentID).Int("entries", len(entries)).Msg("Replaced index entries")
	return nil
}

// DeleteDocument removes all entries for a document; absent documents are a
// no-op.
func (s *IndexStorage) DeleteDocument(documentID string) error {
	err := s.db.Store().DeleteMatching(&models.IndexEntry{},
		badgerhold.Where("DocumentID").Eq(documentID))
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete index entries for %s: %w", documentID, err)
	}
	return nil
}

// EntriesForDocument returns a document's entries in segment order
func (s *IndexStorage) EntriesForDocument(documentID string) ([]models.IndexEntry, error) {
	var entries []models.IndexEntry
	err := s.db.Store().Find(&entries,
		badgerhold.Where("DocumentID").Eq(documentID).SortBy("SegmentIndex"))
	if err != nil {
		return nil, fmt.Errorf("failed to load index entries for %s: %w", documentID, err)
	}
	return entries, nil
}

// LoadAll returns every stored entry, used to warm the in-memory index on
// startup.
func (s *IndexStorage) LoadAll() ([]models.IndexEntry, error) {
	var entries []models.IndexEntry
	if err := s.db.Store().Find(&entries, nil); err != nil {
		return nil, fmt.Errorf("failed to load index entries: %w", err)
	}
	return entries, nil
}
