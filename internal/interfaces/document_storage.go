package interfaces

import (
	"github.com/ternarybob/responsum/internal/models"
)

// DocumentStorage persists corpus documents
type DocumentStorage interface {
	SaveDocument(doc *models.Document) error
	GetDocument(id string) (*models.Document, error)
	DeleteDocument(id string) error
	ListDocuments(limit, offset int) ([]*models.Document, error)
	CountDocuments() (int, error)
	CountBySourceType() (map[string]int, error)
}

// IndexStorage persists vector index entries. ReplaceDocument runs in a
// single transaction so a crash mid-write never leaves a document half
// indexed.
type IndexStorage interface {
	ReplaceDocument(documentID string, entries []models.IndexEntry) error
	DeleteDocument(documentID string) error
	EntriesForDocument(documentID string) ([]models.IndexEntry, error)
	LoadAll() ([]models.IndexEntry, error)
}

// KVStorage is a small durable key/value store used for API keys and
// operational state. Missing keys return ErrKeyNotFound.
type KVStorage interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}
