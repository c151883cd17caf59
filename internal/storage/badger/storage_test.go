package badger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/interfaces"
	"github.com/ternarybob/responsum/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to open badger manager: %v", err)
	}
	t.Cleanup(func() { manager.Close() })
	return manager
}

func indexEntry(docID string, segIdx int) models.IndexEntry {
	return models.IndexEntry{
		SegmentID:    fmt.Sprintf("%s:%d", docID, segIdx),
		DocumentID:   docID,
		SegmentIndex: segIdx,
		Start:        segIdx * 100,
		End:          segIdx*100 + 100,
		Text:         "segment text",
		Embedding:    []float32{1, 0},
	}
}

func TestKVStorage(t *testing.T) {
	kv := newTestManager(t).KVStorage()

	t.Run("Set and get round-trip", func(t *testing.T) {
		if err := kv.Set("gemini_api_key", "secret"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		value, err := kv.Get("gemini_api_key")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if value != "secret" {
			t.Errorf("Expected secret, got %q", value)
		}
	})

	t.Run("Keys are case-insensitive", func(t *testing.T) {
		if err := kv.Set("Mixed_Case_Key", "value"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		value, err := kv.Get("MIXED_CASE_KEY")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if value != "value" {
			t.Errorf("Expected case-insensitive lookup, got %q", value)
		}
	})

	t.Run("Set overwrites an existing key", func(t *testing.T) {
		kv.Set("rotating", "old")
		kv.Set("rotating", "new")
		value, _ := kv.Get("rotating")
		if value != "new" {
			t.Errorf("Expected new value, got %q", value)
		}
	})

	t.Run("Missing key returns ErrKeyNotFound", func(t *testing.T) {
		if _, err := kv.Get("absent"); !errors.Is(err, interfaces.ErrKeyNotFound) {
			t.Errorf("Expected ErrKeyNotFound, got %v", err)
		}
	})

	t.Run("Delete removes the key", func(t *testing.T) {
		kv.Set("doomed", "value")
		if err := kv.Delete("DOOMED"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := kv.Get("doomed"); !errors.Is(err, interfaces.ErrKeyNotFound) {
			t.Errorf("Expected ErrKeyNotFound after delete, got %v", err)
		}
	})
}

func TestDocumentStorage(t *testing.T) {
	t.Run("Save and get round-trip", func(t *testing.T) {
		docs := newTestManager(t).DocumentStorage()
		doc := &models.Document{
			ID:              "doc_guide",
			Title:           "Auth Guide",
			ContentMarkdown: "Tokens rotate hourly.",
			SourceType:      "markdown",
		}
		if err := docs.SaveDocument(doc); err != nil {
			t.Fatalf("SaveDocument failed: %v", err)
		}
		if doc.CreatedAt.IsZero() || doc.UpdatedAt.IsZero() {
			t.Error("Timestamps should be set on save")
		}

		got, err := docs.GetDocument("doc_guide")
		if err != nil {
			t.Fatalf("GetDocument failed: %v", err)
		}
		if got.Title != "Auth Guide" || got.ContentMarkdown != "Tokens rotate hourly." {
			t.Errorf("Unexpected document: %+v", got)
		}
	})

	t.Run("Save without an ID is rejected", func(t *testing.T) {
		docs := newTestManager(t).DocumentStorage()
		if err := docs.SaveDocument(&models.Document{Title: "T"}); err == nil {
			t.Error("Expected an error for a missing ID")
		}
	})

	t.Run("Missing document returns ErrDocumentNotFound", func(t *testing.T) {
		docs := newTestManager(t).DocumentStorage()
		if _, err := docs.GetDocument("doc_absent"); !errors.Is(err, interfaces.ErrDocumentNotFound) {
			t.Errorf("Expected ErrDocumentNotFound, got %v", err)
		}
	})

	t.Run("Delete is idempotent", func(t *testing.T) {
		docs := newTestManager(t).DocumentStorage()
		docs.SaveDocument(&models.Document{ID: "doc_x", Title: "T"})
		if err := docs.DeleteDocument("doc_x"); err != nil {
			t.Fatalf("DeleteDocument failed: %v", err)
		}
		if err := docs.DeleteDocument("doc_x"); err != nil {
			t.Errorf("Second delete should be a no-op, got %v", err)
		}
	})

	t.Run("List paginates and counts by source type", func(t *testing.T) {
		docs := newTestManager(t).DocumentStorage()
		for _, d := range []models.Document{
			{ID: "doc_a", Title: "A", SourceType: "markdown"},
			{ID: "doc_b", Title: "B", SourceType: "markdown"},
			{ID: "doc_c", Title: "C", SourceType: "html"},
		} {
			doc := d
			if err := docs.SaveDocument(&doc); err != nil {
				t.Fatalf("SaveDocument failed: %v", err)
			}
		}

		all, err := docs.ListDocuments(0, 0)
		if err != nil {
			t.Fatalf("ListDocuments failed: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("Expected 3 documents, got %d", len(all))
		}

		page, err := docs.ListDocuments(2, 1)
		if err != nil {
			t.Fatalf("ListDocuments failed: %v", err)
		}
		if len(page) != 2 {
			t.Errorf("Expected page of 2, got %d", len(page))
		}

		count, err := docs.CountDocuments()
		if err != nil {
			t.Fatalf("CountDocuments failed: %v", err)
		}
		if count != 3 {
			t.Errorf("Expected count 3, got %d", count)
		}

		bySource, err := docs.CountBySourceType()
		if err != nil {
			t.Fatalf("CountBySourceType failed: %v", err)
		}
		if bySource["markdown"] != 2 || bySource["html"] != 1 {
			t.Errorf("Unexpected source counts: %v", bySource)
		}
	})
}

func TestIndexStorage(t *testing.T) {
	t.Run("ReplaceDocument writes entries in segment order", func(t *testing.T) {
		index := newTestManager(t).IndexStorage()
		entries := []models.IndexEntry{indexEntry("doc_a", 1), indexEntry("doc_a", 0)}
		if err := index.ReplaceDocument("doc_a", entries); err != nil {
			t.Fatalf("ReplaceDocument failed: %v", err)
		}

		got, err := index.EntriesForDocument("doc_a")
		if err != nil {
			t.Fatalf("EntriesForDocument failed: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("Expected 2 entries, got %d", len(got))
		}
		if got[0].SegmentIndex != 0 || got[1].SegmentIndex != 1 {
			t.Errorf("Entries should come back in segment order: %+v", got)
		}
	})

	t.Run("ReplaceDocument replaces the old set wholesale", func(t *testing.T) {
		index := newTestManager(t).IndexStorage()
		first := []models.IndexEntry{indexEntry("doc_a", 0), indexEntry("doc_a", 1), indexEntry("doc_a", 2)}
		if err := index.ReplaceDocument("doc_a", first); err != nil {
			t.Fatalf("ReplaceDocument failed: %v", err)
		}

		second := []models.IndexEntry{indexEntry("doc_a", 0)}
		if err := index.ReplaceDocument("doc_a", second); err != nil {
			t.Fatalf("ReplaceDocument failed: %v", err)
		}

		got, err := index.EntriesForDocument("doc_a")
		if err != nil {
			t.Fatalf("EntriesForDocument failed: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("Expected old entries gone, got %d entries", len(got))
		}
	})

	t.Run("Replace is scoped to one document", func(t *testing.T) {
		index := newTestManager(t).IndexStorage()
		index.ReplaceDocument("doc_a", []models.IndexEntry{indexEntry("doc_a", 0)})
		index.ReplaceDocument("doc_b", []models.IndexEntry{indexEntry("doc_b", 0)})

		index.ReplaceDocument("doc_a", []models.IndexEntry{indexEntry("doc_a", 0), indexEntry("doc_a", 1)})

		other, err := index.EntriesForDocument("doc_b")
		if err != nil {
			t.Fatalf("EntriesForDocument failed: %v", err)
		}
		if len(other) != 1 {
			t.Errorf("Other document's entries must survive, got %d", len(other))
		}

		all, err := index.LoadAll()
		if err != nil {
			t.Fatalf("LoadAll failed: %v", err)
		}
		if len(all) != 3 {
			t.Errorf("Expected 3 entries across documents, got %d", len(all))
		}
	})

	t.Run("Missing document ID is rejected", func(t *testing.T) {
		index := newTestManager(t).IndexStorage()
		if err := index.ReplaceDocument("", nil); err == nil {
			t.Error("Expected an error for an empty document ID")
		}
	})

	t.Run("Delete for an absent document is a no-op", func(t *testing.T) {
		index := newTestManager(t).IndexStorage()
		if err := index.DeleteDocument("doc_absent"); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})
}
