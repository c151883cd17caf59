package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/models"
	"github.com/ternarybob/responsum/internal/services/chunker"
)

// fakeEmbedder assigns a fixed vector to every segment
type fakeEmbedder struct {
	err   error
	model string
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) EmbedSegments(ctx context.Context, segments []models.Segment) error {
	if f.err != nil {
		return f.err
	}
	for i := range segments {
		segments[i].Embedding = []float32{1, 0}
	}
	return nil
}

func (f *fakeEmbedder) ModelName() string { return f.model }

func (f *fakeEmbedder) Dimension() int { return 2 }

func (f *fakeEmbedder) IsAvailable(context.Context) bool { return f.err == nil }

// fakeIndex records upserts and deletes per document
type fakeIndex struct {
	mu      sync.Mutex
	upserts map[string][]models.IndexEntry
	deletes []string
	err     error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{upserts: map[string][]models.IndexEntry{}}
}

func (f *fakeIndex) Upsert(documentID string, entries []models.IndexEntry) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.upserts[documentID] = entries
	f.mu.Unlock()
	return nil
}

func (f *fakeIndex) Delete(documentID string) error {
	f.deletes = append(f.deletes, documentID)
	return nil
}

func (f *fakeIndex) Search([]float32, int, *float64) ([]models.ScoredEntry, error) {
	return nil, nil
}

func (f *fakeIndex) Entries(string) ([]models.IndexEntry, error) { return nil, nil }

func (f *fakeIndex) Stats() models.IndexStats { return models.IndexStats{} }

func (f *fakeIndex) Close() error { return nil }

// fakeDocs is an in-memory DocumentStorage
type fakeDocs struct {
	docs map[string]*models.Document
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[string]*models.Document{}}
}

func (f *fakeDocs) SaveDocument(doc *models.Document) error {
	copied := *doc
	f.docs[doc.ID] = &copied
	return nil
}

func (f *fakeDocs) GetDocument(id string) (*models.Document, error) {
	if doc, ok := f.docs[id]; ok {
		return doc, nil
	}
	return nil, errors.New("not found")
}

func (f *fakeDocs) DeleteDocument(id string) error {
	delete(f.docs, id)
	return nil
}

func (f *fakeDocs) ListDocuments(limit, offset int) ([]*models.Document, error) {
	out := []*models.Document{}
	for _, doc := range f.docs {
		out = append(out, doc)
	}
	return out, nil
}

func (f *fakeDocs) CountDocuments() (int, error) { return len(f.docs), nil }

func (f *fakeDocs) CountBySourceType() (map[string]int, error) { return nil, nil }

func newTestService(t *testing.T, embedder *fakeEmbedder, index *fakeIndex, docs *fakeDocs) *Service {
	t.Helper()
	logger := arbor.NewLogger()
	chunkerSvc := chunker.NewService(&common.ChunkingConfig{MaxWords: 50, OverlapWords: 5}, logger)
	svc := NewService(chunkerSvc, embedder, index, docs, &common.ProcessingConfig{Limit: 2}, logger)
	return svc.(*Service)
}

func TestIngestDocument(t *testing.T) {
	t.Run("Chunks, embeds, indexes, and saves", func(t *testing.T) {
		index := newFakeIndex()
		docs := newFakeDocs()
		svc := newTestService(t, &fakeEmbedder{model: "embed-v2"}, index, docs)

		doc := &models.Document{
			ID:              "doc_guide",
			Title:           "Auth Guide",
			ContentMarkdown: "Tokens rotate every hour. Sessions expire after a day.",
		}
		if err := svc.IngestDocument(context.Background(), doc); err != nil {
			t.Fatalf("IngestDocument failed: %v", err)
		}

		entries := index.upserts["doc_guide"]
		if len(entries) == 0 {
			t.Fatal("Expected index entries")
		}
		if entries[0].DocumentTitle != "Auth Guide" {
			t.Errorf("Entries must carry the denormalized title, got %q", entries[0].DocumentTitle)
		}
		if len(entries[0].Embedding) != 2 {
			t.Errorf("Expected embedded entries, got %v", entries[0].Embedding)
		}

		saved, err := docs.GetDocument("doc_guide")
		if err != nil {
			t.Fatalf("Document not saved: %v", err)
		}
		if saved.EmbeddingModel != "embed-v2" {
			t.Errorf("Expected embedding model recorded, got %q", saved.EmbeddingModel)
		}
		if saved.SegmentCount != len(entries) {
			t.Errorf("Expected segment count %d, got %d", len(entries), saved.SegmentCount)
		}
		if saved.SourceType != "api" {
			t.Errorf("Expected default source type api, got %q", saved.SourceType)
		}
	})

	t.Run("Missing ID is generated", func(t *testing.T) {
		svc := newTestService(t, &fakeEmbedder{model: "embed-v2"}, newFakeIndex(), newFakeDocs())
		doc := &models.Document{Title: "T", ContentMarkdown: "Some content here."}
		if err := svc.IngestDocument(context.Background(), doc); err != nil {
			t.Fatalf("IngestDocument failed: %v", err)
		}
		if doc.ID == "" {
			t.Error("Expected a generated document ID")
		}
	})

	t.Run("Empty title or content is rejected", func(t *testing.T) {
		svc := newTestService(t, &fakeEmbedder{model: "embed-v2"}, newFakeIndex(), newFakeDocs())
		if err := svc.IngestDocument(context.Background(), &models.Document{Title: "", ContentMarkdown: "x"}); err == nil {
			t.Error("Expected an error for a missing title")
		}
		if err := svc.IngestDocument(context.Background(), &models.Document{Title: "T", ContentMarkdown: ""}); err == nil {
			t.Error("Expected an error for missing content")
		}
	})

	t.Run("Embedding failure leaves index and storage untouched", func(t *testing.T) {
		index := newFakeIndex()
		docs := newFakeDocs()
		svc := newTestService(t, &fakeEmbedder{err: errors.New("backend down")}, index, docs)

		doc := &models.Document{ID: "doc_x", Title: "T", ContentMarkdown: "Some content."}
		if err := svc.IngestDocument(context.Background(), doc); err == nil {
			t.Fatal("Expected an error")
		}
		if len(index.upserts) != 0 {
			t.Error("Index must not be written on embedding failure")
		}
		if len(docs.docs) != 0 {
			t.Error("Document must not be saved on embedding failure")
		}
	})
}

func TestIngestPath(t *testing.T) {
	writeFile := func(t *testing.T, dir, name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	t.Run("Directory walk ingests supported files only", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "guide.md", "---\ntitle: Auth Guide\n---\nTokens rotate hourly.")
		writeFile(t, dir, "notes.txt", "Plain text notes about sessions.")
		writeFile(t, dir, "binary.bin", "ignored")

		index := newFakeIndex()
		docs := newFakeDocs()
		svc := newTestService(t, &fakeEmbedder{model: "embed-v2"}, index, docs)

		count, err := svc.IngestPath(context.Background(), dir)
		if err != nil {
			t.Fatalf("IngestPath failed: %v", err)
		}
		if count != 2 {
			t.Errorf("Expected 2 ingested files, got %d", count)
		}

		guide, err := docs.GetDocument("doc_guide-md")
		if err != nil {
			t.Fatalf("Expected deterministic path-derived ID: %v", err)
		}
		if guide.Title != "Auth Guide" {
			t.Errorf("Front-matter title should win, got %q", guide.Title)
		}
		if guide.SourceType != "markdown" {
			t.Errorf("Expected markdown source type, got %q", guide.SourceType)
		}

		notes, err := docs.GetDocument("doc_notes-txt")
		if err != nil {
			t.Fatalf("Text file not ingested: %v", err)
		}
		if notes.Title != "notes" {
			t.Errorf("Filename stem should be the fallback title, got %q", notes.Title)
		}
	})

	t.Run("Re-ingesting the same directory replaces rather than duplicates", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "guide.md", "# Guide\nFirst version.")

		index := newFakeIndex()
		docs := newFakeDocs()
		svc := newTestService(t, &fakeEmbedder{model: "embed-v2"}, index, docs)

		if _, err := svc.IngestPath(context.Background(), dir); err != nil {
			t.Fatalf("First ingest failed: %v", err)
		}
		writeFile(t, dir, "guide.md", "# Guide\nSecond version with more words.")
		if _, err := svc.IngestPath(context.Background(), dir); err != nil {
			t.Fatalf("Second ingest failed: %v", err)
		}

		count, _ := docs.CountDocuments()
		if count != 1 {
			t.Errorf("Expected 1 document after re-ingest, got %d", count)
		}
	})

	t.Run("Single file path works", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "single.md", "# Single\nContent.")

		svc := newTestService(t, &fakeEmbedder{model: "embed-v2"}, newFakeIndex(), newFakeDocs())
		count, err := svc.IngestPath(context.Background(), filepath.Join(dir, "single.md"))
		if err != nil {
			t.Fatalf("IngestPath failed: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected 1, got %d", count)
		}
	})

	t.Run("Missing path is an error", func(t *testing.T) {
		svc := newTestService(t, &fakeEmbedder{model: "embed-v2"}, newFakeIndex(), newFakeDocs())
		if _, err := svc.IngestPath(context.Background(), "/nonexistent/corpus"); err == nil {
			t.Error("Expected an error for a missing path")
		}
	})
}

func TestDeleteDocument(t *testing.T) {
	index := newFakeIndex()
	docs := newFakeDocs()
	svc := newTestService(t, &fakeEmbedder{model: "embed-v2"}, index, docs)

	doc := &models.Document{ID: "doc_x", Title: "T", ContentMarkdown: "Content."}
	if err := svc.IngestDocument(context.Background(), doc); err != nil {
		t.Fatalf("IngestDocument failed: %v", err)
	}

	if err := svc.DeleteDocument(context.Background(), "doc_x"); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if len(index.deletes) != 1 || index.deletes[0] != "doc_x" {
		t.Errorf("Expected index delete for doc_x, got %v", index.deletes)
	}
	if _, err := docs.GetDocument("doc_x"); err == nil {
		t.Error("Document should be gone from storage")
	}
}

func TestReindexStale(t *testing.T) {
	t.Run("Only documents with an older model are reindexed", func(t *testing.T) {
		index := newFakeIndex()
		docs := newFakeDocs()
		svc := newTestService(t, &fakeEmbedder{model: "embed-v2"}, index, docs)

		docs.SaveDocument(&models.Document{ID: "doc_old", Title: "Old", ContentMarkdown: "Old content.", EmbeddingModel: "embed-v1"})
		docs.SaveDocument(&models.Document{ID: "doc_new", Title: "New", ContentMarkdown: "New content.", EmbeddingModel: "embed-v2"})

		count, err := svc.ReindexStale(context.Background())
		if err != nil {
			t.Fatalf("ReindexStale failed: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected 1 reindexed document, got %d", count)
		}
		if _, ok := index.upserts["doc_old"]; !ok {
			t.Error("Stale document should be reindexed")
		}
		if _, ok := index.upserts["doc_new"]; ok {
			t.Error("Current document must not be reindexed")
		}
	})

	t.Run("Run is capped by the configured limit", func(t *testing.T) {
		index := newFakeIndex()
		docs := newFakeDocs()
		svc := newTestService(t, &fakeEmbedder{model: "embed-v2"}, index, docs)

		for _, id := range []string{"doc_a", "doc_b", "doc_c"} {
			docs.SaveDocument(&models.Document{ID: id, Title: id, ContentMarkdown: "Stale content.", EmbeddingModel: "embed-v1"})
		}

		count, err := svc.ReindexStale(context.Background())
		if err != nil {
			t.Fatalf("ReindexStale failed: %v", err)
		}
		if count != 2 { // ProcessingConfig.Limit in newTestService
			t.Errorf("Expected limit of 2, got %d", count)
		}
	})
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"docs/Auth Guide.md": "docs-auth-guide-md",
		"README.md":          "readme-md",
		"a//b\\c":            "a-b-c",
		"---x---":            "x",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
