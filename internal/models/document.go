package models

import "time"

// Document represents a piece of corpus content from any source.
// PRIMARY CONTENT FORMAT: Markdown (ContentMarkdown field). Content is
// immutable after ingestion; re-ingesting the same ID replaces the document
// and all of its index entries atomically.
type Document struct {
	ID              string                 `json:"id" badgerhold:"key"` // doc_{uuid} or caller-supplied
	Title           string                 `json:"title"`
	ContentMarkdown string                 `json:"content_markdown"`
	SourceType      string                 `json:"source_type"` // markdown, html, text, api
	SourcePath      string                 `json:"source_path,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	EmbeddingModel  string                 `json:"embedding_model,omitempty"` // model that produced the stored embeddings
	SegmentCount    int                    `json:"segment_count"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// Segment is a contiguous slice of a document produced by the chunker.
// Start and End are rune offsets into the document's ContentMarkdown;
// adjacent segments overlap by a configured number of words.
type Segment struct {
	ID         string    `json:"id"` // "{document_id}:{index}"
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding,omitempty"`
}

// IndexEntry is a segment as stored in the vector index, denormalized with
// the citation metadata a caller needs without a second lookup.
type IndexEntry struct {
	SegmentID     string    `json:"segment_id" badgerhold:"key"`
	DocumentID    string    `json:"document_id" badgerhold:"index"`
	DocumentTitle string    `json:"document_title"`
	SegmentIndex  int       `json:"segment_index"`
	Start         int       `json:"start"`
	End           int       `json:"end"`
	Text          string    `json:"text"`
	Embedding     []float32 `json:"embedding"`
}

// Overlaps reports whether the entry's span intersects another entry's span
// in the same document.
func (e *IndexEntry) Overlaps(other *IndexEntry) bool {
	if e.DocumentID != other.DocumentID {
		return false
	}
	return e.Start < other.End && other.Start < e.End
}

// CorpusStats summarizes the stored corpus and index
type CorpusStats struct {
	TotalDocuments    int            `json:"total_documents"`
	DocumentsBySource map[string]int `json:"documents_by_source"`
	IndexedSegments   int            `json:"indexed_segments"`
	EmbeddingModel    string         `json:"embedding_model"`
	Dimension         int            `json:"dimension"`
	LastUpdated       time.Time      `json:"last_updated"`
}
