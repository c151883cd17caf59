package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/interfaces"
	"github.com/ternarybob/responsum/internal/models"
	"github.com/ternarybob/responsum/internal/services/chunker"
)

// supported ingestion extensions mapped to their source type
var sourceTypes = map[string]string{
	".md":       "markdown",
	".markdown": "markdown",
	".txt":      "text",
	".html":     "html",
}

// ingestPayload is the validated shape of an incoming document
type ingestPayload struct {
	Title   string `validate:"required,min=1"`
	Content string `validate:"required,min=1"`
}

// Service implements the IngestService interface: chunk, embed, and index
// a document behind a single atomic index replace. Any failure before the
// replace leaves the prior document and index state untouched.
type Service struct {
	chunker   *chunker.Service
	embedder  interfaces.EmbeddingService
	index     interfaces.VectorIndex
	documents interfaces.DocumentStorage
	validate  *validator.Validate
	converter *md.Converter
	limit     int
	logger    arbor.ILogger
}

// NewService creates a new ingest service. limit caps documents per
// ReindexStale run; 0 means no cap.
func NewService(chunkerSvc *chunker.Service, embedder interfaces.EmbeddingService, index interfaces.VectorIndex, documents interfaces.DocumentStorage, processing *common.ProcessingConfig, logger arbor.ILogger) interfaces.IngestService {
	limit := 0
	if processing != nil {
		limit = processing.Limit
	}

	return &Service{
		chunker:   chunkerSvc,
		embedder:  embedder,
		index:     index,
		documents: documents,
		validate:  validator.New(),
		converter: md.NewConverter("", true, nil),
		limit:     limit,
		logger:    logger,
	}
}

// IngestDocument stores the document and atomically replaces its index
// entries. An existing ID is replaced wholesale.
func (s *Service) IngestDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return fmt.Errorf("document is required")
	}
	if doc.ID == "" {
		doc.ID = common.NewDocumentID()
	}
	if doc.SourceType == "" {
		doc.SourceType = "api"
	}

	payload := ingestPayload{Title: doc.Title, Content: doc.ContentMarkdown}
	if err := s.validate.Struct(&payload); err != nil {
		return fmt.Errorf("invalid document: %w", err)
	}

	start := time.Now()

	segments, err := s.chunker.Chunk(doc)
	if err != nil {
		return fmt.Errorf("chunking failed for %s: %w", doc.ID, err)
	}

	if err := s.embedder.EmbedSegments(ctx, segments); err != nil {
		return fmt.Errorf("embedding failed for %s: %w", doc.ID, err)
	}

	entries := make([]models.IndexEntry, len(segments))
	for i, seg := range segments {
		entries[i] = models.IndexEntry{
			SegmentID:     seg.ID,
			DocumentID:    seg.DocumentID,
			DocumentTitle: doc.Title,
			SegmentIndex:  seg.Index,
			Start:         seg.Start,
			End:           seg.End,
			Text:          seg.Text,
			Embedding:     seg.Embedding,
		}
	}

	if err := s.index.Upsert(doc.ID, entries); err != nil {
		return fmt.Errorf("indexing failed for %s: %w", doc.ID, err)
	}

	doc.EmbeddingModel = s.embedder.ModelName()
	doc.SegmentCount = len(entries)
	if err := s.documents.SaveDocument(doc); err != nil {
		return fmt.Errorf("saving document %s failed: %w", doc.ID, err)
	}

	s.logger.Info().
		Str("document_id", doc.ID).
		Str("title", doc.Title).
		Int("segments", len(entries)).
		Dur("duration", time.Since(start)).
		Msg("Ingested document")

	return nil
}

// IngestPath ingests a file or every supported file under a directory
func (s *Service) IngestPath(ctx context.Context, path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("cannot access %s: %w", path, err)
	}

	if !info.IsDir() {
		if err := s.ingestFile(ctx, path, filepath.Dir(path)); err != nil {
			return 0, err
		}
		return 1, nil
	}

	count := 0
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := sourceTypes[strings.ToLower(filepath.Ext(p))]; !ok {
			return nil
		}
		if err := s.ingestFile(ctx, p, path); err != nil {
			// One bad file shouldn't abort the directory walk
			s.logger.Warn().Err(err).Str("path", p).Msg("Skipping file that failed to ingest")
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("walking %s: %w", path, err)
	}

	return count, nil
}

// DeleteDocument removes the document and all of its index entries
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	if err := s.index.Delete(id); err != nil {
		return fmt.Errorf("failed to delete index entries for %s: %w", id, err)
	}
	if err := s.documents.DeleteDocument(id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}

	s.logger.Info().Str("document_id", id).Msg("Deleted document")
	return nil
}

// ReindexStale re-embeds documents whose stored embedding model differs
// from the current one.
func (s *Service) ReindexStale(ctx context.Context) (int, error) {
	docs, err := s.documents.ListDocuments(0, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}

	current := s.embedder.ModelName()
	count := 0
	for _, doc := range docs {
		if doc.EmbeddingModel == current {
			continue
		}
		if s.limit > 0 && count >= s.limit {
			s.logger.Info().Int("limit", s.limit).Msg("Reindex limit reached; remaining documents deferred")
			break
		}
		if err := ctx.Err(); err != nil {
			return count, err
		}

		if err := s.IngestDocument(ctx, doc); err != nil {
			s.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to reindex document")
			continue
		}
		count++
	}

	if count > 0 {
		s.logger.Info().Int("reindexed", count).Str("model", current).Msg("Reindexed stale documents")
	}
	return count, nil
}

// ingestFile reads, converts, and ingests one file. Document IDs derive
// from the path relative to the ingest root so re-running an ingest
// replaces rather than duplicates.
func (s *Service) ingestFile(ctx context.Context, path, root string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	sourceType := sourceTypes[ext]
	content := string(data)

	if sourceType == "html" {
		converted, err := s.converter.ConvertString(content)
		if err != nil {
			return fmt.Errorf("html conversion failed for %s: %w", path, err)
		}
		content = converted
	}

	meta, body := parseFrontMatter(content)

	title := ""
	if meta != nil {
		if t, ok := meta["title"].(string); ok {
			title = strings.TrimSpace(t)
		}
	}
	if title == "" {
		title = titleFromContent(body)
	}
	if title == "" {
		base := filepath.Base(path)
		title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}

	doc := &models.Document{
		ID:              "doc_" + slugify(rel),
		Title:           title,
		ContentMarkdown: body,
		SourceType:      sourceType,
		SourcePath:      path,
		Metadata:        meta,
	}

	return s.IngestDocument(ctx, doc)
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns a relative path into a stable document ID suffix
func slugify(s string) string {
	slug := slugUnsafe.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(slug, "-")
}
