package interfaces

import (
	"context"

	"github.com/ternarybob/responsum/internal/models"
)

// IngestService admits documents into the corpus: chunk, embed, and index
// under a single atomic replace per document. A failure anywhere leaves the
// prior document and index state intact.
type IngestService interface {
	// IngestDocument stores the document and indexes its segments. An
	// existing ID is replaced wholesale; content is otherwise immutable.
	IngestDocument(ctx context.Context, doc *models.Document) error

	// IngestPath ingests a file or every supported file under a directory
	// (.md, .markdown, .txt, .html). Returns the number ingested.
	IngestPath(ctx context.Context, path string) (int, error)

	// DeleteDocument removes the document and all of its index entries
	DeleteDocument(ctx context.Context, id string) error

	// ReindexStale re-embeds and re-indexes documents whose stored
	// embedding model differs from the current one. Returns the number
	// reindexed.
	ReindexStale(ctx context.Context) (int, error)
}
