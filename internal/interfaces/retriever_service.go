package interfaces

import (
	"context"

	"github.com/ternarybob/responsum/internal/models"
)

// RetrieverService turns a natural-language query into ranked corpus
// passages: embed the query, search the index, deduplicate overlapping
// spans per document keeping the higher-scored passage. Failures wrap
// ErrRetrievalUnavailable.
type RetrieverService interface {
	Retrieve(ctx context.Context, query models.SearchQuery) (*models.SearchResult, error)
}
