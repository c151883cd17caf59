package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/interfaces"
	"github.com/ternarybob/responsum/internal/models"
)

// SearchResult represents one retrieved passage in the API response
type SearchResult struct {
	SegmentID     string  `json:"segment_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	SegmentIndex  int     `json:"segment_index"`
	Start         int     `json:"start"`
	End           int     `json:"end"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
}

// SearchHandler handles retrieval HTTP requests
type SearchHandler struct {
	retriever interfaces.RetrieverService
	logger    arbor.ILogger
}

// NewSearchHandler creates a new search handler with dependencies
func NewSearchHandler(retriever interfaces.RetrieverService, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{
		retriever: retriever,
		logger:    logger,
	}
}

// SearchHandler handles GET /api/search?q=query requests
func (h *SearchHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		WriteError(w, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	topK := 0
	if topKStr := r.URL.Query().Get("top_k"); topKStr != "" {
		if parsed, err := strconv.Atoi(topKStr); err == nil && parsed > 0 {
			topK = parsed
		}
	}

	var minScore *float64
	if minStr := r.URL.Query().Get("min_score"); minStr != "" {
		if parsed, err := strconv.ParseFloat(minStr, 64); err == nil {
			minScore = &parsed
		}
	}

	h.logger.Info().
		Str("query", query).
		Int("top_k", topK).
		Msg("Search request received")

	result, err := h.retriever.Retrieve(r.Context(), models.SearchQuery{
		Text:     query,
		TopK:     topK,
		MinScore: minScore,
	})
	if err != nil {
		if errors.Is(err, interfaces.ErrRetrievalUnavailable) {
			h.logger.Warn().Err(err).Str("query", query).Msg("Retrieval unavailable")
			WriteError(w, http.StatusServiceUnavailable, "Retrieval is unavailable")
			return
		}
		h.logger.Error().Err(err).Str("query", query).Msg("Failed to execute search")
		WriteError(w, http.StatusInternalServerError, "Failed to execute search")
		return
	}

	results := make([]SearchResult, 0, len(result.Entries))
	for _, scored := range result.Entries {
		results = append(results, SearchResult{
			SegmentID:     scored.Entry.SegmentID,
			DocumentID:    scored.Entry.DocumentID,
			DocumentTitle: scored.Entry.DocumentTitle,
			SegmentIndex:  scored.Entry.SegmentIndex,
			Start:         scored.Entry.Start,
			End:           scored.Entry.End,
			Text:          scored.Entry.Text,
			Score:         scored.Score,
		})
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}
