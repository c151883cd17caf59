package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/interfaces"
	"github.com/ternarybob/responsum/internal/models"
)

// IngestRequest is the POST /api/documents body
type IngestRequest struct {
	ID       string                 `json:"id,omitempty"`
	Title    string                 `json:"title"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// DocumentHandler handles document management HTTP requests
type DocumentHandler struct {
	ingest    interfaces.IngestService
	documents interfaces.DocumentStorage
	index     interfaces.VectorIndex
	logger    arbor.ILogger
}

// NewDocumentHandler creates a new document handler with dependencies
func NewDocumentHandler(ingest interfaces.IngestService, documents interfaces.DocumentStorage, index interfaces.VectorIndex, logger arbor.ILogger) *DocumentHandler {
	return &DocumentHandler{
		ingest:    ingest,
		documents: documents,
		index:     index,
		logger:    logger,
	}
}

// DocumentsHandler handles GET (list) and POST (ingest) on /api/documents
func (h *DocumentHandler) DocumentsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listDocuments(w, r)
	case http.MethodPost:
		h.ingestDocument(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// DocumentHandler handles GET and DELETE on /api/documents/{id}
func (h *DocumentHandler) DocumentHandler(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	if id == "" || strings.Contains(id, "/") {
		WriteError(w, http.StatusBadRequest, "Document ID is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		doc, err := h.documents.GetDocument(id)
		if err != nil {
			if errors.Is(err, interfaces.ErrDocumentNotFound) {
				WriteError(w, http.StatusNotFound, "Document not found")
				return
			}
			h.logger.Error().Err(err).Str("document_id", id).Msg("Failed to load document")
			WriteError(w, http.StatusInternalServerError, "Failed to load document")
			return
		}
		WriteJSON(w, http.StatusOK, doc)

	case http.MethodDelete:
		if err := h.ingest.DeleteDocument(r.Context(), id); err != nil {
			h.logger.Error().Err(err).Str("document_id", id).Msg("Failed to delete document")
			WriteError(w, http.StatusInternalServerError, "Failed to delete document")
			return
		}
		WriteSuccess(w, "Document deleted")

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// StatsHandler handles GET /api/stats requests
func (h *DocumentHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	docCount, err := h.documents.CountDocuments()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count documents")
		WriteError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}

	bySource, err := h.documents.CountBySourceType()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to count documents by source type")
		WriteError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}

	indexStats := h.index.Stats()

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents":      docCount,
		"by_source_type": bySource,
		"index": map[string]interface{}{
			"documents": indexStats.Documents,
			"entries":   indexStats.Entries,
			"dimension": indexStats.Dimension,
		},
	})
}

func (h *DocumentHandler) listDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed > 0 {
			offset = parsed
		}
	}

	docs, err := h.documents.ListDocuments(limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list documents")
		WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
		"limit":     limit,
		"offset":    offset,
	})
}

func (h *DocumentHandler) ingestDocument(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	doc := &models.Document{
		ID:              req.ID,
		Title:           strings.TrimSpace(req.Title),
		ContentMarkdown: req.Content,
		SourceType:      "api",
		Metadata:        req.Metadata,
	}

	if err := h.ingest.IngestDocument(r.Context(), doc); err != nil {
		if errors.Is(err, interfaces.ErrEmbeddingUnavailable) {
			h.logger.Warn().Err(err).Msg("Embedding backend unavailable during ingest")
			WriteError(w, http.StatusServiceUnavailable, "Embedding backend is unavailable")
			return
		}
		h.logger.Error().Err(err).Msg("Failed to ingest document")
		WriteError(w, http.StatusBadRequest, "Failed to ingest document: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"status":      "success",
		"document_id": doc.ID,
		"segments":    doc.SegmentCount,
	})
}
