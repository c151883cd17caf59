package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/interfaces"
)

// StatusHandler handles application status HTTP requests
type StatusHandler struct {
	embedder  interfaces.EmbeddingService
	index     interfaces.VectorIndex
	scheduler interfaces.SchedulerService
	startedAt time.Time
	logger    arbor.ILogger
}

// NewStatusHandler creates a new status handler with dependencies
func NewStatusHandler(embedder interfaces.EmbeddingService, index interfaces.VectorIndex, scheduler interfaces.SchedulerService, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		embedder:  embedder,
		index:     index,
		scheduler: scheduler,
		startedAt: time.Now(),
		logger:    logger,
	}
}

// GetStatusHandler handles GET /api/status requests
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	indexStats := h.index.Stats()

	status := map[string]interface{}{
		"version": common.GetVersion(),
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
		"embedding": map[string]interface{}{
			"model":     h.embedder.ModelName(),
			"dimension": h.embedder.Dimension(),
			"available": h.embedder.IsAvailable(r.Context()),
		},
		"index": map[string]interface{}{
			"documents": indexStats.Documents,
			"entries":   indexStats.Entries,
			"dimension": indexStats.Dimension,
		},
	}

	if h.scheduler != nil {
		status["scheduler"] = map[string]interface{}{
			"running": h.scheduler.IsRunning(),
			"jobs":    h.scheduler.GetAllJobStatuses(),
		}
	}

	WriteJSON(w, http.StatusOK, status)
}

// VersionHandler handles GET /api/version requests
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetFullVersion(),
	})
}

// HealthHandler handles GET /api/health requests
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
