package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/interfaces"
)

// SchedulerHandler handles scheduler HTTP requests
type SchedulerHandler struct {
	scheduler interfaces.SchedulerService
	logger    arbor.ILogger
}

// NewSchedulerHandler creates a new scheduler handler with dependencies
func NewSchedulerHandler(scheduler interfaces.SchedulerService, logger arbor.ILogger) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: scheduler,
		logger:    logger,
	}
}

// TriggerReindexHandler handles POST /api/scheduler/reindex requests
func (h *SchedulerHandler) TriggerReindexHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if h.scheduler == nil {
		WriteError(w, http.StatusServiceUnavailable, "Scheduler is not enabled")
		return
	}

	if err := h.scheduler.TriggerJob("reindex"); err != nil {
		h.logger.Warn().Err(err).Msg("Failed to trigger reindex job")
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "started",
		"message": "Reindex job triggered",
	})
}

// JobsHandler handles GET /api/scheduler/jobs requests
func (h *SchedulerHandler) JobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	if h.scheduler == nil {
		WriteJSON(w, http.StatusOK, map[string]interface{}{"jobs": map[string]interface{}{}})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": h.scheduler.GetAllJobStatuses(),
	})
}
