package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/interfaces"
	"github.com/ternarybob/responsum/internal/models"
)

// AskRequest is the POST /api/ask body
type AskRequest struct {
	Question string                  `json:"question"`
	History  []models.HistoryMessage `json:"history,omitempty"`
}

// AskResponse carries the completed turn back to the caller
type AskResponse struct {
	TurnID    string                  `json:"turn_id"`
	State     models.TurnState        `json:"state"`
	Answer    string                  `json:"answer,omitempty"`
	Citations []models.Citation       `json:"citations,omitempty"`
	Grounded  bool                    `json:"grounded"`
	Decision  *models.PlannerDecision `json:"decision,omitempty"`
	Timing    map[string]string       `json:"timing,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// AskHandler handles question-answering HTTP requests
type AskHandler struct {
	orchestrator interfaces.OrchestratorService
	logger       arbor.ILogger
}

// NewAskHandler creates a new ask handler with dependencies
func NewAskHandler(orchestrator interfaces.OrchestratorService, logger arbor.ILogger) *AskHandler {
	return &AskHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// AskHandler handles POST /api/ask requests
func (h *AskHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		WriteError(w, http.StatusBadRequest, "Question is required")
		return
	}

	h.logger.Info().
		Int("history", len(req.History)).
		Msg("Ask request received")

	turn, err := h.orchestrator.Ask(r.Context(), question, req.History)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, interfaces.ErrDeadlineExceeded):
			status = http.StatusGatewayTimeout
		case errors.Is(err, interfaces.ErrModelUnavailable):
			status = http.StatusServiceUnavailable
		}

		h.logger.Error().
			Str("turn_id", turn.ID).
			Err(err).
			Msg("Ask request failed")

		// Failed turns still carry everything produced before the error
		WriteJSON(w, status, AskResponse{
			TurnID:   turn.ID,
			State:    turn.State,
			Decision: turn.Decision,
			Timing:   turn.Timing,
			Error:    turn.Error,
		})
		return
	}

	WriteJSON(w, http.StatusOK, AskResponse{
		TurnID:    turn.ID,
		State:     turn.State,
		Answer:    turn.Answer.Text,
		Citations: turn.Answer.Citations,
		Grounded:  turn.Answer.Grounded,
		Decision:  turn.Decision,
		Timing:    turn.Timing,
	})
}
