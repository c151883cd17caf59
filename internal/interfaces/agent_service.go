package interfaces

import (
	"context"

	"github.com/ternarybob/responsum/internal/models"
)

// PlannerAgent decides whether a question needs corpus retrieval and, if
// so, which search queries to run. Malformed model output surfaces as an
// error wrapping ErrPlannerContractViolation after repair retries are
// exhausted; the decision is never silently defaulted.
type PlannerAgent interface {
	Plan(ctx context.Context, question string, history []models.HistoryMessage) (*models.PlannerDecision, error)
}

// SynthesizerAgent produces the final answer. With passages it must ground
// every citation in the supplied context; without passages it answers
// directly and cites nothing. Contract failures wrap
// ErrSynthesizerContractViolation after repair retries are exhausted.
type SynthesizerAgent interface {
	Synthesize(ctx context.Context, question string, history []models.HistoryMessage, passages []models.ScoredEntry) (*models.Answer, error)
}
