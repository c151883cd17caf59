package interfaces

import (
	"context"

	"github.com/ternarybob/responsum/internal/models"
)

// TurnObserver receives orchestrator state-transition events. Observers
// must not block; slow consumers are dropped by the publisher.
type TurnObserver func(event models.TurnEvent)

// OrchestratorService runs the full question-answering state machine:
// planning, concurrent retrieval fan-out, synthesis. The returned turn is
// never nil; on failure its State is TurnStateFailed and it carries
// everything produced before the error alongside the error itself.
type OrchestratorService interface {
	Ask(ctx context.Context, question string, history []models.HistoryMessage) (*models.ConversationTurn, error)

	// Subscribe registers an observer for turn events; the returned func
	// unsubscribes it.
	Subscribe(observer TurnObserver) (unsubscribe func())
}
