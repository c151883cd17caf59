package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/interfaces"
	"github.com/ternarybob/responsum/internal/models"
	"github.com/ternarybob/responsum/internal/services/workers"
)

// Service implements the OrchestratorService interface: the explicit
// per-question state machine. Each Ask runs START -> PLANNING ->
// RETRIEVING (fan-out) -> SYNTHESIZING -> DONE, or ends in FAILED carrying
// everything produced before the error. All state lives on the turn, so
// concurrent Asks share nothing but the services underneath.
type Service struct {
	planner     interfaces.PlannerAgent
	synthesizer interfaces.SynthesizerAgent
	retriever   interfaces.RetrieverService
	config      *common.OrchestratorConfig
	logger      arbor.ILogger

	observersMu  sync.RWMutex
	observers    map[int]interfaces.TurnObserver
	nextObserver int
}

// NewService creates a new orchestrator
func NewService(planner interfaces.PlannerAgent, synthesizer interfaces.SynthesizerAgent, retrieverSvc interfaces.RetrieverService, config *common.OrchestratorConfig, logger arbor.ILogger) *Service {
	return &Service{
		planner:     planner,
		synthesizer: synthesizer,
		retriever:   retrieverSvc,
		config:      config,
		logger:      logger,
		observers:   make(map[int]interfaces.TurnObserver),
	}
}

// Subscribe registers an observer for turn events
func (s *Service) Subscribe(observer interfaces.TurnObserver) func() {
	s.observersMu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = observer
	s.observersMu.Unlock()

	return func() {
		s.observersMu.Lock()
		delete(s.observers, id)
		s.observersMu.Unlock()
	}
}

// Ask answers one question through the full state machine
func (s *Service) Ask(ctx context.Context, question string, history []models.HistoryMessage) (*models.ConversationTurn, error) {
	turn := &models.ConversationTurn{
		ID:        common.NewTurnID(),
		Question:  question,
		History:   history,
		State:     models.TurnStateStart,
		StartedAt: time.Now(),
		Timing:    make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RequestTimeoutDuration())
	defer cancel()

	s.logger.Info().
		Str("turn_id", turn.ID).
		Int("history", len(history)).
		Msg("Turn started")
	s.emit(turn, "", "")

	// PLANNING
	s.transition(turn, models.TurnStatePlanning, "")
	planStart := time.Now()
	decision, err := s.planner.Plan(ctx, question, history)
	turn.Timing["planning"] = time.Since(planStart).String()
	if err != nil {
		return s.fail(ctx, turn, fmt.Errorf("planning failed: %w", err))
	}
	turn.Decision = decision

	// RETRIEVING
	if decision.NeedsRetrieval {
		retrieveStart := time.Now()
		s.retrieve(ctx, turn, decision.Queries)
		turn.Timing["retrieval"] = time.Since(retrieveStart).String()

		if ctx.Err() != nil {
			return s.fail(ctx, turn, fmt.Errorf("retrieval interrupted: %w", ctx.Err()))
		}
	}

	// SYNTHESIZING
	s.transition(turn, models.TurnStateSynthesizing, fmt.Sprintf("%d passages", len(turn.Passages)))
	synthStart := time.Now()
	answer, err := s.synthesizer.Synthesize(ctx, question, history, turn.Passages)
	turn.Timing["synthesis"] = time.Since(synthStart).String()
	if err != nil {
		return s.fail(ctx, turn, fmt.Errorf("synthesis failed: %w", err))
	}

	turn.Answer = answer
	turn.State = models.TurnStateDone
	turn.EndedAt = time.Now()
	s.emit(turn, "", "")

	s.logger.Info().
		Str("turn_id", turn.ID).
		Bool("grounded", answer.Grounded).
		Int("citations", len(answer.Citations)).
		Dur("duration", turn.EndedAt.Sub(turn.StartedAt)).
		Msg("Turn completed")

	return turn, nil
}

// retrieve fans the planner's queries out over a bounded worker pool and
// joins after every query settles. Failed queries are logged and skipped;
// synthesis proceeds with whatever succeeded, or with empty context when
// everything failed.
func (s *Service) retrieve(ctx context.Context, turn *models.ConversationTurn, queries []string) {
	s.transition(turn, models.TurnStateRetrieving, fmt.Sprintf("%d queries", len(queries)))

	results := make([]*models.SearchResult, len(queries))
	var resultsMu sync.Mutex

	pool := workers.NewPool(ctx, s.config.RetrievalWorkers, s.logger)
	pool.Start()

	for i, query := range queries {
		i, query := i, query
		s.emit(turn, query, "retrieving")
		if err := pool.Submit(func(taskCtx context.Context) error {
			result, err := s.retriever.Retrieve(taskCtx, models.SearchQuery{Text: query})
			if err != nil {
				return fmt.Errorf("query %q: %w", query, err)
			}
			resultsMu.Lock()
			results[i] = result
			resultsMu.Unlock()
			return nil
		}); err != nil {
			s.logger.Warn().Err(err).Str("query", query).Msg("Failed to submit retrieval task")
		}
	}

	pool.Wait()

	for _, err := range pool.Errors() {
		s.logger.Warn().
			Str("turn_id", turn.ID).
			Err(err).
			Msg("Retrieval query failed; continuing with remaining results")
	}

	// Results keep query order so merged context is deterministic
	for _, result := range results {
		if result != nil {
			turn.Results = append(turn.Results, *result)
		}
	}

	turn.Passages = MergePassages(turn.Results, s.config.MaxPassages)

	if len(turn.Results) == 0 {
		s.logger.Warn().
			Str("turn_id", turn.ID).
			Int("queries", len(queries)).
			Msg("All retrieval queries failed; synthesizing without context")
	}
}

// fail finalizes the turn in the FAILED state, translating an expired
// request deadline into the deadline error. The partial turn is returned
// alongside the error.
func (s *Service) fail(ctx context.Context, turn *models.ConversationTurn, err error) (*models.ConversationTurn, error) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, interfaces.ErrDeadlineExceeded) {
		err = fmt.Errorf("%w: %v", interfaces.ErrDeadlineExceeded, err)
	}

	turn.State = models.TurnStateFailed
	turn.Error = err.Error()
	turn.EndedAt = time.Now()
	s.emit(turn, "", "")

	s.logger.Error().
		Str("turn_id", turn.ID).
		Err(err).
		Msg("Turn failed")

	return turn, err
}

func (s *Service) transition(turn *models.ConversationTurn, state models.TurnState, detail string) {
	turn.State = state
	s.logger.Debug().
		Str("turn_id", turn.ID).
		Str("state", string(state)).
		Str("detail", detail).
		Msg("State transition")
	s.emit(turn, "", detail)
}

func (s *Service) emit(turn *models.ConversationTurn, query, detail string) {
	event := models.TurnEvent{
		TurnID:    turn.ID,
		State:     turn.State,
		Detail:    detail,
		Query:     query,
		Timestamp: time.Now(),
	}

	s.observersMu.RLock()
	defer s.observersMu.RUnlock()
	for _, observer := range s.observers {
		observer(event)
	}
}
