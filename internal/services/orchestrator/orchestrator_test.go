package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/interfaces"
	"github.com/ternarybob/responsum/internal/models"
)

// fakePlanner returns a scripted decision or error
type fakePlanner struct {
	decision *models.PlannerDecision
	err      error
	delay    time.Duration
}

func (f *fakePlanner) Plan(ctx context.Context, question string, history []models.HistoryMessage) (*models.PlannerDecision, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.decision, nil
}

// fakeSynthesizer records the passages it was given
type fakeSynthesizer struct {
	mu       sync.Mutex
	answer   *models.Answer
	err      error
	passages []models.ScoredEntry
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, question string, history []models.HistoryMessage, passages []models.ScoredEntry) (*models.Answer, error) {
	f.mu.Lock()
	f.passages = passages
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

// fakeRetriever maps query text to a scripted result or error
type fakeRetriever struct {
	mu      sync.Mutex
	results map[string]*models.SearchResult
	errs    map[string]error
	queries []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query models.SearchQuery) (*models.SearchResult, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query.Text)
	f.mu.Unlock()
	if err, ok := f.errs[query.Text]; ok {
		return nil, err
	}
	if result, ok := f.results[query.Text]; ok {
		return result, nil
	}
	return &models.SearchResult{Query: query.Text}, nil
}

func orchestratorConfig() *common.OrchestratorConfig {
	return &common.OrchestratorConfig{
		RequestTimeout:   "30s",
		RetrievalWorkers: 2,
		MaxPassages:      8,
		MaxRetries:       3,
		RetryBackoff:     "1ms",
	}
}

func scoredEntry(docID string, segIdx, start, end int, score float64) models.ScoredEntry {
	return models.ScoredEntry{
		Entry: models.IndexEntry{
			SegmentID:     fmt.Sprintf("%s:%d", docID, segIdx),
			DocumentID:    docID,
			DocumentTitle: docID,
			SegmentIndex:  segIdx,
			Start:         start,
			End:           end,
			Text:          "passage text",
		},
		Score: score,
	}
}

func TestOrchestrator_Ask(t *testing.T) {
	logger := arbor.NewLogger()

	t.Run("Full grounded turn reaches DONE with merged passages", func(t *testing.T) {
		planner := &fakePlanner{decision: &models.PlannerDecision{
			NeedsRetrieval: true,
			Reasoning:      "needs audit findings",
			Queries:        []string{"audit scope", "audit findings"},
		}}
		retrieverSvc := &fakeRetriever{results: map[string]*models.SearchResult{
			"audit scope": {Query: "audit scope", Entries: []models.ScoredEntry{
				scoredEntry("doc_audit", 0, 0, 100, 0.92),
				scoredEntry("doc_policy", 1, 100, 200, 0.85),
			}},
			"audit findings": {Query: "audit findings", Entries: []models.ScoredEntry{
				scoredEntry("doc_audit", 0, 0, 100, 0.88), // duplicate, lower score
				scoredEntry("doc_audit", 4, 400, 500, 0.80),
			}},
		}}
		synth := &fakeSynthesizer{answer: &models.Answer{
			Text:     "The audit covered token rotation.",
			Grounded: true,
			Citations: []models.Citation{
				{DocumentID: "doc_audit", SegmentID: "doc_audit:0"},
			},
		}}

		svc := NewService(planner, synth, retrieverSvc, orchestratorConfig(), logger)

		var events []models.TurnEvent
		var eventsMu sync.Mutex
		unsubscribe := svc.Subscribe(func(e models.TurnEvent) {
			eventsMu.Lock()
			events = append(events, e)
			eventsMu.Unlock()
		})
		defer unsubscribe()

		turn, err := svc.Ask(context.Background(), "What did the security audit cover?", nil)
		require.NoError(t, err)
		require.Equal(t, models.TurnStateDone, turn.State)
		require.Equal(t, "The audit covered token rotation.", turn.Answer.Text)
		require.Len(t, turn.Results, 2)

		// Duplicate segment keeps the best score once
		require.Len(t, turn.Passages, 3)
		require.Equal(t, "doc_audit:0", turn.Passages[0].Entry.SegmentID)
		require.InDelta(t, 0.92, turn.Passages[0].Score, 1e-9)

		// Synthesizer saw exactly the merged passages
		require.Equal(t, turn.Passages, synth.passages)

		// Timing recorded for every stage
		require.Contains(t, turn.Timing, "planning")
		require.Contains(t, turn.Timing, "retrieval")
		require.Contains(t, turn.Timing, "synthesis")

		// Events walk the state machine in order
		states := []models.TurnState{}
		eventsMu.Lock()
		for _, e := range events {
			states = append(states, e.State)
		}
		eventsMu.Unlock()
		require.Equal(t, models.TurnStateStart, states[0])
		require.Equal(t, models.TurnStatePlanning, states[1])
		require.Equal(t, models.TurnStateRetrieving, states[2])
		require.Equal(t, models.TurnStateDone, states[len(states)-1])
	})

	t.Run("No-retrieval path skips the retrieving state", func(t *testing.T) {
		planner := &fakePlanner{decision: &models.PlannerDecision{NeedsRetrieval: false, Reasoning: "greeting"}}
		synth := &fakeSynthesizer{answer: &models.Answer{Text: "Hello!", Citations: []models.Citation{}}}
		retrieverSvc := &fakeRetriever{}

		svc := NewService(planner, synth, retrieverSvc, orchestratorConfig(), logger)

		var sawRetrieving bool
		unsubscribe := svc.Subscribe(func(e models.TurnEvent) {
			if e.State == models.TurnStateRetrieving {
				sawRetrieving = true
			}
		})
		defer unsubscribe()

		turn, err := svc.Ask(context.Background(), "Hello", nil)
		require.NoError(t, err)
		require.Equal(t, models.TurnStateDone, turn.State)
		require.Empty(t, turn.Passages)
		require.Empty(t, retrieverSvc.queries)
		require.False(t, sawRetrieving)
	})

	t.Run("All queries failing still synthesizes with empty context", func(t *testing.T) {
		planner := &fakePlanner{decision: &models.PlannerDecision{
			NeedsRetrieval: true,
			Queries:        []string{"q1", "q2"},
		}}
		retrieverSvc := &fakeRetriever{errs: map[string]error{
			"q1": errors.New("embedder down"),
			"q2": errors.New("embedder down"),
		}}
		synth := &fakeSynthesizer{answer: &models.Answer{Text: "Best effort answer.", Citations: []models.Citation{}}}

		svc := NewService(planner, synth, retrieverSvc, orchestratorConfig(), logger)

		turn, err := svc.Ask(context.Background(), "Question?", nil)
		require.NoError(t, err)
		require.Equal(t, models.TurnStateDone, turn.State)
		require.Empty(t, turn.Results)
		require.Empty(t, synth.passages)
	})

	t.Run("Partial query failure proceeds with the successes", func(t *testing.T) {
		planner := &fakePlanner{decision: &models.PlannerDecision{
			NeedsRetrieval: true,
			Queries:        []string{"good", "bad"},
		}}
		retrieverSvc := &fakeRetriever{
			results: map[string]*models.SearchResult{
				"good": {Query: "good", Entries: []models.ScoredEntry{scoredEntry("doc_a", 0, 0, 100, 0.9)}},
			},
			errs: map[string]error{"bad": errors.New("timeout")},
		}
		synth := &fakeSynthesizer{answer: &models.Answer{Text: "Answer.", Citations: []models.Citation{}}}

		svc := NewService(planner, synth, retrieverSvc, orchestratorConfig(), logger)

		turn, err := svc.Ask(context.Background(), "Question?", nil)
		require.NoError(t, err)
		require.Len(t, turn.Results, 1)
		require.Len(t, turn.Passages, 1)
	})

	t.Run("Planner failure yields a FAILED turn carrying the error", func(t *testing.T) {
		planner := &fakePlanner{err: fmt.Errorf("%w: gave up", interfaces.ErrPlannerContractViolation)}
		svc := NewService(planner, &fakeSynthesizer{}, &fakeRetriever{}, orchestratorConfig(), logger)

		turn, err := svc.Ask(context.Background(), "Question?", nil)
		require.Error(t, err)
		require.ErrorIs(t, err, interfaces.ErrPlannerContractViolation)
		require.Equal(t, models.TurnStateFailed, turn.State)
		require.NotEmpty(t, turn.Error)
		require.False(t, turn.EndedAt.IsZero())
	})

	t.Run("Synthesizer failure yields a FAILED turn with partial results", func(t *testing.T) {
		planner := &fakePlanner{decision: &models.PlannerDecision{
			NeedsRetrieval: true,
			Queries:        []string{"q"},
		}}
		retrieverSvc := &fakeRetriever{results: map[string]*models.SearchResult{
			"q": {Query: "q", Entries: []models.ScoredEntry{scoredEntry("doc_a", 0, 0, 100, 0.9)}},
		}}
		synth := &fakeSynthesizer{err: fmt.Errorf("%w: no valid answer", interfaces.ErrSynthesizerContractViolation)}

		svc := NewService(planner, synth, retrieverSvc, orchestratorConfig(), logger)

		turn, err := svc.Ask(context.Background(), "Question?", nil)
		require.Error(t, err)
		require.Equal(t, models.TurnStateFailed, turn.State)
		// Retrieval work done before the failure stays on the turn
		require.Len(t, turn.Passages, 1)
	})

	t.Run("Request deadline maps to the deadline error", func(t *testing.T) {
		cfg := orchestratorConfig()
		cfg.RequestTimeout = "20ms"
		planner := &fakePlanner{
			delay:    200 * time.Millisecond,
			decision: &models.PlannerDecision{NeedsRetrieval: false},
		}
		svc := NewService(planner, &fakeSynthesizer{}, &fakeRetriever{}, cfg, logger)

		turn, err := svc.Ask(context.Background(), "Question?", nil)
		require.Error(t, err)
		require.ErrorIs(t, err, interfaces.ErrDeadlineExceeded)
		require.Equal(t, models.TurnStateFailed, turn.State)
	})

	t.Run("Unsubscribe stops event delivery", func(t *testing.T) {
		planner := &fakePlanner{decision: &models.PlannerDecision{NeedsRetrieval: false}}
		synth := &fakeSynthesizer{answer: &models.Answer{Text: "ok", Citations: []models.Citation{}}}
		svc := NewService(planner, synth, &fakeRetriever{}, orchestratorConfig(), logger)

		count := 0
		unsubscribe := svc.Subscribe(func(models.TurnEvent) { count++ })
		unsubscribe()

		_, err := svc.Ask(context.Background(), "Question?", nil)
		require.NoError(t, err)
		require.Zero(t, count)
	})
}
