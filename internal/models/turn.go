package models

import "time"

// TurnState is the orchestrator's explicit lifecycle state for one question
type TurnState string

const (
	TurnStateStart        TurnState = "start"
	TurnStatePlanning     TurnState = "planning"
	TurnStateRetrieving   TurnState = "retrieving"
	TurnStateSynthesizing TurnState = "synthesizing"
	TurnStateDone         TurnState = "done"
	TurnStateFailed       TurnState = "failed"
)

// PlannerDecision is the planner agent's validated output: either no
// retrieval is needed, or one or more search queries to run.
type PlannerDecision struct {
	NeedsRetrieval bool     `json:"needs_retrieval"`
	Reasoning      string   `json:"reasoning"`
	Queries        []string `json:"queries,omitempty"`
}

// Citation points at the corpus span an answer statement is grounded on
type Citation struct {
	DocumentID    string `json:"document_id"`
	DocumentTitle string `json:"document_title"`
	SegmentID     string `json:"segment_id"`
	Start         int    `json:"start"`
	End           int    `json:"end"`
}

// Answer is the synthesizer agent's validated output
type Answer struct {
	Text      string     `json:"text"`
	Citations []Citation `json:"citations"`
	Grounded  bool       `json:"grounded"` // false when answered without retrieved context
}

// HistoryMessage is one prior exchange supplied with a follow-up question
type HistoryMessage struct {
	Role    string `json:"role"` // user or assistant
	Content string `json:"content"`
}

// ConversationTurn records the full lifecycle of answering one question.
// On failure the turn carries everything produced before the error.
type ConversationTurn struct {
	ID        string            `json:"id"`
	Question  string            `json:"question"`
	History   []HistoryMessage  `json:"history,omitempty"`
	Decision  *PlannerDecision  `json:"decision,omitempty"`
	Results   []SearchResult    `json:"results,omitempty"`
	Passages  []ScoredEntry     `json:"passages,omitempty"` // merged, deduplicated context given to the synthesizer
	Answer    *Answer           `json:"answer,omitempty"`
	State     TurnState         `json:"state"`
	Error     string            `json:"error,omitempty"`
	StartedAt time.Time         `json:"started_at"`
	EndedAt   time.Time         `json:"ended_at"`
	Timing    map[string]string `json:"timing,omitempty"` // stage name -> elapsed
}

// TurnEvent is one state-transition notification streamed to observers
type TurnEvent struct {
	TurnID    string    `json:"turn_id"`
	State     TurnState `json:"state"`
	Detail    string    `json:"detail,omitempty"`
	Query     string    `json:"query,omitempty"` // set for per-query retrieval events
	Timestamp time.Time `json:"timestamp"`
}
