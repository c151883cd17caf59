package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/interfaces"
	"github.com/ternarybob/responsum/internal/models"
)

// plannerOutput is the raw model response schema. NeedsRetrieval is a
// pointer so a missing field fails validation instead of defaulting to
// false.
type plannerOutput struct {
	NeedsRetrieval *bool    `json:"needs_retrieval" validate:"required"`
	Reasoning      string   `json:"reasoning"`
	Queries        []string `json:"queries"`
}

// Planner implements the PlannerAgent interface
type Planner struct {
	llm             interfaces.LLMService
	validate        *validator.Validate
	maxQueries      int
	contractRetries int
	logger          arbor.ILogger
}

// NewPlanner creates a planner agent on the given chat service
func NewPlanner(llm interfaces.LLMService, config *common.AgentsConfig, logger arbor.ILogger) interfaces.PlannerAgent {
	maxQueries := config.MaxQueries
	if maxQueries <= 0 {
		maxQueries = 3
	}
	retries := config.ContractRetries
	if retries < 0 {
		retries = 0
	}

	return &Planner{
		llm:             llm,
		validate:        validator.New(),
		maxQueries:      maxQueries,
		contractRetries: retries,
		logger:          logger,
	}
}

// Plan decides whether the question needs retrieval. Malformed model output
// is retried with an appended repair instruction; the conversation grows
// each attempt so the model sees what it got wrong. The decision is never
// silently defaulted.
func (p *Planner) Plan(ctx context.Context, question string, history []models.HistoryMessage) (*models.PlannerDecision, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", interfaces.ErrPlannerContractViolation)
	}

	messages := []interfaces.Message{
		{Role: interfaces.RoleSystem, Content: PlannerSystemPrompt},
	}
	for _, h := range history {
		messages = append(messages, interfaces.Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, interfaces.Message{Role: interfaces.RoleUser, Content: question})

	lowTemp := 0.0
	opts := &interfaces.ChatOptions{Temperature: &lowTemp}

	var lastViolation error
	for attempt := 0; attempt <= p.contractRetries; attempt++ {
		start := time.Now()
		response, err := p.llm.Chat(ctx, messages, opts)
		if err != nil {
			return nil, fmt.Errorf("planner call failed: %w", err)
		}

		decision, violation := p.parseDecision(response)
		if violation == nil {
			p.logger.Debug().
				Bool("needs_retrieval", decision.NeedsRetrieval).
				Int("queries", len(decision.Queries)).
				Int("attempt", attempt+1).
				Dur("duration", time.Since(start)).
				Msg("Planner decision")
			return decision, nil
		}

		lastViolation = violation
		p.logger.Warn().
			Err(violation).
			Int("attempt", attempt+1).
			Msg("Planner produced malformed output")

		// Feed the bad output back with a repair instruction so the next
		// attempt is not the identical prompt.
		messages = append(messages,
			interfaces.Message{Role: interfaces.RoleAssistant, Content: response},
			interfaces.Message{Role: interfaces.RoleUser, Content: fmt.Sprintf(PlannerRepairPrompt, violation.Error())},
		)
	}

	return nil, fmt.Errorf("%w: %v", interfaces.ErrPlannerContractViolation, lastViolation)
}

func (p *Planner) parseDecision(response string) (*models.PlannerDecision, error) {
	raw := extractJSON(response)
	if raw == "" {
		return nil, fmt.Errorf("response contains no JSON object")
	}

	var out plannerOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %v", err)
	}
	if err := p.validate.Struct(&out); err != nil {
		return nil, fmt.Errorf("response is missing required fields: %v", err)
	}

	decision := &models.PlannerDecision{
		NeedsRetrieval: *out.NeedsRetrieval,
		Reasoning:      strings.TrimSpace(out.Reasoning),
	}

	if !decision.NeedsRetrieval {
		return decision, nil
	}

	for _, q := range out.Queries {
		if trimmed := strings.TrimSpace(q); trimmed != "" {
			decision.Queries = append(decision.Queries, trimmed)
		}
	}
	if len(decision.Queries) == 0 {
		return nil, fmt.Errorf("needs_retrieval is true but no usable queries were provided")
	}
	if len(decision.Queries) > p.maxQueries {
		decision.Queries = decision.Queries[:p.maxQueries]
	}

	return decision, nil
}
