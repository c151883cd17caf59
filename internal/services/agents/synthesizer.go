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

// synthesizerOutput is the raw model response schema. Citations are
// passage numbers (1-based) into the supplied context, which makes the
// subset property checkable by construction.
type synthesizerOutput struct {
	Answer    string `json:"answer" validate:"required,min=1"`
	Citations []int  `json:"citations"`
}

// Synthesizer implements the SynthesizerAgent interface
type Synthesizer struct {
	llm             interfaces.LLMService
	validate        *validator.Validate
	contractRetries int
	logger          arbor.ILogger
}

// NewSynthesizer creates a synthesizer agent on the given chat service
func NewSynthesizer(llm interfaces.LLMService, config *common.AgentsConfig, logger arbor.ILogger) interfaces.SynthesizerAgent {
	retries := config.ContractRetries
	if retries < 0 {
		retries = 0
	}

	return &Synthesizer{
		llm:             llm,
		validate:        validator.New(),
		contractRetries: retries,
		logger:          logger,
	}
}

// Synthesize produces the final answer. With passages the model must cite
// by passage number; without passages it answers directly and must cite
// nothing. Malformed output is retried with a repair instruction.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, history []models.HistoryMessage, passages []models.ScoredEntry) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", interfaces.ErrSynthesizerContractViolation)
	}

	grounded := len(passages) > 0

	var messages []interfaces.Message
	if grounded {
		messages = append(messages, interfaces.Message{Role: interfaces.RoleSystem, Content: SynthesizerGroundedSystemPrompt})
	} else {
		messages = append(messages, interfaces.Message{Role: interfaces.RoleSystem, Content: SynthesizerDirectSystemPrompt})
	}
	for _, h := range history {
		messages = append(messages, interfaces.Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, interfaces.Message{Role: interfaces.RoleUser, Content: s.buildUserPrompt(question, passages)})

	var lastViolation error
	for attempt := 0; attempt <= s.contractRetries; attempt++ {
		start := time.Now()
		response, err := s.llm.Chat(ctx, messages, nil)
		if err != nil {
			return nil, fmt.Errorf("synthesizer call failed: %w", err)
		}

		answer, violation := s.parseAnswer(response, passages)
		if violation == nil {
			s.logger.Debug().
				Bool("grounded", grounded).
				Int("citations", len(answer.Citations)).
				Int("attempt", attempt+1).
				Dur("duration", time.Since(start)).
				Msg("Synthesized answer")
			return answer, nil
		}

		lastViolation = violation
		s.logger.Warn().
			Err(violation).
			Int("attempt", attempt+1).
			Msg("Synthesizer produced malformed output")

		messages = append(messages,
			interfaces.Message{Role: interfaces.RoleAssistant, Content: response},
			interfaces.Message{Role: interfaces.RoleUser, Content: fmt.Sprintf(SynthesizerRepairPrompt, violation.Error())},
		)
	}

	return nil, fmt.Errorf("%w: %v", interfaces.ErrSynthesizerContractViolation, lastViolation)
}

// buildUserPrompt renders the question plus the numbered passage context
func (s *Synthesizer) buildUserPrompt(question string, passages []models.ScoredEntry) string {
	if len(passages) == 0 {
		return question
	}

	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nRetrieved passages:\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "\n[%d] %s (segment %d)\n%s\n", i+1, p.Entry.DocumentTitle, p.Entry.SegmentIndex, p.Entry.Text)
	}
	return b.String()
}

func (s *Synthesizer) parseAnswer(response string, passages []models.ScoredEntry) (*models.Answer, error) {
	raw := extractJSON(response)
	if raw == "" {
		return nil, fmt.Errorf("response contains no JSON object")
	}

	var out synthesizerOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %v", err)
	}
	if err := s.validate.Struct(&out); err != nil {
		return nil, fmt.Errorf("response is missing required fields: %v", err)
	}
	if strings.TrimSpace(out.Answer) == "" {
		return nil, fmt.Errorf("answer is empty")
	}

	if len(passages) == 0 && len(out.Citations) > 0 {
		return nil, fmt.Errorf("citations are not allowed when no passages were provided")
	}

	answer := &models.Answer{
		Text:      strings.TrimSpace(out.Answer),
		Citations: []models.Citation{},
		Grounded:  len(passages) > 0,
	}

	seen := make(map[int]bool)
	for _, n := range out.Citations {
		if n < 1 || n > len(passages) {
			return nil, fmt.Errorf("citation %d is outside the provided passage range 1-%d", n, len(passages))
		}
		if seen[n] {
			continue
		}
		seen[n] = true

		entry := passages[n-1].Entry
		answer.Citations = append(answer.Citations, models.Citation{
			DocumentID:    entry.DocumentID,
			DocumentTitle: entry.DocumentTitle,
			SegmentID:     entry.SegmentID,
			Start:         entry.Start,
			End:           entry.End,
		})
	}

	return answer, nil
}
