package agents

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/interfaces"
	"github.com/ternarybob/responsum/internal/models"
	"github.com/ternarybob/responsum/internal/services/llm"
)

func passage(docID string, segIdx int, title, text string) models.ScoredEntry {
	return models.ScoredEntry{
		Entry: models.IndexEntry{
			SegmentID:     fmt.Sprintf("%s:%d", docID, segIdx),
			DocumentID:    docID,
			DocumentTitle: title,
			SegmentIndex:  segIdx,
			Start:         segIdx * 100,
			End:           segIdx*100 + 100,
			Text:          text,
		},
		Score: 0.9,
	}
}

func TestSynthesizer_Synthesize(t *testing.T) {
	logger := arbor.NewLogger()
	passages := []models.ScoredEntry{
		passage("doc_a", 0, "Auth Guide", "Tokens rotate every hour."),
		passage("doc_b", 2, "Security Audit", "Sessions expire after a day."),
	}

	t.Run("Grounded answer maps citation numbers to passages", func(t *testing.T) {
		mock := llm.NewMockService(llm.MockResponse{
			Content: `{"answer": "Tokens rotate hourly and sessions last a day.", "citations": [1, 2]}`,
		})
		synth := NewSynthesizer(mock, plannerConfig(), logger)

		answer, err := synth.Synthesize(context.Background(), "How long do tokens last?", nil, passages)
		require.NoError(t, err)
		require.True(t, answer.Grounded)
		require.Len(t, answer.Citations, 2)
		require.Equal(t, "doc_a:0", answer.Citations[0].SegmentID)
		require.Equal(t, "Auth Guide", answer.Citations[0].DocumentTitle)
		require.Equal(t, "doc_b:2", answer.Citations[1].SegmentID)
	})

	t.Run("Out-of-range citation is a violation that can be repaired", func(t *testing.T) {
		mock := llm.NewMockService(
			llm.MockResponse{Content: `{"answer": "Tokens rotate hourly.", "citations": [3]}`},
			llm.MockResponse{Content: `{"answer": "Tokens rotate hourly.", "citations": [1]}`},
		)
		synth := NewSynthesizer(mock, plannerConfig(), logger)

		answer, err := synth.Synthesize(context.Background(), "How long?", nil, passages)
		require.NoError(t, err)
		require.Len(t, answer.Citations, 1)
		require.Equal(t, 2, mock.CallCount())

		// The repair turn carries the violation back to the model
		calls := mock.Calls()
		last := calls[1][len(calls[1])-1]
		require.Contains(t, last.Content, "outside the provided passage range")
	})

	t.Run("Duplicate citations are collapsed", func(t *testing.T) {
		mock := llm.NewMockService(llm.MockResponse{
			Content: `{"answer": "Hourly.", "citations": [1, 1, 2, 1]}`,
		})
		synth := NewSynthesizer(mock, plannerConfig(), logger)

		answer, err := synth.Synthesize(context.Background(), "How long?", nil, passages)
		require.NoError(t, err)
		require.Len(t, answer.Citations, 2)
	})

	t.Run("Direct mode forbids citations", func(t *testing.T) {
		mock := llm.NewMockService(llm.MockResponse{
			Content: `{"answer": "Hello!", "citations": [1]}`,
		})
		synth := NewSynthesizer(mock, plannerConfig(), logger)

		_, err := synth.Synthesize(context.Background(), "Hi", nil, nil)
		require.ErrorIs(t, err, interfaces.ErrSynthesizerContractViolation)
	})

	t.Run("Direct mode answers without context", func(t *testing.T) {
		mock := llm.NewMockService(llm.MockResponse{
			Content: `{"answer": "Hello! How can I help?", "citations": []}`,
		})
		synth := NewSynthesizer(mock, plannerConfig(), logger)

		answer, err := synth.Synthesize(context.Background(), "Hi", nil, nil)
		require.NoError(t, err)
		require.False(t, answer.Grounded)
		require.Empty(t, answer.Citations)
	})

	t.Run("Empty answer is a violation", func(t *testing.T) {
		mock := llm.NewMockService(llm.MockResponse{
			Content: `{"answer": "   ", "citations": []}`,
		})
		synth := NewSynthesizer(mock, plannerConfig(), logger)

		_, err := synth.Synthesize(context.Background(), "Hi", nil, nil)
		require.ErrorIs(t, err, interfaces.ErrSynthesizerContractViolation)
	})

	t.Run("User prompt numbers the passages", func(t *testing.T) {
		mock := llm.NewMockService(llm.MockResponse{
			Content: `{"answer": "Answer.", "citations": [1]}`,
		})
		synth := NewSynthesizer(mock, plannerConfig(), logger)

		_, err := synth.Synthesize(context.Background(), "How long?", nil, passages)
		require.NoError(t, err)

		call := mock.Calls()[0]
		userPrompt := call[len(call)-1].Content
		require.Contains(t, userPrompt, "[1] Auth Guide (segment 0)")
		require.Contains(t, userPrompt, "[2] Security Audit (segment 2)")
		require.Contains(t, userPrompt, "Tokens rotate every hour.")
	})
}
