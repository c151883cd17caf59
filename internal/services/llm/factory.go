package llm

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/interfaces"
)

// NewLLMService creates the chat service for the requested provider
func NewLLMService(provider common.LLMProvider, config *common.Config, kvStorage interfaces.KVStorage, logger arbor.ILogger) (interfaces.LLMService, error) {
	retry := RetryConfigFromOrchestrator(&config.Orchestrator)

	switch provider {
	case common.LLMProviderGemini:
		return NewGeminiService(&config.Gemini, retry, kvStorage, logger)
	case common.LLMProviderClaude:
		return NewClaudeService(&config.Claude, retry, kvStorage, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", provider)
	}
}
