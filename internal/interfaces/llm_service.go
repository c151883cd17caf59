package interfaces

import "context"

// LLMRole identifies a chat message sender
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a single message in a chat conversation
type Message struct {
	Role    string
	Content string
}

// ChatOptions tunes a single completion request
type ChatOptions struct {
	// Temperature in [0,2]; nil uses the provider default
	Temperature *float64

	// MaxTokens caps the response length; 0 uses the provider default
	MaxTokens int
}

// LLMService defines chat completion against one model provider.
// Implementations retry transient transport failures internally and return
// errors wrapping ErrModelUnavailable when the provider cannot be reached.
type LLMService interface {
	// Chat generates a completion for the conversation. The messages slice
	// holds the full context in chronological order; a leading system
	// message becomes the provider's system instruction.
	Chat(ctx context.Context, messages []Message, opts *ChatOptions) (string, error)

	// ModelName returns the configured model identifier
	ModelName() string

	// HealthCheck verifies the provider is reachable and authenticated
	HealthCheck(ctx context.Context) error

	// Close releases client resources
	Close() error
}
