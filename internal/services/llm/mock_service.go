package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/responsum/internal/interfaces"
)

// MockResponse is one scripted step for the mock service: either a response
// body or an error.
type MockResponse struct {
	Content string
	Err     error
}

// MockService is a scriptable LLMService for tests. Each Chat call consumes
// the next scripted response in order; once the script is exhausted the last
// entry repeats.
type MockService struct {
	mu        sync.Mutex
	script    []MockResponse
	calls     []([]interfaces.Message)
	model     string
	healthErr error
}

// NewMockService creates a mock with the given script
func NewMockService(script ...MockResponse) *MockService {
	return &MockService{
		script: script,
		model:  "mock-model",
	}
}

// Chat returns the next scripted response
func (s *MockService) Chat(ctx context.Context, messages []interfaces.Message, opts *interfaces.ChatOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]interfaces.Message, len(messages))
	copy(copied, messages)
	s.calls = append(s.calls, copied)

	if len(s.script) == 0 {
		return "", fmt.Errorf("mock service has no scripted responses")
	}

	idx := len(s.calls) - 1
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}

	step := s.script[idx]
	if step.Err != nil {
		return "", step.Err
	}
	return step.Content, nil
}

// Calls returns the recorded message slices, one per Chat invocation
func (s *MockService) Calls() [][]interfaces.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// CallCount returns the number of Chat invocations
func (s *MockService) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// SetHealthError makes HealthCheck return the given error
func (s *MockService) SetHealthError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthErr = err
}

// ModelName returns the mock model identifier
func (s *MockService) ModelName() string {
	return s.model
}

// HealthCheck returns the configured health error, if any
func (s *MockService) HealthCheck(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthErr
}

// Close is a no-op
func (s *MockService) Close() error {
	return nil
}
