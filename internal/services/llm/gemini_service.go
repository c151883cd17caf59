package llm

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/ternarybob/responsum/internal/common"
	"github.com/ternarybob/responsum/internal/interfaces"
)

// GeminiService implements the LLMService interface using Google Gemini.
// It also exposes embedding generation, which makes it the backend for the
// embedding service.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	limiter *rate.Limiter
	retry   *RetryConfig
	timeout time.Duration
}

// convertMessagesToGemini converts []interfaces.Message to Gemini Content
// format, extracting the first system message for SystemInstruction.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == interfaces.RoleUser {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == interfaces.RoleSystem {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		var geminiRole string
		switch msg.Role {
		case interfaces.RoleAssistant:
			geminiRole = genai.RoleModel
		default:
			geminiRole = genai.RoleUser
		}

		contents = append(contents, &genai.Content{
			Role:  geminiRole,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	return contents, systemText, nil
}

// NewGeminiService creates a new Gemini LLM service instance. The API key is
// resolved env-first through the KV store with the config value as fallback.
// A nil retry config falls back to defaults.
func NewGeminiService(config *common.GeminiConfig, retry *RetryConfig, kvStorage interfaces.KVStorage, logger arbor.ILogger) (*GeminiService, error) {
	apiKey, err := common.ResolveAPIKey(kvStorage, "gemini_api_key", config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("Gemini API key is required (set via RESPONSUM_GEMINI_API_KEY, GEMINI_API_KEY, or gemini.api_key in config): %w", err)
	}

	if config.Model == "" {
		config.Model = "gemini-2.5-flash"
	}
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = "gemini-embedding-001"
	}
	if config.Dimension <= 0 {
		config.Dimension = 768
	}

	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	interval, err := time.ParseDuration(config.RateLimit)
	if err != nil || interval <= 0 {
		interval = 4 * time.Second
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	if retry == nil {
		retry = NewDefaultRetryConfig()
	}

	service := &GeminiService{
		config:  config,
		logger:  logger,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		retry:   retry,
		timeout: timeout,
	}

	logger.Info().
		Str("chat_model", config.Model).
		Str("embedding_model", config.EmbeddingModel).
		Int("dimension", config.Dimension).
		Dur("timeout", timeout).
		Msg("Gemini LLM service initialized")

	return service, nil
}

// Chat generates a completion response based on the conversation history
func (s *GeminiService) Chat(ctx context.Context, messages []interfaces.Message, opts *interfaces.ChatOptions) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()

	var response string
	err := withRetry(timeoutCtx, s.logger, s.retry, "gemini chat", func() error {
		if err := s.limiter.Wait(timeoutCtx); err != nil {
			return err
		}
		var genErr error
		response, genErr = s.generateCompletion(timeoutCtx, messages, opts)
		return genErr
	})
	if err != nil {
		s.logger.Error().
			Err(err).
			Int("message_count", len(messages)).
			Msg("Gemini chat completion failed")
		return "", fmt.Errorf("%w: %v", interfaces.ErrModelUnavailable, err)
	}

	s.logger.Debug().
		Int("message_count", len(messages)).
		Int("response_length", len(response)).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini chat completion completed")

	return response, nil
}

// Embed generates an embedding vector of the configured dimension. Vectors
// with wrong dimension or non-finite components are rejected here so no
// partial vector escapes to callers.
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding generation")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var embedding []float32
	err := withRetry(timeoutCtx, s.logger, s.retry, "gemini embed", func() error {
		if err := s.limiter.Wait(timeoutCtx); err != nil {
			return err
		}
		var genErr error
		embedding, genErr = s.generateEmbedding(timeoutCtx, text)
		return genErr
	})
	if err != nil {
		return nil, err
	}

	return embedding, nil
}

// ModelName returns the configured chat model identifier
func (s *GeminiService) ModelName() string {
	return s.config.Model
}

// EmbeddingModelName returns the configured embedding model identifier
func (s *GeminiService) EmbeddingModelName() string {
	return s.config.EmbeddingModel
}

// Dimension returns the configured embedding dimension
func (s *GeminiService) Dimension() int {
	return s.config.Dimension
}

// HealthCheck verifies the service is operational with a minimal chat probe
func (s *GeminiService) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("genai client is not initialized")
	}

	healthCheckCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	response, err := s.generateCompletion(healthCheckCtx, []interfaces.Message{
		{Role: interfaces.RoleUser, Content: "ping"},
	}, nil)
	if err != nil {
		return fmt.Errorf("gemini probe failed: %w", err)
	}
	if strings.TrimSpace(response) == "" {
		return fmt.Errorf("gemini probe returned empty response")
	}

	s.logger.Debug().Str("model", s.config.Model).Msg("Gemini health check passed")
	return nil
}

// Close releases resources. The genai.Client doesn't require explicit
// cleanup beyond clearing the reference.
func (s *GeminiService) Close() error {
	s.client = nil
	return nil
}

func (s *GeminiService) generateEmbedding(ctx context.Context, text string) ([]float32, error) {
	outputDim := int32(s.config.Dimension)
	embeddingConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	result, err := s.client.Models.EmbedContent(ctx, s.config.EmbeddingModel,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, embeddingConfig)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	var embedding []float32
	if result != nil && len(result.Embeddings) > 0 {
		embedding = result.Embeddings[0].Values
	}
	if embedding == nil {
		return nil, fmt.Errorf("no embedding returned from API")
	}

	if len(embedding) != s.config.Dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.config.Dimension, len(embedding))
	}
	for i, v := range embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("embedding component %d is not finite", i)
		}
	}

	return embedding, nil
}

func (s *GeminiService) generateCompletion(ctx context.Context, messages []interfaces.Message, opts *interfaces.ChatOptions) (string, error) {
	geminiContents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Gemini format: %w", err)
	}

	temperature := s.config.Temperature
	if opts != nil && opts.Temperature != nil {
		temperature = float32(*opts.Temperature)
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}
	if opts != nil && opts.MaxTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxTokens)
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.config.Model, geminiContents, config)
	if err != nil {
		return "", fmt.Errorf("chat generation failed: %w", err)
	}

	var response strings.Builder
	if resp != nil && len(resp.Candidates) > 0 {
		for _, candidate := range resp.Candidates {
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from chat model")
	}

	return response.String(), nil
}
