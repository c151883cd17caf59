package llm

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsum/internal/common"
)

// RetryConfig defines retry behavior for transient provider failures
type RetryConfig struct {
	// MaxRetries is the number of attempts including the first (default: 3)
	MaxRetries int

	// InitialBackoff is the wait before the first retry (default: 500ms)
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between retries (default: 30s)
	MaxBackoff time.Duration

	// BackoffMultiplier is applied to backoff on each retry (default: 2.0)
	BackoffMultiplier float64
}

// NewDefaultRetryConfig returns a RetryConfig with sensible defaults
func NewDefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryConfigFromOrchestrator builds a RetryConfig from the configured
// transport retry settings. Unset or invalid values fall back to defaults.
func RetryConfigFromOrchestrator(cfg *common.OrchestratorConfig) *RetryConfig {
	retry := NewDefaultRetryConfig()
	if cfg == nil {
		return retry
	}
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	retry.InitialBackoff = cfg.RetryBackoffDuration()
	return retry
}

// IsRateLimitError checks if an error is a provider rate limit error.
// Matches 429 status codes and RESOURCE_EXHAUSTED errors.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "quota")
}

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s]+)(\d+(?:\.\d+)?)\s*s`)

// ExtractRetryDelay parses the API-suggested retry delay from a provider
// error. Returns 0 if no delay is found in the error message.
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}

	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}

	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

// CalculateBackoff computes the backoff duration for a given attempt.
// If apiDelay > 0 (from ExtractRetryDelay), it overrides the configured
// base. The result is capped at MaxBackoff.
func (c *RetryConfig) CalculateBackoff(attempt int, apiDelay time.Duration) time.Duration {
	base := c.InitialBackoff
	if apiDelay > 0 {
		base = apiDelay + time.Second
	}

	multiplier := 1.0
	for i := 0; i < attempt; i++ {
		multiplier *= c.BackoffMultiplier
	}

	backoff := time.Duration(float64(base) * multiplier)
	if backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}

	return backoff
}

// withRetry runs op up to MaxRetries times with exponential backoff between
// attempts. Context cancellation aborts immediately; the last error is
// returned once attempts are exhausted.
func withRetry(ctx context.Context, logger arbor.ILogger, cfg *RetryConfig, name string, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := cfg.CalculateBackoff(attempt-1, ExtractRetryDelay(lastErr))
			logger.Warn().
				Str("operation", name).
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Err(lastErr).
				Msg("Retrying after transient failure")

			select {
			case <-ctx.Done():
				return fmt.Errorf("%s aborted: %w", name, ctx.Err())
			case <-time.After(backoff):
			}
		}

		if err := op(); err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return fmt.Errorf("%s aborted: %w", name, ctx.Err())
			}
			continue
		}
		return nil
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, cfg.MaxRetries, lastErr)
}
