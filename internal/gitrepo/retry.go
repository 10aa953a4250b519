package gitrepo

import (
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/docpages/internal/errors"
	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// rateLimitDelayMultiplier stretches backoff when the remote signals rate limiting.
const rateLimitDelayMultiplier = 3.0

// withRetry wraps an operation with retry logic based on the client policy.
// Only errors classified as retryable are retried; everything else fails fast.
func (c *Client) withRetry(op, repoName string, fn func() (string, error)) (string, error) {
	if c.policy.MaxRetries <= 0 {
		return fn()
	}

	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying git operation",
				slog.String("operation", op),
				logfields.Repository(repoName),
				logfields.Attempt(attempt))
		}
		c.inRetry = true
		path, err := fn()
		c.inRetry = false
		if err == nil {
			return path, nil
		}
		lastErr = err
		if !errors.IsRetryable(err) {
			slog.Error("Permanent git error",
				slog.String("operation", op),
				logfields.Repository(repoName),
				logfields.Error(err))
			return "", err
		}
		if attempt == c.policy.MaxRetries {
			break
		}
		delay := c.policy.Delay(attempt + 1)
		if pe, ok := errors.AsPipelineError(err); ok {
			if limited, _ := pe.Context["rate_limit"].(bool); limited {
				delay = time.Duration(float64(delay) * rateLimitDelayMultiplier)
			}
		}
		time.Sleep(delay)
	}
	return "", fmt.Errorf("git %s failed after retries: %w", op, lastErr)
}
