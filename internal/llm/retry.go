package llm

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
)

// Retry defaults applied to every outbound generation call.
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxJitter   = time.Second
)

// rateLimitMarkers are matched case-insensitively against error text.
var rateLimitMarkers = []string{"429", "quota", "exhausted"}

// IsRateLimitError reports whether err looks like a provider quota or
// rate-limit rejection.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// RetryPolicy is exponential backoff with jitter for retryable errors.
// Attempt n (0-based) that fails with a retryable error waits
// BaseDelay*2^n plus a random jitter in [0, MaxJitter). The wait also applies
// after the final attempt, so the caller's next request does not land on a
// quota that is still exhausted.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration
	Retryable   func(error) bool

	// Sleep and Jitter are replaceable for tests. Jitter returns a value in [0, 1).
	Sleep  func(ctx context.Context, d time.Duration) error
	Jitter func() float64
	// OnRetry, when set, is told about every backoff before it happens.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy returns the quota backoff policy: 5 attempts, 2s base, up to 1s jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxJitter:   DefaultMaxJitter,
		Retryable:   IsRateLimitError,
	}
}

// Delay returns the backoff for a 0-based attempt index, jitter included.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay << attempt
	jitter := p.Jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	return delay + time.Duration(jitter()*float64(p.MaxJitter))
}

// Do runs fn until it succeeds, fails with a non-retryable error, or
// MaxAttempts is used up. Non-retryable errors are returned immediately.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRateLimitError
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("retry interrupted after attempt %d: %w", attempt+1, err)
		}
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryingClient decorates a Client so every generation call goes through
// the same RetryPolicy.
type RetryingClient struct {
	Client
	policy RetryPolicy
}

// WithRetry wraps client with policy.
func WithRetry(client Client, policy RetryPolicy) *RetryingClient {
	return &RetryingClient{Client: client, policy: policy}
}

// GenerateContent retries the wrapped call according to the policy.
func (c *RetryingClient) GenerateContent(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	var out string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		out, callErr = c.Client.GenerateContent(ctx, prompt, tier)
		return callErr
	})
	return out, err
}

// GenerateJSON retries the wrapped call according to the policy.
func (c *RetryingClient) GenerateJSON(ctx context.Context, prompt string, tier ModelTier) (string, error) {
	var out string
	err := c.policy.Do(ctx, func(ctx context.Context) error {
		var callErr error
		out, callErr = c.Client.GenerateJSON(ctx, prompt, tier)
		return callErr
	})
	return out, err
}
