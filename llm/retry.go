package llm

import (
	"math/rand/v2"
	"time"
)

// RetryConfig holds retry configuration for requests to a single endpoint.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per endpoint.
	MaxAttempts int

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to the delay on each further retry.
	BackoffMultiplier float64

	// MaxBackoff caps the delay.
	MaxBackoff time.Duration

	// Jitter is the +/- fraction applied to each delay (0.25 = 25%).
	Jitter float64
}

// DefaultRetryConfig keeps campaign latency low: one retry per endpoint
// before the client moves down the fallback chain.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       2,
		BackoffBase:       time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        10 * time.Second,
		Jitter:            0.25,
	}
}

// Backoff returns the delay to wait after the given failed attempt (1-based).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.BackoffBase) * multiplier)
	if c.MaxBackoff > 0 && backoff > c.MaxBackoff {
		backoff = c.MaxBackoff
	}

	if c.Jitter > 0 {
		jitter := float64(backoff) * c.Jitter * (rand.Float64()*2 - 1)
		backoff += time.Duration(jitter)
	}
	return backoff
}
