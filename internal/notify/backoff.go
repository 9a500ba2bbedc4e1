package notify

import "time"

// RetryConfig bounds the retry schedule for failed notifications.
type RetryConfig struct {
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64 // in [0, 1)
}

// DefaultRetryConfig returns the production retry schedule: two attempts,
// 30s doubling to a 5-minute cap, 30% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		BaseDelay:    30 * time.Second,
		MaxDelay:     300 * time.Second,
		JitterFactor: 0.3,
	}
}

// NextDelay computes the wait before the attempt after retryCount prior
// retries: baseDelay * 2^retryCount clamped to maxDelay, then perturbed
// uniformly within ±jitterFactor so a burst of simultaneous failures
// does not come back as a synchronized retry storm. rnd must return
// values in [0, 1); a nil rnd skips the jitter.
func (c RetryConfig) NextDelay(retryCount int, rnd func() float64) time.Duration {
	delay := c.BaseDelay
	for i := 0; i < retryCount && delay < c.MaxDelay; i++ {
		delay *= 2
	}
	if delay > c.MaxDelay {
		delay = c.MaxDelay
	}

	if c.JitterFactor > 0 && rnd != nil {
		spread := (rnd()*2 - 1) * c.JitterFactor // uniform in [-jitter, +jitter)
		delay = time.Duration(float64(delay) * (1 + spread))
	}
	return delay
}
