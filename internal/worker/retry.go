package worker

import (
	"math"
	"time"
)

// RetryPolicy is the exponential backoff applied to failed notification
// deliveries. Zero fields take the defaults from withDefaults.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func (r RetryPolicy) withDefaults() RetryPolicy {
	if r.MaxRetries <= 0 {
		r.MaxRetries = 5
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = 2 * time.Second
	}
	if r.MaxDelay <= 0 {
		r.MaxDelay = time.Minute
	}
	if r.BackoffFactor < 1 {
		r.BackoffFactor = 2
	}
	return r
}

// Exhausted reports whether a task that failed its attempt-th delivery
// should go to the dead letter list instead of being retried.
func (r RetryPolicy) Exhausted(attempt int) bool {
	return attempt >= r.withDefaults().MaxRetries
}

// NextDelay is the wait before retrying after the attempt-th failure
// (1-based), capped at MaxDelay.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	r = r.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	if delay > float64(r.MaxDelay) || math.IsInf(delay, 0) {
		return r.MaxDelay
	}
	return time.Duration(delay)
}

// RetryAt is when the attempt-th failure should be picked up again.
func (r RetryPolicy) RetryAt(now time.Time, attempt int) time.Time {
	return now.Add(r.NextDelay(attempt))
}
