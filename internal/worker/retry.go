package worker

import (
	"math"
	"time"

	"admissionsbot/internal/config"
	"admissionsbot/internal/domain"
)

// RetryPolicy defines exponential backoff parameters for outbox tasks.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// PolicyFromConfig stretches the inline retry settings for the outbox, which
// may wait much longer than a parent would.
func PolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:    max(cfg.MaxAttempts, 1) * 2,
		InitialDelay:  max(cfg.InitialDelay, time.Second) * 4,
		MaxDelay:      max(cfg.MaxDelay*30, time.Minute),
		BackoffFactor: cfg.BackoffFactor,
	}
}

// NextDelay returns delay for a given attempt (1-based) with clamping.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	d := time.Duration(delay)
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}

// ShouldRetry reports whether a task that failed attempt times with err
// gets another go.
func (r RetryPolicy) ShouldRetry(attempt int, err error) bool {
	return domain.IsRetryable(err) && attempt < r.MaxRetries
}
