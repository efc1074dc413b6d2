package worker

import (
	"math"
	"time"

	"receptionist/internal/config"
)

// RetryPolicy defines exponential backoff parameters.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// RetryPolicyFromConfig parses the configured durations; unparseable values fall back to worker defaults.
func RetryPolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	policy := RetryPolicy{
		MaxRetries:    cfg.MaxRetries,
		BackoffFactor: cfg.BackoffFactor,
	}
	if d, err := time.ParseDuration(cfg.InitialDelay); err == nil {
		policy.InitialDelay = d
	}
	if d, err := time.ParseDuration(cfg.MaxDelay); err == nil {
		policy.MaxDelay = d
	}
	return policy
}

// NextDelay returns delay for a given attempt (1-based), capped at MaxDelay.
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
