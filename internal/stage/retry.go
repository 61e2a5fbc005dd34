package stage

import (
	"math"
	"time"

	"memeflow/internal/config"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 10 * time.Second
	defaultJitter      = 0.2
)

// RetryPolicy bounds how a node is retried after transient failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
}

// DefaultRetry returns three attempts, 1s doubling to at most 10s, 20% jitter.
func DefaultRetry() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
		Jitter:      defaultJitter,
	}
}

// RetryFromConfig reads the [retry] section.
func RetryFromConfig(cfg *config.Config) RetryPolicy {
	if cfg == nil {
		return DefaultRetry()
	}
	return RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.BaseDelay(),
		MaxDelay:    cfg.MaxDelay(),
		Jitter:      cfg.Retry.Jitter,
	}
}

// Attempts returns the attempt budget, at least one.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Delay returns the wait after failed attempt n (1-based): BaseDelay doubled
// per attempt, capped at MaxDelay, then jittered. rnd returns values in
// [0,1); nil disables jitter.
func (p RetryPolicy) Delay(attempt int, rnd func() float64) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 && rnd != nil {
		delay *= 1 + p.Jitter*(2*rnd()-1)
	}
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if delay < 0 {
		return 0
	}
	return time.Duration(delay)
}

// Cap clamps an externally suggested delay (e.g. Retry-After) to MaxDelay.
func (p RetryPolicy) Cap(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
