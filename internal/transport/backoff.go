package transport

import (
	"context"
	"time"
)

// BackoffPolicy produces the wait duration before retry attempt n (0-based),
// and whether a retry is permitted at all.
type BackoffPolicy struct {
	Base       time.Duration
	Max        time.Duration
	MaxRetries int
}

// DefaultBackoffPolicy doubles from 500ms up to 30s across 5 attempts,
// matching the exponential-backoff convention used throughout the
// system's retry points (spec §4.2, §4.8).
func DefaultBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{Base: 500 * time.Millisecond, Max: 30 * time.Second, MaxRetries: 5}
}

// Next returns the wait duration for attempt (0-based) and whether the
// caller should retry at all.
func (b BackoffPolicy) Next(attempt int) (time.Duration, bool) {
	if attempt >= b.MaxRetries {
		return 0, false
	}
	wait := b.Base << attempt
	if wait > b.Max || wait <= 0 {
		wait = b.Max
	}
	return wait, true
}

// afterCtx returns a channel that fires after d, or immediately if ctx is
// already done (the select at the call site still observes ctx.Done()
// first in that race, but this avoids leaking a timer past cancellation).
func afterCtx(ctx context.Context, d time.Duration) <-chan time.Time {
	if ctx.Err() != nil {
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
	return time.After(d)
}
