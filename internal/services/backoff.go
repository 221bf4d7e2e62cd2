package services

import (
	"math/rand"
	"time"
)

// maxShift keeps base << attempt from overflowing.
const maxShift = 30

// Backoff computes resubscribe delays: base * 2^attempt capped at max, then
// jittered into [1.25, 1.75] of that value.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns the wait before retry number attempt (starting at 0).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt > maxShift {
		attempt = maxShift
	}
	delay := b.Base * time.Duration(1<<uint(attempt))
	if delay > b.Max || delay <= 0 {
		delay = b.Max
	}
	jitter := time.Duration(float64(delay) * (0.5 + rand.Float64()*0.5))
	return time.Duration(float64(delay)*0.75) + jitter
}
