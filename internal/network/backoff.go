package network

import "time"

// Backoff yields exponentially growing retry delays.
// The zero value retries immediately; set Initial and Max before use.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	cur time.Duration
}

// NewBackoff returns a backoff starting at initial and capped at max.
func NewBackoff(initial, max time.Duration) *Backoff {
	return &Backoff{Initial: initial, Max: max}
}

// Next returns the delay before the next attempt and doubles it.
func (b *Backoff) Next() time.Duration {
	if b.cur == 0 {
		b.cur = b.Initial
	}
	d := b.cur
	b.cur *= 2
	if b.Max > 0 && b.cur > b.Max {
		b.cur = b.Max
	}
	if b.Max > 0 && d > b.Max {
		d = b.Max
	}
	return d
}

// Reset starts the sequence over after a success.
func (b *Backoff) Reset() { b.cur = 0 }

// Failing reports whether Next has been called since the last Reset.
func (b *Backoff) Failing() bool { return b.cur != 0 }
