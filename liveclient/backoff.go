// liveclient/backoff.go - Reconnect delays
package liveclient

import (
	"math/rand"
	"time"
)

const (
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultMaxDelay     = 30 * time.Second
	DefaultJitter       = 0.2
)

// Backoff hands out reconnect delays: the first retry is immediate, later
// ones double from Initial up to Max with a proportional jitter. Not safe
// for concurrent use.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  float64

	attempt int
	// rand returns a value in [0, 1)
	rand func() float64
}

func NewBackoff() *Backoff {
	return &Backoff{
		Initial: DefaultInitialDelay,
		Max:     DefaultMaxDelay,
		Jitter:  DefaultJitter,
		rand:    rand.Float64,
	}
}

// Next returns the delay before the next attempt and advances the sequence.
func (b *Backoff) Next() time.Duration {
	n := b.attempt
	b.attempt++
	if n == 0 {
		return 0
	}

	d := b.Initial
	for i := 1; i < n && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}

	if b.Jitter > 0 {
		r := rand.Float64
		if b.rand != nil {
			r = b.rand
		}
		d = time.Duration(float64(d) * (1 + b.Jitter*(2*r()-1)))
	}
	if d > b.Max {
		d = b.Max
	}
	return d
}

// Reset restarts the sequence after a successful connect.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt reports how many delays have been handed out since the last reset.
func (b *Backoff) Attempt() int {
	return b.attempt
}
