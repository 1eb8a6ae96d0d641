// Package clock abstracts wall-clock time so polling and retention logic
// can be driven deterministically in tests.
//
// Production code injects Real(); tests inject NewFake() and move time
// forward explicitly with Advance.
package clock

import "time"

// Clock is the subset of the time package used by the exchange.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d has
	// elapsed. If d <= 0 the channel fires immediately.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
