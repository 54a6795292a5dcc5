// Package clock provides a testable time source.
package clock

import "time"

// Clock provides the current time.
//
// Components that compute elapsed time (liveness checks, staleness) must take a
// Clock so tests can control time deterministically.
type Clock interface {
	Now() time.Time
}

// Real is a production Clock implementation backed by time.Now.
type Real struct{}

// Now implements Clock.
func (Real) Now() time.Time { return time.Now() }
