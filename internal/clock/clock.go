// Package clock abstracts time for the poll loop, dedup window, and
// session timers so tests can drive them deterministically.
package clock

import "time"

// Clock provides the current time to time-dependent components.
// Params: none.
// Returns: current wall-clock time.
type Clock interface {
	Now() time.Time
}

// RealClock reads current UTC time from system clock.
// Params: none.
// Returns: current UTC timestamp.
type RealClock struct{}

// Now returns current UTC time.
// Params: none.
// Returns: current UTC timestamp.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}
