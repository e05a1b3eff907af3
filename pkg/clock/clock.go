// Package clock provides the engine's monotonic time source.
package clock

import "time"

// Clock reads monotonic time. The zero value is ready to use.
//
// Go's time.Now() already carries a monotonic reading on every platform the
// toolchain targets, so unlike the original C implementation (which switches
// between a mach timebase and clock_gettime(CLOCK_MONOTONIC) per platform)
// a single implementation suffices here.
type Clock struct{}

// New returns a ready-to-use Clock.
func New() Clock {
	return Clock{}
}

// Now returns the current monotonic instant.
func (Clock) Now() time.Time {
	return time.Now()
}

// DiffMillis returns (a-b) in milliseconds. Callers that need wraparound-safe
// comparisons over a 32-bit window should use DiffMillis32.
func DiffMillis(a, b time.Time) int64 {
	return a.Sub(b).Milliseconds()
}

// DiffMillis32 returns (a-b) in milliseconds truncated to int32, matching the
// modular comparison semantics used throughout the scheduler and timer wheel
// (position deltas are compared with the top bit treated as a sign bit so
// that wraparound after roughly 24 days behaves like a negative delta rather
// than an enormous positive one).
func DiffMillis32(a, b time.Time) int32 {
	return int32(uint32(a.Sub(b).Milliseconds()))
}
