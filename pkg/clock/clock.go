// Package clock provides an injectable time source.
//
// The reconciler's grace-window and re-take-window checks are pure
// comparisons against "now". Taking the time source as a dependency lets
// tests drive those windows deterministically instead of sleeping through
// real delays.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock.
type System struct{}

// Now returns the current UTC time.
func (System) Now() time.Time { return time.Now().UTC() }

// Manual is a hand-advanced clock for tests. Not goroutine-safe; tests
// drive it from a single goroutine.
type Manual struct {
	t time.Time
}

// NewManual returns a Manual clock set to the given instant.
func NewManual(t time.Time) *Manual { return &Manual{t: t} }

// Now returns the clock's current instant.
func (m *Manual) Now() time.Time { return m.t }

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) { m.t = m.t.Add(d) }

// Set jumps the clock to a specific instant.
func (m *Manual) Set(t time.Time) { m.t = t }
