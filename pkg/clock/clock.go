// Package clock provides the experiment clock shared by a session.
//
// All event and log timestamps are milliseconds since the clock was started.
// The clock is monotonic: it is derived from time.Since, never the wall clock.
package clock

import (
	"sync"
	"time"
)

// Clock reports monotonic experiment time.
type Clock interface {
	// Now returns milliseconds since the experiment started.
	Now() int64
}

// Monotonic is a Clock anchored at its creation time.
type Monotonic struct {
	start time.Time
}

// New starts a new monotonic experiment clock.
func New() *Monotonic {
	return &Monotonic{start: time.Now()}
}

// Now returns milliseconds since New.
func (m *Monotonic) Now() int64 {
	return time.Since(m.start).Milliseconds()
}

// Manual is a Clock driven by hand. Tests use it to get deterministic event times.
type Manual struct {
	mu  sync.Mutex
	now int64
}

// NewManual returns a manual clock set to start.
func NewManual(start int64) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (m *Manual) Now() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves the clock forward by ms and returns the new time.
func (m *Manual) Advance(ms int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += ms
	return m.now
}

// Set jumps the clock to t.
func (m *Manual) Set(t int64) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}
