// Package simclock provides the time source used by the arbitration core.
// Ledgers never call time.Now directly so tests can drive them with a Manual clock.
package simclock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

// System reads the wall clock. Values carry Go's monotonic reading, so
// differences between two Now() calls are immune to wall-clock steps.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Manual is a settable clock for tests and offline replay.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Seconds converts a duration to the float seconds used in ledger contracts.
func Seconds(d time.Duration) float64 { return d.Seconds() }

// FromSeconds converts float seconds back to a duration.
func FromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Stepped holds one reading of a source clock, truncated to milliseconds,
// until Step is called again. The world loop steps it once per tick so every
// ledger sees the same instant, and a tick log can reproduce it exactly.
type Stepped struct {
	src Clock
	mu  sync.Mutex
	now time.Time
}

func NewStepped(src Clock) *Stepped {
	if src == nil {
		src = System{}
	}
	s := &Stepped{src: src}
	s.Step()
	return s
}

// Step takes a new reading from the source and returns it.
func (s *Stepped) Step() time.Time {
	t := s.src.Now().Truncate(time.Millisecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	// Never run backwards, even if the wall clock does.
	if t.Before(s.now) {
		t = s.now
	}
	s.now = t
	return t
}

func (s *Stepped) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}
