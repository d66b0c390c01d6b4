// Package clock provides the time source used for expiration decisions.
package clock

import (
	"sync"
	"time"
)

type (
	// Clock returns the current instant.
	Clock interface {
		Now() time.Time
	}

	systemClock struct{}

	// Manual is a Clock that only moves when told to. Safe for concurrent use.
	Manual struct {
		mu  sync.RWMutex
		now time.Time
	}
)

// System returns the wall clock, in UTC.
func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start.UTC()}
}

func (m *Manual) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.now
}

// Advance moves the clock forward by d and returns the new instant.
func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.now = m.now.Add(d)

	return m.now
}

func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.now = t.UTC()
}
