package utils

import (
	"sync"
	"time"
)

// Clock is the source of "now" for everything that depends on the calendar:
// monthly budget resets, report windows, login streaks and default expense dates.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (s SystemClock) Now() time.Time {
	return time.Now()
}

// MockClock is safe to read from report workers while a test moves it.
type MockClock struct {
	mu       sync.RWMutex
	FixedNow time.Time
}

func (m *MockClock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.FixedNow
}

func (m *MockClock) SetNow(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FixedNow = now
}

func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FixedNow = m.FixedNow.Add(d)
}

// MonthKey formats t as the "YYYY-MM" key a monthly budget is tracked under.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
