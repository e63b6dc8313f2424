package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler driven by Advance. Callbacks run synchronously on the
// goroutine that calls Advance, in due order.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	timers map[int]*manualTimer
	nextID int
}

type manualTimer struct {
	id       int
	due      time.Time
	interval time.Duration
	fn       func()
}

// NewManual creates a manual scheduler starting at start
func NewManual(start time.Time) *Manual {
	return &Manual{now: start, timers: make(map[int]*manualTimer)}
}

// Now implements Scheduler
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Every implements Scheduler
func (m *Manual) Every(interval time.Duration, fn func()) func() {
	return m.add(interval, interval, fn)
}

// After implements Scheduler
func (m *Manual) After(d time.Duration, fn func()) func() {
	return m.add(d, 0, fn)
}

// Elapsed returns how far the clock moved since start
func (m *Manual) Elapsed(start time.Time) time.Duration {
	return m.Now().Sub(start)
}

// Pending returns the number of live timers
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timers)
}

// Advance moves the clock forward by d, firing every timer that falls due
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		t := m.nextDue(target)
		if t == nil {
			break
		}
		t.fn()
	}

	m.mu.Lock()
	m.now = target
	m.mu.Unlock()
}

// nextDue pops the earliest timer due at or before target and moves the clock to it
func (m *Manual) nextDue(target time.Time) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()

	due := make([]*manualTimer, 0, len(m.timers))
	for _, t := range m.timers {
		if !t.due.After(target) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].id < due[j].id
		}
		return due[i].due.Before(due[j].due)
	})

	t := due[0]
	m.now = t.due
	fired := *t
	if t.interval > 0 {
		t.due = t.due.Add(t.interval)
	} else {
		delete(m.timers, t.id)
	}
	return &fired
}

func (m *Manual) add(d, interval time.Duration, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.timers[id] = &manualTimer{id: id, due: m.now.Add(d), interval: interval, fn: fn}
	return func() {
		m.mu.Lock()
		delete(m.timers, id)
		m.mu.Unlock()
	}
}
