// Package scheduler is the single timer abstraction used by the donation flow.
// Every timer returns a cancel func; cancel is idempotent and safe to call
// from inside the timer callback.
package scheduler

import (
	"sync"
	"time"
)

// Scheduler runs callbacks after a delay or on a fixed interval
type Scheduler interface {
	// Every calls fn once per interval. Calls never overlap; ticks that
	// arrive while fn is still running are dropped.
	Every(interval time.Duration, fn func()) (cancel func())
	// After calls fn once after d
	After(d time.Duration, fn func()) (cancel func())
	Now() time.Time
}

// Real is a Scheduler backed by the runtime timers
type Real struct {
	mu      sync.Mutex
	stopped bool
	cancels map[int]func()
	nextID  int
}

// NewReal creates a wall clock scheduler
func NewReal() *Real {
	return &Real{cancels: make(map[int]func())}
}

// Now implements Scheduler
func (r *Real) Now() time.Time { return time.Now() }

// Every implements Scheduler
func (r *Real) Every(interval time.Duration, fn func()) func() {
	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	id, ok := r.track(stop)
	if !ok {
		return func() {}
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case <-done:
					return
				default:
				}
				fn()
			}
		}
	}()

	return func() {
		stop()
		r.untrack(id)
	}
}

// After implements Scheduler
func (r *Real) After(d time.Duration, fn func()) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return func() {}
	}
	r.nextID++
	id := r.nextID
	timer := time.AfterFunc(d, func() {
		r.untrack(id)
		fn()
	})
	r.cancels[id] = func() { timer.Stop() }

	return func() {
		timer.Stop()
		r.untrack(id)
	}
}

// Stop cancels every outstanding timer and refuses new ones
func (r *Real) Stop() {
	r.mu.Lock()
	r.stopped = true
	cancels := r.cancels
	r.cancels = make(map[int]func())
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

// Pending returns the number of live timers
func (r *Real) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cancels)
}

func (r *Real) track(cancel func()) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return 0, false
	}
	r.nextID++
	r.cancels[r.nextID] = cancel
	return r.nextID, true
}

func (r *Real) untrack(id int) {
	r.mu.Lock()
	delete(r.cancels, id)
	r.mu.Unlock()
}
