// Package clock is the scheduling seam of the machine. Real wraps the wall
// clock; Mock wraps a mock clock whose Add waits for the callbacks it fires.
package clock

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

type Timer interface {
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

type wall struct {
	clock.Clock
}

func (w wall) AfterFunc(d time.Duration, fn func()) Timer {
	return w.Clock.AfterFunc(d, fn)
}

func Real() Clock {
	return wall{Clock: clock.New()}
}

// Mock only moves when Add is called. The underlying mock runs every
// callback on its own goroutine; Add steps from deadline to deadline and waits
// for the callbacks due at each one before moving on. Callbacks sharing a
// deadline may run concurrently.
type Mock struct {
	*clock.Mock

	mu      sync.Mutex
	pending []*mockTimer
}

type mockTimer struct {
	timer    *clock.Timer
	deadline time.Time
	done     chan struct{}
	once     sync.Once
}

func (t *mockTimer) finish() {
	t.once.Do(func() { close(t.done) })
}

func (t *mockTimer) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *mockTimer) Stop() bool {
	stopped := t.timer.Stop()
	if stopped {
		t.finish()
	}
	return stopped
}

// NewMock returns a mock clock set to the Unix epoch.
func NewMock() *Mock {
	return &Mock{Mock: clock.NewMock()}
}

func (m *Mock) AfterFunc(d time.Duration, fn func()) Timer {
	t := &mockTimer{
		deadline: m.Mock.Now().Add(d),
		done:     make(chan struct{}),
	}
	m.mu.Lock()
	m.pending = append(m.pending, t)
	m.mu.Unlock()
	t.timer = m.Mock.AfterFunc(d, func() {
		defer t.finish()
		fn()
	})
	return t
}

// next returns the earliest unfinished timer due by target.
func (m *Mock) next(target time.Time) *mockTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	var earliest *mockTimer
	live := m.pending[:0]
	for _, t := range m.pending {
		if t.finished() {
			continue
		}
		live = append(live, t)
		if t.deadline.After(target) {
			continue
		}
		if earliest == nil || t.deadline.Before(earliest.deadline) {
			earliest = t
		}
	}
	clear(m.pending[len(live):])
	m.pending = live
	return earliest
}

// Add moves the clock forward by d and returns once every callback that fell
// due has returned, including ones scheduled by those callbacks.
func (m *Mock) Add(d time.Duration) {
	target := m.Mock.Now().Add(d)
	for t := m.next(target); t != nil; t = m.next(target) {
		m.Mock.Set(t.deadline)
		<-t.done
	}
	m.Mock.Set(target)
}

// Pending returns the number of callbacks that have neither run nor been
// stopped.
func (m *Mock) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, t := range m.pending {
		if !t.finished() {
			count++
		}
	}
	return count
}
