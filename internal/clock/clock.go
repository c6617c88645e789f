// Package clock provides a testable real-time source for anchor projection,
// throttle windows, and timer scheduling.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Timer is a scheduled one-shot callback.
type Timer interface {
	// Stop cancels the timer. It reports whether the call stopped the
	// timer before it fired.
	Stop() bool
}

// Ticker is a repeating scheduled callback.
type Ticker interface {
	Stop()
}

// Clock is the real-time source used by the service. All wall-clock reads
// and native timer scheduling go through it so tests can substitute Mock.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules f to run once after d.
	AfterFunc(d time.Duration, f func()) Timer
	// TickFunc schedules f to run every d until the ticker is stopped.
	TickFunc(d time.Duration, f func()) Ticker
}

// Real is the production clock -- uses system time and the runtime scheduler.
type Real struct{}

// Now returns the current system time.
func (Real) Now() time.Time { return time.Now() }

// AfterFunc schedules f on the runtime scheduler via time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type realTicker struct {
	t      *time.Ticker
	stopCh chan struct{}
	once   sync.Once
}

func (rt *realTicker) Stop() {
	rt.once.Do(func() {
		rt.t.Stop()
		close(rt.stopCh)
	})
}

// TickFunc runs f every d on a dedicated goroutine until Stop is called.
func (Real) TickFunc(d time.Duration, f func()) Ticker {
	rt := &realTicker{t: time.NewTicker(d), stopCh: make(chan struct{})}
	go func() {
		for {
			select {
			case <-rt.t.C:
				f()
			case <-rt.stopCh:
				return
			}
		}
	}()
	return rt
}

// Mock is a controllable clock for tests. Advancing it fires any timers and
// tickers that come due, in chronological order, on the calling goroutine.
type Mock struct {
	mu      sync.Mutex
	current time.Time
	timers  []*mockTimer
}

type mockTimer struct {
	clk     *Mock
	when    time.Time
	period  time.Duration // 0 for one-shot
	f       func()
	stopped bool
}

func (mt *mockTimer) Stop() bool {
	mt.clk.mu.Lock()
	defer mt.clk.mu.Unlock()
	was := mt.stopped
	mt.stopped = true
	mt.clk.remove(mt)
	return !was
}

// NewMock creates a Mock clock set to the given time.
func NewMock(t time.Time) *Mock {
	if t.IsZero() {
		t = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Mock{current: t}
}

// Now returns the mock clock's current time.
func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// AfterFunc registers a one-shot callback due at current+d.
func (m *Mock) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt := &mockTimer{clk: m, when: m.current.Add(d), f: f}
	m.timers = append(m.timers, mt)
	return mt
}

// TickFunc registers a repeating callback due every d.
func (m *Mock) TickFunc(d time.Duration, f func()) Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	mt := &mockTimer{clk: m, when: m.current.Add(d), period: d, f: f}
	m.timers = append(m.timers, mt)
	return mockTickerHandle{mt}
}

type mockTickerHandle struct{ mt *mockTimer }

func (h mockTickerHandle) Stop() { h.mt.Stop() }

// Set moves the mock clock to an absolute time. Moving forward fires due
// timers; moving backward only rewinds the reading.
func (m *Mock) Set(t time.Time) {
	m.mu.Lock()
	if t.After(m.current) {
		m.advanceTo(t) // advanceTo unlocks
		return
	}
	m.current = t
	m.mu.Unlock()
}

// Advance moves the clock forward by the given duration, firing timers.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.advanceTo(m.current.Add(d))
}

// advanceTo is called with mu held and releases it before returning.
// Callbacks run without the lock so they may schedule further timers.
func (m *Mock) advanceTo(target time.Time) {
	for {
		mt := m.nextDue(target)
		if mt == nil {
			break
		}
		m.current = mt.when
		if mt.period > 0 {
			mt.when = mt.when.Add(mt.period)
		} else {
			m.remove(mt)
			mt.stopped = true // fired: a later Stop reports false
		}
		f := mt.f
		m.mu.Unlock()
		f()
		m.mu.Lock()
	}
	m.current = target
	m.mu.Unlock()
}

func (m *Mock) nextDue(target time.Time) *mockTimer {
	sort.SliceStable(m.timers, func(i, j int) bool {
		return m.timers[i].when.Before(m.timers[j].when)
	})
	for _, mt := range m.timers {
		if !mt.stopped && !mt.when.After(target) {
			return mt
		}
	}
	return nil
}

func (m *Mock) remove(target *mockTimer) {
	for i, mt := range m.timers {
		if mt == target {
			m.timers = append(m.timers[:i], m.timers[i+1:]...)
			return
		}
	}
}
