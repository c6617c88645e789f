// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// timer.go — virtual timers: real durations scaled by the clock rate so a
// "daily" callback under 100x acceleration fires every 864 real seconds.

package tempo

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/AndrewDonelson/tempo/internal/clock"
)

// Timer is a handle to a scheduled virtual-duration callback.
type Timer struct {
	mu      sync.Mutex
	native  clock.Timer
	ticker  clock.Ticker
	stopped bool
}

// Cancel stops the underlying native timer. Safe to call more than once.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.native != nil {
		t.native.Stop()
	}
	if t.ticker != nil {
		t.ticker.Stop()
	}
}

// Periodic schedules cb every d of virtual time. The rate is snapshotted
// at construction: a later SetRate does not re-scale an in-flight timer,
// so hosts re-create timers after rate changes if needed.
func (s *Service) Periodic(d time.Duration, cb func()) *Timer {
	return &Timer{ticker: s.clk.TickFunc(s.scaleDuration(d), cb)}
}

// Delayed schedules cb once after d of virtual time. Same snapshot
// contract as Periodic.
func (s *Service) Delayed(d time.Duration, cb func()) *Timer {
	return &Timer{native: s.clk.AfterFunc(s.scaleDuration(d), cb)}
}

// Wait blocks until d of virtual time has elapsed or ctx is done.
func (s *Service) Wait(ctx context.Context, d time.Duration) error {
	done := make(chan struct{})
	t := s.Delayed(d, func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		t.Cancel()
		return ctx.Err()
	}
}

// scaleDuration converts a virtual duration to the real duration a native
// timer must run for. Production and rates ≤ 1 pass through unscaled; a
// frozen clock (rate 0) cannot shorten a timer.
func (s *Service) scaleDuration(d time.Duration) time.Duration {
	s.mu.Lock()
	rate := s.tf.rate
	production := s.cfg.IsProduction
	s.mu.Unlock()
	if production || rate <= 1 {
		return d
	}
	scaled := time.Duration(math.Round(float64(d) / float64(rate)))
	if scaled <= 0 {
		scaled = time.Nanosecond
	}
	return scaled
}
