// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// events.go — boundary event detectors (new-hour, at-noon, new-day,
// week-start, week-end): subscription lists, last-fired anchors, and the
// pure predicates that decide whether a transition fires.

package tempo

import (
	"sync"
	"time"

	"github.com/AndrewDonelson/tempo/internal/metrics"
)

// EventCallback is invoked with the virtual time at which the boundary was
// observed.
type EventCallback func(current time.Time)

// Subscription revokes exactly one event subscription. Cancel is safe to
// call more than once.
type Subscription struct {
	once sync.Once
	d    *Detector
	id   uint64
}

// Cancel removes the subscription from its detector.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.d.unsubscribe(s.id)
	})
}

type subEntry struct {
	id uint64
	cb EventCallback
}

// Detector watches one boundary kind. The predicate is purely functional
// over (previous, current) virtual time; all mutable state lives in the
// subscription list and the last-fired anchor.
type Detector struct {
	name       string
	shouldFire func(prev, curr time.Time) bool
	logger     Logger
	metrics    metrics.Recorder

	mu        sync.Mutex
	subs      []subEntry
	nextID    uint64
	lastFired time.Time
	primed    bool
}

func newDetector(name string, pred func(prev, curr time.Time) bool, logger Logger, rec metrics.Recorder) *Detector {
	return &Detector{name: name, shouldFire: pred, logger: logger, metrics: rec}
}

// Name returns the detector's event name.
func (d *Detector) Name() string { return d.name }

// Subscribe registers cb and returns its revocation handle. Callbacks run
// in subscription order.
func (d *Detector) Subscribe(cb EventCallback) *Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	d.subs = append(d.subs, subEntry{id: d.nextID, cb: cb})
	return &Subscription{d: d, id: d.nextID}
}

func (d *Detector) unsubscribe(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, e := range d.subs {
		if e.id == id {
			d.subs = append(d.subs[:i], d.subs[i+1:]...)
			return
		}
	}
}

// Clear drops every subscriber.
func (d *Detector) Clear() {
	d.mu.Lock()
	d.subs = nil
	d.mu.Unlock()
}

// HasSubscribers reports whether any callback is registered.
func (d *Detector) HasSubscribers() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs) > 0
}

// SubscriberCount returns the number of registered callbacks.
func (d *Detector) SubscriberCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// Initialize seeds the last-fired anchor so no boundary before current is
// retroactively crossed.
func (d *Detector) Initialize(current time.Time) {
	d.mu.Lock()
	d.lastFired = current
	d.primed = true
	d.mu.Unlock()
}

// CheckAndTrigger evaluates the predicate against the last-fired anchor
// and, on a hit, records the anchor and notifies subscribers in order.
// The anchor is updated before callbacks run so a re-entrant mutation
// observes an already-fired state. Returns whether the event fired.
//
// A detector with no subscribers is a no-op.
func (d *Detector) CheckAndTrigger(current time.Time) bool {
	d.mu.Lock()
	if len(d.subs) == 0 {
		d.mu.Unlock()
		return false
	}
	prev := d.lastFired
	if !d.primed {
		prev = current
	}
	if !d.shouldFire(prev, current) {
		d.mu.Unlock()
		return false
	}
	d.lastFired = current
	d.primed = true
	subs := make([]subEntry, len(d.subs))
	copy(subs, d.subs)
	d.mu.Unlock()

	d.metrics.RecordEventFired(d.name)
	for _, e := range subs {
		d.notify(e.cb, current)
	}
	return true
}

// notify isolates a single callback: a panic is recovered and logged and
// never aborts the notification loop.
func (d *Detector) notify(cb EventCallback, current time.Time) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tempo: event callback panicked", "event", d.name, "panic", r)
		}
	}()
	cb(current)
}

// ────────────────────────────────────────────────────────────────────────────
// Boundary predicates
// ────────────────────────────────────────────────────────────────────────────

// All predicates use prev < curr semantics: a backwards or zero-length
// transition never fires.

// crossedHour fires when the transition enters a later clock hour.
func crossedHour(prev, curr time.Time) bool {
	if !curr.After(prev) {
		return false
	}
	return floorToHour(curr).After(floorToHour(prev))
}

func floorToHour(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, t.Hour(), 0, 0, 0, t.Location())
}

// crossedNoon fires once per calendar day when the transition crosses or
// lands past 12:00. A fast-forward that overshoots noon still fires exactly
// once, for the landing day.
func crossedNoon(prev, curr time.Time) bool {
	if !curr.After(prev) {
		return false
	}
	if sameDate(prev, curr) {
		return prev.Hour() < 12 && curr.Hour() >= 12
	}
	return curr.Hour() >= 12
}

// crossedDay fires when the calendar date changes.
func crossedDay(prev, curr time.Time) bool {
	if !curr.After(prev) {
		return false
	}
	return !sameDate(prev, curr)
}

// crossedWeekStart fires when the ISO week number or year changes.
func crossedWeekStart(prev, curr time.Time) bool {
	if !curr.After(prev) {
		return false
	}
	py, pw := prev.ISOWeek()
	cy, cw := curr.ISOWeek()
	return pw != cw || py != cy
}

// crossedWeekEnd fires on the Sunday→Monday transition: the Monday-of-week
// of prev and curr differ. Any jump of at least seven days necessarily
// moves the Monday anchor; the explicit check keeps that case cheap.
func crossedWeekEnd(prev, curr time.Time) bool {
	if !curr.After(prev) {
		return false
	}
	if curr.Sub(prev) >= 7*24*time.Hour {
		return true
	}
	return !mondayOfWeek(prev).Equal(mondayOfWeek(curr))
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// mondayOfWeek returns midnight of the Monday beginning t's week.
func mondayOfWeek(t time.Time) time.Time {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	offset := (int(t.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return midnight.AddDate(0, 0, -offset)
}
