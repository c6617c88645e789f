// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// transform.go — the real↔virtual time transform: anchor pair, rate,
// pause state, and the projection invariant behind now().

package tempo

import (
	"time"

	"github.com/AndrewDonelson/tempo/internal/clock"
)

// transform maintains the anchor pair (baseReal, baseVirtual), the rate,
// and the pause bookkeeping. It has no lock of its own; the owning Service
// serializes access.
//
// Running:  now() = baseVirtual + rate·((realNow − baseReal) − pausedOffset)
// Paused:   now() = baseVirtual + rate·((pausedAt − baseReal) − pausedOffset)
//
// pausedOffset resets to zero on every re-anchoring operation.
type transform struct {
	clk clock.Clock

	baseReal    time.Time
	baseVirtual time.Time
	rate        int
	anchored    bool

	paused       bool
	pausedAt     time.Time
	pausedOffset time.Duration
}

// now projects the current virtual time.
func (tf *transform) now() time.Time {
	if !tf.anchored && tf.rate == 1 {
		// Production passthrough: no anchor has ever been set.
		return tf.clk.Now()
	}
	ref := tf.clk.Now()
	if tf.paused {
		ref = tf.pausedAt
	}
	elapsed := ref.Sub(tf.baseReal) - tf.pausedOffset
	return tf.baseVirtual.Add(time.Duration(int64(tf.rate) * int64(elapsed)))
}

// anchor re-establishes the anchor pair at target, zeroing the paused
// offset. A paused transform stays paused with a fresh pause span.
func (tf *transform) anchor(target time.Time) {
	n := tf.clk.Now()
	tf.baseReal = n
	tf.baseVirtual = target
	tf.pausedOffset = 0
	tf.anchored = true
	if tf.paused {
		tf.pausedAt = n
	}
}

// timeTravelTo jumps virtual time to target.
func (tf *transform) timeTravelTo(target time.Time) {
	tf.anchor(target)
}

// fastForward advances virtual time by d.
func (tf *transform) fastForward(d time.Duration) {
	tf.anchor(tf.now().Add(d))
}

// pause freezes virtual time. Reports whether the state changed.
func (tf *transform) pause() bool {
	if tf.paused {
		return false
	}
	if !tf.anchored {
		tf.anchor(tf.now())
	}
	tf.paused = true
	tf.pausedAt = tf.clk.Now()
	return true
}

// resume unfreezes virtual time, accumulating the paused span into
// pausedOffset. Reports whether the state changed.
func (tf *transform) resume() bool {
	if !tf.paused {
		return false
	}
	tf.pausedOffset += tf.clk.Now().Sub(tf.pausedAt)
	tf.paused = false
	tf.pausedAt = time.Time{}
	return true
}

// reset re-anchors both axes at real now and clears pause state entirely.
func (tf *transform) reset() {
	n := tf.clk.Now()
	tf.baseReal = n
	tf.baseVirtual = n
	tf.paused = false
	tf.pausedAt = time.Time{}
	tf.pausedOffset = 0
	tf.anchored = true
}

// setRate changes the multiplier, re-anchoring on both axes so the current
// now() is preserved. While paused, the pause span already spent is
// absorbed into the new anchor and pausedAt restarts at real now; resume
// therefore accounts only the span since the rate change.
func (tf *transform) setRate(rate int) {
	v := tf.now()
	tf.rate = rate
	tf.anchor(v)
}
