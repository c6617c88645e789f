// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// guard.go — HTTP request guard: glob-based policy evaluation with a
// wall-clock sliding-window throttle so an accelerated clock cannot
// amplify request traffic to real backends.

package tempo

import (
	"fmt"
	"sync"
	"time"

	"github.com/AndrewDonelson/tempo/internal/clock"
	"github.com/AndrewDonelson/tempo/internal/glob"
	"github.com/AndrewDonelson/tempo/internal/metrics"
)

// Decision is the outcome of a guard evaluation. Policy outcomes are
// returned, never raised.
type Decision struct {
	Action PolicyAction
	Reason string
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool { return d.Action == PolicyAllow }

// requestGuard evaluates the configured policy for outbound request paths.
// The throttle log uses wall-clock time exclusively.
type requestGuard struct {
	clk      clock.Clock
	logger   Logger
	metrics  metrics.Recorder
	policy   PolicyAction
	allowed  []string
	blocked  []string
	limit    int
	onDenied func(path, reason string)
	patterns *glob.Cache

	mu         sync.Mutex
	requestLog []time.Time
}

func newRequestGuard(cfg Config, clk clock.Clock, rec metrics.Recorder) *requestGuard {
	return &requestGuard{
		clk:      clk,
		logger:   cfg.Logger,
		metrics:  rec,
		policy:   cfg.HTTPPolicy,
		allowed:  cfg.HTTPAllowedPatterns,
		blocked:  cfg.HTTPBlockedPatterns,
		limit:    cfg.HTTPThrottleLimit,
		onDenied: cfg.OnHTTPRequestDenied,
		patterns: glob.NewCache(),
	}
}

// evaluate resolves the decision for path at the given rate. Blocked
// patterns win over allowed patterns, which win over the default policy.
// Real-time mode (rate 1) never blocks.
func (g *requestGuard) evaluate(path string, rate int) Decision {
	d := g.decide(path, rate)
	g.metrics.RecordGuardDecision(d.Action.String())
	if d.Action != PolicyAllow {
		g.logger.Debug("tempo: request denied", "path", path, "action", d.Action.String(), "reason", d.Reason)
		if g.onDenied != nil {
			g.onDenied(path, d.Reason)
		}
	}
	return d
}

func (g *requestGuard) decide(path string, rate int) Decision {
	if rate == 1 {
		return Decision{Action: PolicyAllow}
	}
	if g.matchAny(g.blocked, path) {
		return Decision{Action: PolicyBlock, Reason: blockReason(rate)}
	}
	if g.matchAny(g.allowed, path) {
		return Decision{Action: PolicyAllow}
	}
	switch g.policy {
	case PolicyAllow:
		return Decision{Action: PolicyAllow}
	case PolicyThrottle:
		return g.throttle()
	default:
		return Decision{Action: PolicyBlock, Reason: blockReason(rate)}
	}
}

// throttle admits a request if fewer than limit admissions happened within
// the trailing wall-clock window, evicting stale entries first.
func (g *requestGuard) throttle() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.clk.Now()
	cutoff := now.Add(-throttleWindow)
	kept := g.requestLog[:0]
	for _, t := range g.requestLog {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	g.requestLog = kept
	if len(g.requestLog) < g.limit {
		g.requestLog = append(g.requestLog, now)
		return Decision{Action: PolicyAllow}
	}
	return Decision{
		Action: PolicyThrottle,
		Reason: fmt.Sprintf("Throttle limit (%d/min) exceeded", g.limit),
	}
}

func (g *requestGuard) matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if g.patterns.Match(p, path) {
			return true
		}
	}
	return false
}

// resetThrottle clears the admission log.
func (g *requestGuard) resetThrottle() {
	g.mu.Lock()
	g.requestLog = nil
	g.mu.Unlock()
}

func blockReason(rate int) string {
	return fmt.Sprintf("accelerated mode active (rate=%dx)", rate)
}
