// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// global.go — process-wide singleton façade over Service plus the date
// predicates bound to it. Tests can tear the singleton down with
// ResetGlobal.

package tempo

import (
	"context"
	"sync"
	"time"
)

var (
	globalMu  sync.Mutex
	globalSvc *Service
)

// Setup constructs and initializes the process-wide Service, or returns
// the existing one if Setup already succeeded.
func Setup(ctx context.Context, cfg Config) (*Service, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalSvc != nil {
		return globalSvc, nil
	}
	svc, err := NewService(cfg)
	if err != nil {
		return nil, err
	}
	if err := svc.Initialize(ctx); err != nil {
		return nil, err
	}
	globalSvc = svc
	return svc, nil
}

// GlobalService returns the process-wide Service, or ErrNotInitialized
// before Setup.
func GlobalService() (*Service, error) {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalSvc == nil {
		return nil, ErrNotInitialized
	}
	return globalSvc, nil
}

// C is the short-name accessor for the process-wide Service. It panics
// with ErrNotInitialized before Setup; use GlobalService to get an error
// instead.
func C() *Service {
	svc, err := GlobalService()
	if err != nil {
		panic(err)
	}
	return svc
}

// ResetGlobal disposes the process-wide Service and releases it so Setup
// can run again.
func ResetGlobal() {
	globalMu.Lock()
	svc := globalSvc
	globalSvc = nil
	globalMu.Unlock()
	if svc != nil {
		svc.Dispose()
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Date predicates
// ────────────────────────────────────────────────────────────────────────────

// IsToday reports whether t falls on the current virtual calendar day.
func (s *Service) IsToday(t time.Time) bool {
	return sameDate(t, s.Now())
}

// IsYesterday reports whether t falls on the virtual day before today.
func (s *Service) IsYesterday(t time.Time) bool {
	return sameDate(t, s.Now().AddDate(0, 0, -1))
}

// IsInPast reports whether t is before the current virtual time.
func (s *Service) IsInPast(t time.Time) bool {
	return t.Before(s.Now())
}

// IsInFuture reports whether t is after the current virtual time.
func (s *Service) IsInFuture(t time.Time) bool {
	return t.After(s.Now())
}

// IsDifferentFromNow reports whether t differs from the current virtual
// time by more than one second in either direction.
func (s *Service) IsDifferentFromNow(t time.Time) bool {
	d := s.DifferenceFromNow(t)
	if d < 0 {
		d = -d
	}
	return d > time.Second
}

// DifferenceFromNow returns t minus the current virtual time.
func (s *Service) DifferenceFromNow(t time.Time) time.Duration {
	return t.Sub(s.Now())
}

// Package-level predicates bound to the global Service. They panic with
// ErrNotInitialized before Setup, like C.

// IsVirtualToday reports whether t falls on the current virtual day.
func IsVirtualToday(t time.Time) bool { return C().IsToday(t) }

// IsVirtualYesterday reports whether t falls on the previous virtual day.
func IsVirtualYesterday(t time.Time) bool { return C().IsYesterday(t) }

// IsInVirtualPast reports whether t is before virtual now.
func IsInVirtualPast(t time.Time) bool { return C().IsInPast(t) }

// IsInVirtualFuture reports whether t is after virtual now.
func IsInVirtualFuture(t time.Time) bool { return C().IsInFuture(t) }

// IsDifferentFromVirtualNow reports whether t differs from virtual now by
// more than one second.
func IsDifferentFromVirtualNow(t time.Time) bool { return C().IsDifferentFromNow(t) }

// DifferenceFromVirtualNow returns t minus virtual now.
func DifferenceFromVirtualNow(t time.Time) time.Duration { return C().DifferenceFromNow(t) }
