// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// errors.go — sentinel error variables returned by the public Tempo API,
// covering production guards, lifecycle misuse, and snapshot decoding.

// Package tempo provides a virtual-time kernel: a user-controllable wall
// clock that can be accelerated, paused, jumped, and rewound while keeping
// time-based events, virtual timers, and date predicates causally
// consistent. A companion HTTP guard prevents an accelerated clock from
// amplifying request traffic to real backends.
package tempo

import "errors"

// Configuration errors
var (
	ErrProductionViolation = errors.New("tempo: clock acceleration is not allowed in production")
	ErrInvalidConfig       = errors.New("tempo: invalid configuration")
)

// Lifecycle errors
var (
	ErrNotInitialized     = errors.New("tempo: service not initialized; call Setup or Initialize first")
	ErrAlreadyInitialized = errors.New("tempo: service already initialized")
	ErrDisposed           = errors.New("tempo: service has been disposed")
)

// Snapshot errors
var (
	ErrInvalidSnapshot       = errors.New("tempo: invalid state snapshot")
	ErrEncryptionKeyRequired = errors.New("tempo: snapshot is encrypted; configure EncryptionKey to import it")
)
