// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// config.go — Config struct consumed by NewService, policy action enum,
// and the rate/window limits enforced by the service.

package tempo

import (
	"time"

	"github.com/AndrewDonelson/tempo/internal/clock"
	"github.com/AndrewDonelson/tempo/internal/codec"
	"github.com/AndrewDonelson/tempo/internal/kv"
	"github.com/AndrewDonelson/tempo/internal/metrics"
)

// Re-export types so callers only import this package.
type Store = kv.Store
type Codec = codec.Codec
type MetricsRecorder = metrics.Recorder

// PolicyAction is the outcome class of an HTTP guard evaluation.
// The zero value is PolicyBlock, which is also the default policy.
type PolicyAction int

const (
	PolicyBlock PolicyAction = iota
	PolicyAllow
	PolicyThrottle
)

// String returns the lowercase action name.
func (a PolicyAction) String() string {
	switch a {
	case PolicyAllow:
		return "allow"
	case PolicyThrottle:
		return "throttle"
	default:
		return "block"
	}
}

// Rate and throttle limits.
const (
	// MaxClockRate is the highest accepted rate multiplier; SetRate clamps
	// to [0, MaxClockRate].
	MaxClockRate = 100_000

	// throttleWindow is the wall-clock sliding window over prior guard
	// allowances. Fixed at 60 real seconds regardless of rate.
	throttleWindow = 60 * time.Second

	defaultThrottleLimit = 10
)

// Config contains all clock service configuration.
type Config struct {
	// ClockRate is the multiplier applied to elapsed real time.
	// 1 = passthrough. A zero value is treated as unset and coerced to 1;
	// freeze progression with Pause or SetRate(0) instead.
	ClockRate int

	// IsProduction forces rate 1 and makes any acceleration attempt fail
	// with ErrProductionViolation.
	IsProduction bool

	// ForceEnable permits acceleration in non-dev builds (see BuildEnv).
	ForceEnable bool

	// AppVersion gates the persisted anchor: when it differs from the
	// stored version the anchor is discarded on Initialize.
	AppVersion string

	// HTTP guard policy
	HTTPPolicy          PolicyAction
	HTTPAllowedPatterns []string
	HTTPBlockedPatterns []string
	HTTPThrottleLimit   int
	OnHTTPRequestDenied func(path, reason string)

	// Persistence DSNs. When RedisAddr is set the anchor persists to
	// Redis; when PostgresDSN is set, to PostgreSQL. Both unset keeps the
	// anchor in process memory (lost on restart). An explicit Store wins
	// over either DSN.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PostgresDSN   string

	// Optional overrideable components
	Store   kv.Store
	Clock   clock.Clock
	Logger  Logger
	Metrics metrics.Recorder
	Codec   codec.Codec

	// Encryption key for exported state snapshots (must be 32 bytes for
	// AES-256-GCM; nil = snapshots are plaintext).
	EncryptionKey []byte
}

func (c *Config) defaults() {
	if c.ClockRate == 0 {
		c.ClockRate = 1
	}
	if c.HTTPThrottleLimit <= 0 {
		c.HTTPThrottleLimit = defaultThrottleLimit
	}
	if c.Clock == nil {
		c.Clock = clock.Real{}
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = metrics.Noop{}
	}
	if c.Codec == nil {
		c.Codec = codec.JSON{}
	}
}
