// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// logger.go — Logger interface and noop implementation used internally by
// Tempo for structured logging; swap in zap, slog, or logrus by passing
// a custom implementation to Config.Logger.

package tempo

import (
	"context"
	"log/slog"
)

// Logger is the logging interface used internally by Tempo.
// Implement this to route logs to zap, slog, logrus, etc.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	Debug(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Info(_ string, _ ...any)  {}
func (noopLogger) Warn(_ string, _ ...any)  {}
func (noopLogger) Error(_ string, _ ...any) {}
func (noopLogger) Debug(_ string, _ ...any) {}

// SlogLogger adapts a *slog.Logger to the Tempo Logger interface.
type SlogLogger struct {
	L *slog.Logger
}

// NewSlogLogger wraps l; a nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return SlogLogger{L: l}
}

func (s SlogLogger) Info(msg string, keysAndValues ...any) {
	s.L.Log(context.Background(), slog.LevelInfo, msg, keysAndValues...)
}

func (s SlogLogger) Warn(msg string, keysAndValues ...any) {
	s.L.Log(context.Background(), slog.LevelWarn, msg, keysAndValues...)
}

func (s SlogLogger) Error(msg string, keysAndValues ...any) {
	s.L.Log(context.Background(), slog.LevelError, msg, keysAndValues...)
}

func (s SlogLogger) Debug(msg string, keysAndValues ...any) {
	s.L.Log(context.Background(), slog.LevelDebug, msg, keysAndValues...)
}
