// Copyright (c) 2026 Nlaak Studios (https://nlaak.com)
// Author: Andrew Donelson (https://www.linkedin.com/in/andrew-donelson/)
//
// prometheus.go — Prometheus-backed Recorder publishing tick, event, guard,
// rate, and persistence-failure series.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus is a Recorder backed by prometheus collectors.
type Prometheus struct {
	ticks         prometheus.Counter
	events        *prometheus.CounterVec
	guards        *prometheus.CounterVec
	rate          prometheus.Gauge
	persistErrors prometheus.Counter
}

// NewPrometheus creates a Recorder and registers its collectors on reg.
// A nil reg uses the default registerer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prometheus{
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tempo",
			Name:      "event_check_ticks_total",
			Help:      "Number of periodic event-check sweeps.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tempo",
			Name:      "events_fired_total",
			Help:      "Boundary events fired, by detector.",
		}, []string{"event"}),
		guards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tempo",
			Name:      "guard_decisions_total",
			Help:      "HTTP guard decisions, by action.",
		}, []string{"action"}),
		rate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tempo",
			Name:      "clock_rate",
			Help:      "Current virtual clock rate multiplier.",
		}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tempo",
			Name:      "persist_errors_total",
			Help:      "Swallowed persistence failures.",
		}),
	}
	reg.MustRegister(p.ticks, p.events, p.guards, p.rate, p.persistErrors)
	return p
}

func (p *Prometheus) RecordTick() { p.ticks.Inc() }

func (p *Prometheus) RecordEventFired(event string) {
	p.events.WithLabelValues(event).Inc()
}

func (p *Prometheus) RecordGuardDecision(action string) {
	p.guards.WithLabelValues(action).Inc()
}

func (p *Prometheus) RecordRateChange(rate int) {
	p.rate.Set(float64(rate))
}

func (p *Prometheus) RecordPersistError() { p.persistErrors.Inc() }
