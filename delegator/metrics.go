// SPDX-License-Identifier: BSL-1.1
// Copyright (c) 2026 MuVeraAI Corporation

package delegator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the delegator's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	relayRequests *prometheus.CounterVec
	confirmations *prometheus.HistogramVec
	rotations     *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		relayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "did_relay_requests_total",
			Help: "Relay JSON-RPC calls by method and outcome.",
		}, []string{"method", "outcome"}),
		confirmations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "did_confirmation_seconds",
			Help:    "Time spent waiting for delegated transactions to be mined.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		}, []string{"outcome"}),
		rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "did_rotation_total",
			Help: "Key rotations by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.relayRequests, m.confirmations, m.rotations)
	}
	return m
}

func (m *Metrics) observeRelay(method, outcome string) {
	if m == nil {
		return
	}
	m.relayRequests.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) observeConfirmation(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveRotation counts a finished key rotation.
func (m *Metrics) ObserveRotation(outcome string) {
	if m == nil {
		return
	}
	m.rotations.WithLabelValues(outcome).Inc()
}
