// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package telemetry counts scoring, fallback, archival, and aggregation
// events on a private prometheus registry.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "evalengine"

// Archive attempt outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics holds the engine's counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	Registry *prometheus.Registry

	FieldsScored     *prometheus.CounterVec
	ScoringFallbacks *prometheus.CounterVec
	ArchiveAttempts  *prometheus.CounterVec
	AggregationRuns  prometheus.Counter
}

// New creates the counters and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FieldsScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fields_scored_total",
			Help:      "Fields scored, by domain.",
		}, []string{"domain"}),
		ScoringFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scoring_fallbacks_total",
			Help:      "Scoring stages that substituted their fallback result, by stage.",
		}, []string{"stage"}),
		ArchiveAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_attempts_total",
			Help:      "Archival attempts, by outcome.",
		}, []string{"outcome"}),
		AggregationRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_runs_total",
			Help:      "Cross-paper aggregation runs.",
		}),
	}
	m.Registry.MustRegister(m.FieldsScored, m.ScoringFallbacks, m.ArchiveAttempts, m.AggregationRuns)
	return m
}

// FieldScored counts one scored field.
func (m *Metrics) FieldScored(domain string) {
	if m == nil {
		return
	}
	m.FieldsScored.WithLabelValues(domain).Inc()
}

// Fallback counts one stage fallback.
func (m *Metrics) Fallback(stage string) {
	if m == nil {
		return
	}
	m.ScoringFallbacks.WithLabelValues(stage).Inc()
}

// Archive counts one archival attempt with the given outcome.
func (m *Metrics) Archive(outcome string) {
	if m == nil {
		return
	}
	m.ArchiveAttempts.WithLabelValues(outcome).Inc()
}

// Aggregation counts one aggregation run.
func (m *Metrics) Aggregation() {
	if m == nil {
		return
	}
	m.AggregationRuns.Inc()
}
