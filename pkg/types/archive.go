// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"encoding/json"
	"time"
)

// MetricType is the top level of the evaluation metrics store.
type MetricType string

const (
	MetricAccuracy MetricType = "accuracy"
	MetricQuality  MetricType = "quality"
	MetricOverall  MetricType = "overall"
)

// MetricTypes lists the metric types in storage order.
var MetricTypes = []MetricType{MetricAccuracy, MetricQuality, MetricOverall}

// OverallField is the reserved field id holding a domain's roll-up.
const OverallField = "overall"

// Metrics is the three-level key-value store shape:
// metric type → domain → field → value object.
type Metrics map[MetricType]map[string]map[string]json.RawMessage

// Put stores raw under (metric, domain, field), creating levels as needed.
func (m Metrics) Put(metric MetricType, domain, field string, raw json.RawMessage) {
	if m[metric] == nil {
		m[metric] = make(map[string]map[string]json.RawMessage)
	}
	if m[metric][domain] == nil {
		m[metric][domain] = make(map[string]json.RawMessage)
	}
	m[metric][domain][field] = raw
}

// Lookup returns the value stored under (metric, domain, field).
func (m Metrics) Lookup(metric MetricType, domain, field string) (json.RawMessage, bool) {
	raw, ok := m[metric][domain][field]
	return raw, ok
}

// Clone returns a deep copy.
func (m Metrics) Clone() Metrics {
	out := make(Metrics, len(m))
	for metric, domains := range m {
		for domain, fields := range domains {
			for field, raw := range fields {
				cp := make(json.RawMessage, len(raw))
				copy(cp, raw)
				out.Put(metric, domain, field, cp)
			}
		}
	}
	return out
}

// UserInfo describes the evaluator in an archived record.
type UserInfo struct {
	ID              string  `json:"id,omitempty" yaml:"id,omitempty"`
	FirstName       string  `json:"firstName" yaml:"first_name"`
	LastName        string  `json:"lastName" yaml:"last_name"`
	Email           string  `json:"email,omitempty" yaml:"email,omitempty"`
	Role            string  `json:"role" yaml:"role"`
	DomainExpertise string  `json:"domainExpertise,omitempty" yaml:"domain_expertise,omitempty"`
	ExpertiseWeight float64 `json:"expertiseWeight" yaml:"expertise_weight"`
}

// Evaluator converts the user info to the evaluator identity used in
// aggregation. Without an explicit id the full name identifies the evaluator.
func (u UserInfo) Evaluator() Evaluator {
	id := u.ID
	if id == "" {
		id = u.FirstName + " " + u.LastName
	}
	return Evaluator{ID: id, Role: u.Role, ExpertiseWeight: u.ExpertiseWeight}
}

// ArchivePayload is the durable record of one evaluator's pass over one paper.
type ArchivePayload struct {
	Timestamp         time.Time `json:"timestamp"`
	Token             string    `json:"token"`
	UserInfo          UserInfo  `json:"userInfo"`
	EvaluationMetrics Metrics   `json:"evaluationMetrics"`
}
