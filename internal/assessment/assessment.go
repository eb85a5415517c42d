// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package assessment rolls field scores up into domain and paper
// assessments.
package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pdiddy/eval-engine/internal/fieldeval"
	"github.com/pdiddy/eval-engine/internal/store"
	"github.com/pdiddy/eval-engine/pkg/types"
)

// Builder collects field scores for one domain.
type Builder struct {
	domain types.Domain
	cfg    types.DomainConfig
	fields map[string]types.FieldScore
}

// NewBuilder returns a Builder for domain using cfg's field list and
// accuracy/quality weights.
func NewBuilder(domain types.Domain, cfg types.DomainConfig) *Builder {
	return &Builder{domain: domain, cfg: cfg, fields: make(map[string]types.FieldScore)}
}

// Add records the score of an evaluated field. A later call for the same
// field replaces the earlier one.
func (b *Builder) Add(ev fieldeval.FieldEvaluation) {
	b.AddCustom(ev.Field, ev.Score)
}

// AddCustom records a score produced outside the field evaluation pipeline,
// such as a RankedChoice. Scores are clamped to [0,1] and the reserved
// overall field id is ignored.
func (b *Builder) AddCustom(field string, s types.FieldScore) {
	if field == "" || field == types.OverallField {
		return
	}
	s.Field = field
	s.AccuracyScore = types.Clamp01(s.AccuracyScore)
	s.QualityScore = types.Clamp01(s.QualityScore)
	s.OverallScore = types.Clamp01(s.OverallScore)
	if s.AutomatedAccuracy != nil {
		a := types.Clamp01(*s.AutomatedAccuracy)
		s.AutomatedAccuracy = &a
	}
	b.fields[field] = s
}

// Build returns the domain assessment. The overall entry averages the
// configured fields that were scored, or every scored field when none are
// configured.
func (b *Builder) Build() types.DomainAssessment {
	fields := make(map[string]types.FieldScore, len(b.fields))
	for k, v := range b.fields {
		fields[k] = v
	}
	return types.DomainAssessment{
		Domain:  b.domain,
		Fields:  fields,
		Overall: Overall(fields, b.cfg),
	}
}

// Overall computes the domain roll-up over the fields cfg selects.
func Overall(fields map[string]types.FieldScore, cfg types.DomainConfig) types.DomainOverall {
	ids := cfg.Fields
	if len(ids) == 0 {
		ids = make([]string, 0, len(fields))
		for id := range fields {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	}

	var o types.DomainOverall
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		f, ok := fields[id]
		if !ok || seen[id] || id == types.OverallField {
			continue
		}
		seen[id] = true
		o.AccuracyScore += f.AccuracyScore
		o.QualityScore += f.QualityScore
		o.Fields++
		if f.AutomatedAccuracy != nil {
			o.AutomatedAccuracyScore += *f.AutomatedAccuracy
			o.AutomatedFields++
		}
	}
	if o.Fields == 0 {
		return o
	}
	if o.AutomatedFields > 0 {
		o.AutomatedAccuracyScore /= float64(o.AutomatedFields)
	}
	o.AccuracyScore /= float64(o.Fields)
	o.QualityScore /= float64(o.Fields)
	wA, wQ := cfg.Blend()
	o.OverallScore = types.Clamp01(wA*o.AccuracyScore + wQ*o.QualityScore)
	return o
}

// Paper combines domain assessments into a paper assessment. Domains
// without scored fields do not count; the rest are weighted by their
// configured importance.
func Paper(domains map[types.Domain]types.DomainAssessment, cfg types.EngineConfig) types.PaperAssessment {
	pa := types.PaperAssessment{Domains: domains}
	ids := make([]types.Domain, 0, len(domains))
	for d := range domains {
		ids = append(ids, d)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var total float64
	for _, d := range ids {
		a := domains[d]
		if a.Overall.Fields == 0 {
			continue
		}
		w := cfg.DomainFor(d).Importance
		if w <= 0 {
			w = 1
		}
		pa.Overall.AccuracyScore += w * a.Overall.AccuracyScore
		pa.Overall.QualityScore += w * a.Overall.QualityScore
		pa.Overall.OverallScore += w * a.Overall.OverallScore
		pa.Overall.Domains++
		total += w
	}
	if total > 0 {
		pa.Overall.AccuracyScore /= total
		pa.Overall.QualityScore /= total
		pa.Overall.OverallScore /= total
	}
	return pa
}

// Persist writes the domain roll-up under overall/<domain>/overall.
func Persist(ctx context.Context, st store.Store, a types.DomainAssessment) error {
	p := store.Path{Metric: types.MetricOverall, Domain: string(a.Domain), Field: types.OverallField}
	if err := st.Set(ctx, p, a.Overall); err != nil {
		return fmt.Errorf("persisting %s overall: %w", a.Domain, err)
	}
	return nil
}

// finalScore is the part of a persisted accuracy or quality record needed
// to rebuild a FieldScore.
type finalScore struct {
	Rating    *int     `json:"rating"`
	Final     *float64 `json:"finalScore"`
	Automated *float64 `json:"automatedScore"`
}

// FromMetrics rebuilds domain assessments from a persisted metrics store.
// Field scores come from the overall level; fields present only at the
// accuracy or quality level are rebuilt from their final scores. The
// unrated accuracy is taken from the accuracy level when the overall entry
// lacks it. Malformed entries are skipped.
func FromMetrics(m types.Metrics, cfg types.EngineConfig) map[types.Domain]types.DomainAssessment {
	builders := make(map[types.Domain]*Builder)
	builder := func(domain string) *Builder {
		d := types.Domain(domain)
		if b, ok := builders[d]; ok {
			return b
		}
		b := NewBuilder(d, cfg.DomainFor(d))
		builders[d] = b
		return b
	}

	for domain, fields := range m[types.MetricOverall] {
		for field, raw := range fields {
			if field == types.OverallField {
				continue
			}
			var s types.FieldScore
			if err := json.Unmarshal(raw, &s); err != nil {
				continue
			}
			if s.AutomatedAccuracy == nil {
				s.AutomatedAccuracy = automatedAccuracy(m, domain, field)
			}
			builder(domain).AddCustom(field, s)
		}
	}

	for domain, fields := range m[types.MetricAccuracy] {
		for field, raw := range fields {
			if _, ok := m.Lookup(types.MetricOverall, domain, field); ok {
				continue
			}
			var acc, qual finalScore
			if err := json.Unmarshal(raw, &acc); err != nil || acc.Final == nil {
				continue
			}
			if qraw, ok := m.Lookup(types.MetricQuality, domain, field); ok {
				if err := json.Unmarshal(qraw, &qual); err != nil {
					qual = finalScore{}
				}
			}
			s := types.FieldScore{AccuracyScore: *acc.Final, AutomatedAccuracy: acc.Automated}
			if acc.Rating != nil {
				s.Rating = *acc.Rating
			}
			wA, wQ := cfg.DomainFor(types.Domain(domain)).Blend()
			if qual.Final != nil {
				s.QualityScore = *qual.Final
				s.OverallScore = wA*s.AccuracyScore + wQ*s.QualityScore
			} else {
				s.OverallScore = s.AccuracyScore
			}
			builder(domain).AddCustom(field, s)
		}
	}

	out := make(map[types.Domain]types.DomainAssessment, len(builders))
	for d, b := range builders {
		out[d] = b.Build()
	}
	return out
}

// automatedAccuracy reads the unrated score of an accuracy record.
func automatedAccuracy(m types.Metrics, domain, field string) *float64 {
	raw, ok := m.Lookup(types.MetricAccuracy, domain, field)
	if !ok {
		return nil
	}
	var acc finalScore
	if err := json.Unmarshal(raw, &acc); err != nil {
		return nil
	}
	return acc.Automated
}
