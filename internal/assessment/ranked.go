// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assessment

import (
	"strings"

	"github.com/pdiddy/eval-engine/internal/combine"
	"github.com/pdiddy/eval-engine/pkg/types"
)

// RankedChoice scores a value chosen from a ranked candidate list, such as
// the research field picked from a classifier's predictions. There is no
// reference text to compare, so the similarity and quality scorers do not
// apply.
type RankedChoice struct {
	// Candidates in rank order, best first.
	Candidates []string `json:"candidates" yaml:"candidates"`

	// Reference is the ground-truth value.
	Reference string `json:"reference" yaml:"reference"`

	// Selected is the evaluator's pick.
	Selected string `json:"selected" yaml:"selected"`

	Rating   int    `json:"rating" yaml:"rating"`
	Comments string `json:"comments,omitempty" yaml:"comments,omitempty"`
}

// Rank returns the zero-based position of v among the candidates.
func (rc RankedChoice) Rank(v string) (int, bool) {
	v = normalizeChoice(v)
	if v == "" {
		return 0, false
	}
	for i, c := range rc.Candidates {
		if normalizeChoice(c) == v {
			return i, true
		}
	}
	return 0, false
}

// Score returns the field score. Accuracy is 1/(1+rank) of the reference
// among the candidates and 0 when it is absent. Quality is 1 when the
// selection is one of the candidates and 0.5 otherwise. Both are blended
// with the rating like any other field.
func (rc RankedChoice) Score(field string, cfg types.DomainConfig) types.FieldScore {
	accuracy := 0.0
	if rank, ok := rc.Rank(rc.Reference); ok {
		accuracy = 1 / float64(1+rank)
	}
	quality := types.FallbackScore
	if _, ok := rc.Rank(rc.Selected); ok {
		quality = 1
	}

	acc := combine.Combine(accuracy, rc.Rating, 0)
	qual := combine.Combine(quality, rc.Rating, 0)
	wA, wQ := cfg.Blend()
	return types.FieldScore{
		Field:             field,
		Rating:            acc.Rating,
		Comments:          rc.Comments,
		AccuracyScore:     acc.Final,
		QualityScore:      qual.Final,
		OverallScore:      types.Clamp01(wA*acc.Final + wQ*qual.Final),
		AutomatedAccuracy: &acc.Automated,
	}
}

func normalizeChoice(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
