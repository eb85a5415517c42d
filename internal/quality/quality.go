// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quality scores an extracted value along three dimensions:
// completeness against the reference's shape, formatting consistency, and
// validity for the declared field type.
package quality

import (
	"fmt"
	"time"

	"github.com/pdiddy/eval-engine/pkg/types"
)

// Scorer computes QualityResults using per-field-type dimension settings.
type Scorer struct {
	cfg types.EngineConfig
	now func() time.Time
}

// New returns a Scorer. Field types without configured settings use
// types.DefaultDimensionWeights and accept any finite number.
func New(cfg types.EngineConfig) *Scorer {
	return &Scorer{cfg: cfg, now: time.Now}
}

// Score assesses pair.Extracted. A panic in any dimension yields the
// fallback result for the whole stage.
func (s *Scorer) Score(pair types.FieldPair) (res types.Result[types.QualityResult]) {
	ft := pair.Type()
	qc := s.cfg.QualityFor(ft)

	defer func() {
		if r := recover(); r != nil {
			res = types.FallbackQuality(qc.Weights, types.StageQuality, types.DefectMalformedInput, fmt.Sprint(r))
		}
	}()

	v := types.QualityResult{
		Completeness: completeness(pair.Reference, pair.Extracted, ft),
		Consistency:  consistency(pair.Extracted, ft),
		Validity:     validity(pair.Reference, pair.Extracted, ft, qc.Range, s.now()),
		Weights:      qc.Weights,
	}
	v.AutomatedOverallScore = types.Clamp01(
		v.Completeness.Score*qc.Weights.Completeness +
			v.Consistency.Score*qc.Weights.Consistency +
			v.Validity.Score*qc.Weights.Validity,
	)
	return types.Ok(v)
}

func dimension(score float64, issues []string) types.DimensionResult {
	if issues == nil {
		issues = []string{}
	}
	return types.DimensionResult{Score: types.Clamp01(score), Issues: issues}
}
