// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// FallbackScore is the neutral score substituted when a scoring stage cannot
// produce a real value.
const FallbackScore = 0.5

// DefectKind classifies why a stage fell back or an analysis was limited.
type DefectKind string

const (
	DefectMalformedInput   DefectKind = "malformed_input"
	DefectInsufficientData DefectKind = "insufficient_data"
	DefectPersistence      DefectKind = "persistence"
)

// Scoring stages that can report a defect.
const (
	StageSimilarity = "similarity"
	StageQuality    = "quality"
	StageCombine    = "combine"
	StagePersist    = "persist"
)

// ScoringDefect describes a recovered failure in one scoring stage.
type ScoringDefect struct {
	Stage   string     `json:"stage" yaml:"stage"`
	Kind    DefectKind `json:"kind" yaml:"kind"`
	Message string     `json:"message" yaml:"message"`
}

func (d *ScoringDefect) Error() string {
	return fmt.Sprintf("%s: %s: %s", d.Stage, d.Kind, d.Message)
}

// Result is the outcome of one scoring stage: a usable value and, when the
// stage fell back, the defect that caused it.
type Result[T any] struct {
	Value  T
	Defect *ScoringDefect
}

// OK reports whether the stage produced its value without falling back.
func (r Result[T]) OK() bool {
	return r.Defect == nil
}

// Ok wraps a successfully computed value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// FallbackSimilarity returns the similarity result used when text comparison
// fails: every component is FallbackScore.
func FallbackSimilarity(stage string, kind DefectKind, msg string) Result[SimilarityResult] {
	return Result[SimilarityResult]{
		Value: SimilarityResult{
			EditDistanceScore:      FallbackScore,
			TokenPrecision:         FallbackScore,
			TokenRecall:            FallbackScore,
			TokenF1:                FallbackScore,
			SpecialCharScore:       FallbackScore,
			WeightedAutomatedScore: FallbackScore,
		},
		Defect: &ScoringDefect{Stage: stage, Kind: kind, Message: msg},
	}
}

// FallbackQuality returns the quality result used when quality scoring fails:
// every dimension is FallbackScore with no issues.
func FallbackQuality(weights DimensionWeights, stage string, kind DefectKind, msg string) Result[QualityResult] {
	return Result[QualityResult]{
		Value: QualityResult{
			Completeness:          DimensionResult{Score: FallbackScore, Issues: []string{}},
			Consistency:           DimensionResult{Score: FallbackScore, Issues: []string{}},
			Validity:              DimensionResult{Score: FallbackScore, Issues: []string{}},
			Weights:               weights,
			AutomatedOverallScore: FallbackScore,
		},
		Defect: &ScoringDefect{Stage: stage, Kind: kind, Message: msg},
	}
}

// Clamp01 limits v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
