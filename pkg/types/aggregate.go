// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Evaluator identifies who produced an evaluation. ExpertiseWeight is an
// opaque multiplier derived outside the engine (typically 0.2–5.0).
type Evaluator struct {
	ID              string  `json:"id" yaml:"id"`
	Role            string  `json:"role" yaml:"role"`
	ExpertiseWeight float64 `json:"expertiseWeight" yaml:"expertise_weight"`
}

// Weight returns the expertise weight, or 1 when it is absent or invalid.
func (e Evaluator) Weight() float64 {
	w := e.ExpertiseWeight
	if w <= 0 || w != w {
		return 1
	}
	return w
}

// Evaluation is one evaluator's finished pass over one paper.
type Evaluation struct {
	Token     string                      `json:"token" yaml:"token"`
	Evaluator Evaluator                   `json:"evaluator" yaml:"evaluator"`
	Timestamp time.Time                   `json:"timestamp" yaml:"timestamp"`
	Domains   map[Domain]DomainAssessment `json:"domains" yaml:"domains"`
}

// AccuracyStats summarizes accuracy scores of one domain across the
// evaluators of a paper. WeightedMean is expertise-weighted and equals Mean
// when only one evaluator contributed or weights are absent.
type AccuracyStats struct {
	Mean         float64 `json:"mean" yaml:"mean"`
	WeightedMean float64 `json:"weighted_mean" yaml:"weighted_mean"`
	Count        int     `json:"count" yaml:"count"`
}

// ScoreStats is a plain mean with its sample count.
type ScoreStats struct {
	Mean  float64 `json:"mean" yaml:"mean"`
	Count int     `json:"count" yaml:"count"`
}

// DomainAggregate holds one paper's scores for one domain across evaluators.
// AccuracyScores are rating-blended; AutomatedAccuracy is the unrated
// similarity path.
type DomainAggregate struct {
	AccuracyScores    AccuracyStats `json:"accuracyScores" yaml:"accuracy_scores"`
	AutomatedAccuracy ScoreStats    `json:"automatedAccuracy" yaml:"automated_accuracy"`
	QualityScores  ScoreStats    `json:"qualityScores" yaml:"quality_scores"`
	UserRatings    ScoreStats    `json:"userRatings" yaml:"user_ratings"`

	// Scores is the mean domain overallScore.
	Scores ScoreStats `json:"scores" yaml:"scores"`
}

// AccuracyValue returns the automated accuracy mean. Records without an
// unrated score fall back to the blended accuracy mean, then to the overall
// score mean.
func (d DomainAggregate) AccuracyValue() (float64, bool) {
	if d.AutomatedAccuracy.Count > 0 {
		return d.AutomatedAccuracy.Mean, true
	}
	if d.AccuracyScores.Count > 0 {
		return d.AccuracyScores.Mean, true
	}
	if d.Scores.Count > 0 {
		return d.Scores.Mean, true
	}
	return 0, false
}

// QualityValue returns the quality mean. Non-positive means signal "not
// computed" and report false.
func (d DomainAggregate) QualityValue() (float64, bool) {
	if d.QualityScores.Count == 0 || d.QualityScores.Mean <= 0 {
		return 0, false
	}
	return d.QualityScores.Mean, true
}

// AggregatedPaper is an immutable snapshot of one paper's scores across all
// its evaluators.
type AggregatedPaper struct {
	Token         string                     `json:"token" yaml:"token"`
	Evaluators    int                        `json:"evaluators" yaml:"evaluators"`
	MeanExpertise float64                    `json:"meanExpertise" yaml:"mean_expertise"`
	Domains       map[Domain]DomainAggregate `json:"domains" yaml:"domains"`
	FirstSeen     time.Time                  `json:"firstSeen" yaml:"first_seen"`
	LastSeen      time.Time                  `json:"lastSeen" yaml:"last_seen"`
}

// CorrelationMatrix holds Pearson coefficients between named series. A nil
// value means fewer than two paired observations. The diagonal is always 1.
type CorrelationMatrix struct {
	Keys         []string                       `json:"keys" yaml:"keys"`
	Values       map[string]map[string]*float64 `json:"values" yaml:"values"`
	Observations map[string]map[string]int      `json:"observations" yaml:"observations"`
}

// At returns the coefficient for (a, b) and whether it is defined.
func (m CorrelationMatrix) At(a, b string) (float64, bool) {
	row, ok := m.Values[a]
	if !ok {
		return 0, false
	}
	v := row[b]
	if v == nil {
		return 0, false
	}
	return *v, true
}

// TimelinePoint is one calendar day of evaluations.
type TimelinePoint struct {
	Date          string  `json:"date" yaml:"date"`
	Count         int     `json:"count" yaml:"count"`
	AvgScore      float64 `json:"avgScore" yaml:"avg_score"`
	MovingAverage float64 `json:"movingAverage" yaml:"moving_average"`
}

// WeightingEffect classifies how much expertise weighting moved an average.
type WeightingEffect string

const (
	// EffectNone means weighting cannot change the result, such as
	// within-paper weighting when every paper has one evaluator.
	EffectNone WeightingEffect = "none"

	// EffectMinimal means the weighted and raw averages differ by less than
	// the reporting tolerance.
	EffectMinimal WeightingEffect = "minimal"

	EffectPresent WeightingEffect = "present"
)

// WeightingComparison reports one expertise weighting strategy against the
// unweighted average.
type WeightingComparison struct {
	Strategy             string          `json:"strategy" yaml:"strategy"`
	RawAverage           float64         `json:"rawAverage" yaml:"raw_average"`
	WeightedAverage      float64         `json:"weightedAverage" yaml:"weighted_average"`
	Difference           float64         `json:"difference" yaml:"difference"`
	Effect               WeightingEffect `json:"effect" yaml:"effect"`
	Note                 string          `json:"note,omitempty" yaml:"note,omitempty"`
	Papers               int             `json:"papers" yaml:"papers"`
	MultiEvaluatorPapers int             `json:"multiEvaluatorPapers" yaml:"multi_evaluator_papers"`
}

// TrendDirection is the sign of the change between the halves of a timeline.
type TrendDirection string

const (
	TrendImproving    TrendDirection = "improving"
	TrendDeclining    TrendDirection = "declining"
	TrendStable       TrendDirection = "stable"
	TrendInsufficient TrendDirection = "insufficient_data"
)

// Trend compares the mean score of the first and second half of a timeline.
// Magnitude is SecondHalf − FirstHalf.
type Trend struct {
	Direction  TrendDirection `json:"direction" yaml:"direction"`
	Magnitude  float64        `json:"magnitude" yaml:"magnitude"`
	FirstHalf  float64        `json:"firstHalf" yaml:"first_half"`
	SecondHalf float64        `json:"secondHalf" yaml:"second_half"`
}
