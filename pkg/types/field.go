// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the eval-engine scoring
// and aggregation pipeline.
//
//	FieldPair, SimilarityResult, QualityResult: single-field scoring inputs and outputs.
//	FieldScore, DomainAssessment: per-evaluator roll-up.
//	AggregatedPaper, CorrelationMatrix, TimelinePoint: cross-paper analysis.
//	Metrics, ArchivePayload: persistence and archival shapes.
package types

// Domain names one of the five extraction aspects an evaluator rates.
type Domain string

const (
	DomainMetadata        Domain = "metadata"
	DomainResearchField   Domain = "research_field"
	DomainResearchProblem Domain = "research_problem"
	DomainTemplate        Domain = "template"
	DomainContent         Domain = "content"
)

// Domains lists every evaluated domain in display order.
var Domains = []Domain{
	DomainMetadata,
	DomainResearchField,
	DomainResearchProblem,
	DomainTemplate,
	DomainContent,
}

// Valid reports whether d is one of the known domains.
func (d Domain) Valid() bool {
	for _, known := range Domains {
		if d == known {
			return true
		}
	}
	return false
}

// FieldType selects type-aware comparison and validity rules.
type FieldType string

const (
	FieldText       FieldType = "text"
	FieldNumber     FieldType = "number"
	FieldDate       FieldType = "date"
	FieldResource   FieldType = "resource"
	FieldList       FieldType = "list"
	FieldStructured FieldType = "structured"
)

// FieldPair holds the raw inputs to scoring for one field. Reference and
// Extracted are usually strings but may be numbers, lists, or maps for
// structured fields.
type FieldPair struct {
	Reference any       `json:"referenceValue" yaml:"reference"`
	Extracted any       `json:"extractedValue" yaml:"extracted"`
	FieldType FieldType `json:"fieldType" yaml:"type"`
}

// Type returns the pair's field type, defaulting to text.
func (p FieldPair) Type() FieldType {
	if p.FieldType == "" {
		return FieldText
	}
	return p.FieldType
}

// SimilarityResult is the automated text comparison of a FieldPair.
// Every component lies in [0,1].
type SimilarityResult struct {
	EditDistanceScore      float64 `json:"editDistanceScore" yaml:"edit_distance_score"`
	TokenPrecision         float64 `json:"tokenPrecision" yaml:"token_precision"`
	TokenRecall            float64 `json:"tokenRecall" yaml:"token_recall"`
	TokenF1                float64 `json:"tokenF1" yaml:"token_f1"`
	SpecialCharScore       float64 `json:"specialCharScore" yaml:"special_char_score"`
	WeightedAutomatedScore float64 `json:"weightedAutomatedScore" yaml:"weighted_automated_score"`
}

// DimensionResult is one quality dimension's score and the defects found.
type DimensionResult struct {
	Score  float64  `json:"score" yaml:"score"`
	Issues []string `json:"issues" yaml:"issues"`
}

// QualityResult is the automated quality assessment of an extracted value.
type QualityResult struct {
	Completeness          DimensionResult  `json:"completeness" yaml:"completeness"`
	Consistency           DimensionResult  `json:"consistency" yaml:"consistency"`
	Validity              DimensionResult  `json:"validity" yaml:"validity"`
	Weights               DimensionWeights `json:"weights" yaml:"weights"`
	AutomatedOverallScore float64          `json:"automatedOverallScore" yaml:"automated_overall_score"`
}

// Combination is the blend of an automated score with a human rating.
// Agreement is diagnostic and never part of the stored score.
type Combination struct {
	Automated float64  `json:"automatedScore" yaml:"automated_score"`
	Rating    int      `json:"rating" yaml:"rating"`
	Final     float64  `json:"finalScore" yaml:"final_score"`
	Agreement *float64 `json:"agreement,omitempty" yaml:"agreement,omitempty"`
	Expertise float64  `json:"expertiseMultiplier,omitempty" yaml:"expertise_multiplier,omitempty"`
}

// FieldScore is one evaluator's score for one field.
type FieldScore struct {
	Field         string  `json:"field" yaml:"field"`
	Rating        int     `json:"rating" yaml:"rating"`
	Comments      string  `json:"comments,omitempty" yaml:"comments,omitempty"`
	AccuracyScore float64 `json:"accuracyScore" yaml:"accuracy_score"`
	QualityScore  float64 `json:"qualityScore" yaml:"quality_score"`
	OverallScore  float64 `json:"overallScore" yaml:"overall_score"`

	// AutomatedAccuracy is the accuracy before the rating blend.
	AutomatedAccuracy *float64 `json:"automatedAccuracy,omitempty" yaml:"automated_accuracy,omitempty"`
}

// DomainOverall is the roll-up entry of a DomainAssessment.
type DomainOverall struct {
	AccuracyScore float64 `json:"accuracyScore" yaml:"accuracy_score"`
	QualityScore  float64 `json:"qualityScore" yaml:"quality_score"`
	OverallScore  float64 `json:"overallScore" yaml:"overall_score"`
	Fields        int     `json:"fields" yaml:"fields"`

	// AutomatedAccuracyScore is the mean unrated accuracy over the
	// AutomatedFields that carry one.
	AutomatedAccuracyScore float64 `json:"automatedAccuracyScore,omitempty" yaml:"automated_accuracy_score,omitempty"`
	AutomatedFields        int     `json:"automatedFields,omitempty" yaml:"automated_fields,omitempty"`
}

// DomainAssessment maps field ids to scores for one domain, plus the
// domain-level overall entry.
type DomainAssessment struct {
	Domain  Domain                `json:"domain" yaml:"domain"`
	Fields  map[string]FieldScore `json:"fields" yaml:"fields"`
	Overall DomainOverall         `json:"overall" yaml:"overall"`
}

// MeanRating returns the mean of the set (non-zero) ratings and the number
// of rated fields.
func (a DomainAssessment) MeanRating() (float64, int) {
	var sum float64
	var n int
	for _, f := range a.Fields {
		if f.Rating > 0 {
			sum += float64(f.Rating)
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

// PaperOverall is the importance-weighted roll-up of a paper's domains.
type PaperOverall struct {
	AccuracyScore float64 `json:"accuracyScore" yaml:"accuracy_score"`
	QualityScore  float64 `json:"qualityScore" yaml:"quality_score"`
	OverallScore  float64 `json:"overallScore" yaml:"overall_score"`
	Domains       int     `json:"domains" yaml:"domains"`
}

// PaperAssessment is one evaluator's complete assessment of one paper.
type PaperAssessment struct {
	Domains map[Domain]DomainAssessment `json:"domains" yaml:"domains"`
	Overall PaperOverall                `json:"overall" yaml:"overall"`
}
