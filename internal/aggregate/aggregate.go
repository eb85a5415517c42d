// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package aggregate computes cross-paper statistics over finished
// evaluations: per-domain descriptive statistics and buckets, correlation
// matrices, expertise weighting analyses, and a daily timeline.
//
// Aggregation is a pure batch computation. It never fails; missing or
// insufficient data is reported through Report.Warnings and null
// correlations.
package aggregate

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/pdiddy/eval-engine/internal/logging"
	"github.com/pdiddy/eval-engine/internal/stats"
	"github.com/pdiddy/eval-engine/internal/telemetry"
	"github.com/pdiddy/eval-engine/pkg/types"
)

const (
	// EffectTolerance is the difference below which weighting is reported
	// as having minimal effect.
	EffectTolerance = 1e-4

	// TrendTolerance is the half-split difference below which a timeline is
	// stable.
	TrendTolerance = 0.01

	// MovingAverageWindow is the number of timeline points smoothed.
	MovingAverageWindow = 3

	// StageAggregate labels warnings produced by aggregation.
	StageAggregate = "aggregate"
)

// Component correlation keys.
const (
	ComponentAccuracy = "accuracy"
	ComponentQuality  = "quality"
	ComponentOverall  = "overall"
	ComponentRating   = "rating"
)

// Weighting strategies.
const (
	WithinPaper = "within_paper"
	CrossPaper  = "cross_paper"
)

// DomainReport holds the statistics of one domain across papers.
type DomainReport struct {
	Accuracy             stats.Descriptive  `json:"accuracy" yaml:"accuracy"`
	Quality              stats.Descriptive  `json:"quality" yaml:"quality"`
	AccuracyDistribution stats.Distribution `json:"accuracyDistribution" yaml:"accuracy_distribution"`
	QualityDistribution  stats.Distribution `json:"qualityDistribution" yaml:"quality_distribution"`
}

// ExpertiseAnalysis holds the two independent weighting strategies.
type ExpertiseAnalysis struct {
	WithinPaper types.WeightingComparison `json:"withinPaper" yaml:"within_paper"`
	CrossPaper  types.WeightingComparison `json:"crossPaper" yaml:"cross_paper"`
}

// Report is the output of one aggregation run.
type Report struct {
	Papers      int `json:"papers" yaml:"papers"`
	Evaluations int `json:"evaluations" yaml:"evaluations"`
	Evaluators  int `json:"evaluators" yaml:"evaluators"`

	PaperAggregates map[string]types.AggregatedPaper `json:"paperAggregates" yaml:"paper_aggregates"`
	Domains         map[types.Domain]DomainReport    `json:"domains" yaml:"domains"`

	DomainCorrelation    types.CorrelationMatrix `json:"domainCorrelation" yaml:"domain_correlation"`
	ComponentCorrelation types.CorrelationMatrix `json:"componentCorrelation" yaml:"component_correlation"`

	Expertise ExpertiseAnalysis     `json:"expertise" yaml:"expertise"`
	Timeline  []types.TimelinePoint `json:"timeline" yaml:"timeline"`
	Trend     types.Trend           `json:"trend" yaml:"trend"`

	Warnings []types.ScoringDefect `json:"warnings" yaml:"warnings"`
}

// Service runs aggregations. The zero value is usable.
type Service struct {
	log     *zap.Logger
	metrics *telemetry.Metrics
}

// NewService returns a Service; nil log and metrics are allowed.
func NewService(log *zap.Logger, metrics *telemetry.Metrics) *Service {
	return &Service{log: log, metrics: metrics}
}

// Run aggregates evals. Calls with the same input return the same report.
func (s *Service) Run(evals []types.Evaluation) Report {
	log := logging.OrNop(s.log)
	s.metrics.Aggregation()

	groups := groupByPaper(evals)
	r := Report{
		PaperAggregates: make(map[string]types.AggregatedPaper, len(groups)),
		Warnings:        []types.ScoringDefect{},
	}

	evaluators := make(map[string]bool)
	for _, g := range groups {
		r.PaperAggregates[g.token] = aggregatePaper(g)
		r.Evaluations += len(g.evals)
		for _, ev := range g.evals {
			evaluators[ev.Evaluator.ID] = true
		}
	}
	r.Papers = len(groups)
	r.Evaluators = len(evaluators)
	if dropped := len(evals) - r.Evaluations; dropped > 0 {
		r.warn(types.DefectMalformedInput, "%d evaluations without a paper token were ignored", dropped)
	}

	papers := make([]types.AggregatedPaper, 0, len(groups))
	for _, g := range groups {
		papers = append(papers, r.PaperAggregates[g.token])
	}

	r.Domains = domainReports(papers)
	r.DomainCorrelation = domainCorrelation(papers)
	r.ComponentCorrelation = componentCorrelation(papers)
	r.sampleWarnings("domain", r.DomainCorrelation)
	r.sampleWarnings("component", r.ComponentCorrelation)

	r.Expertise = ExpertiseAnalysis{
		WithinPaper: withinPaper(groups),
		CrossPaper:  crossPaper(groups, papers),
	}
	if r.Expertise.WithinPaper.Effect == types.EffectNone {
		r.warn(types.DefectInsufficientData, "within-paper weighting: %s", r.Expertise.WithinPaper.Note)
	}

	var undated int
	r.Timeline, undated = timeline(evals)
	if undated > 0 {
		r.warn(types.DefectInsufficientData, "%d evaluations without a timestamp or score were left out of the timeline", undated)
	}
	r.Trend = trend(r.Timeline)

	log.Info("aggregated evaluations",
		zap.Int("papers", r.Papers),
		zap.Int("evaluations", r.Evaluations),
		zap.Int("warnings", len(r.Warnings)),
	)
	return r
}

func (r *Report) warn(kind types.DefectKind, format string, args ...any) {
	r.Warnings = append(r.Warnings, types.ScoringDefect{
		Stage:   StageAggregate,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
}

// sampleWarnings flags coefficients resting on exactly two observations:
// they are always ±1 or 0 and carry no information.
func (r *Report) sampleWarnings(name string, m types.CorrelationMatrix) {
	var undefined int
	for i, a := range m.Keys {
		for _, b := range m.Keys[i+1:] {
			switch n := m.Observations[a][b]; {
			case n < 2:
				undefined++
			case n == 2:
				r.warn(types.DefectInsufficientData,
					"%s correlation %s/%s rests on 2 observations and is uninformative", name, a, b)
			}
		}
	}
	if undefined > 0 {
		r.warn(types.DefectInsufficientData,
			"%d %s correlations are null (fewer than 2 paired observations)", undefined, name)
	}
}

func domainReports(papers []types.AggregatedPaper) map[types.Domain]DomainReport {
	out := make(map[types.Domain]DomainReport)
	for _, d := range types.Domains {
		var acc, qual []float64
		for _, p := range papers {
			agg, ok := p.Domains[d]
			if !ok {
				continue
			}
			if v, ok := agg.AccuracyValue(); ok {
				acc = append(acc, v)
			}
			if v, ok := agg.QualityValue(); ok {
				qual = append(qual, v)
			}
		}
		if len(acc) == 0 && len(qual) == 0 {
			continue
		}
		out[d] = DomainReport{
			Accuracy:             stats.Summarize(acc),
			Quality:              stats.Summarize(qual),
			AccuracyDistribution: stats.Distribute(acc),
			QualityDistribution:  stats.Distribute(qual),
		}
	}
	return out
}

func domainCorrelation(papers []types.AggregatedPaper) types.CorrelationMatrix {
	keys := make([]string, len(types.Domains))
	for i, d := range types.Domains {
		keys[i] = string(d)
	}
	rows := make([]map[string]float64, 0, len(papers))
	for _, p := range papers {
		row := make(map[string]float64)
		for d, agg := range p.Domains {
			if v, ok := agg.AccuracyValue(); ok {
				row[string(d)] = v
			}
		}
		rows = append(rows, row)
	}
	return stats.Correlate(keys, rows)
}

// componentCorrelation correlates the per-paper means of accuracy, quality,
// overall score, and rating across domains.
func componentCorrelation(papers []types.AggregatedPaper) types.CorrelationMatrix {
	keys := []string{ComponentAccuracy, ComponentQuality, ComponentOverall, ComponentRating}
	rows := make([]map[string]float64, 0, len(papers))
	for _, p := range papers {
		var acc, qual, overall, rating []float64
		for _, d := range sortedDomains(p.Domains) {
			agg := p.Domains[d]
			if v, ok := agg.AccuracyValue(); ok {
				acc = append(acc, v)
			}
			if v, ok := agg.QualityValue(); ok {
				qual = append(qual, v)
			}
			if agg.Scores.Count > 0 {
				overall = append(overall, agg.Scores.Mean)
			}
			if agg.UserRatings.Count > 0 {
				rating = append(rating, agg.UserRatings.Mean)
			}
		}
		row := make(map[string]float64)
		for k, xs := range map[string][]float64{
			ComponentAccuracy: acc,
			ComponentQuality:  qual,
			ComponentOverall:  overall,
			ComponentRating:   rating,
		} {
			if len(xs) > 0 {
				row[k] = stats.Mean(xs)
			}
		}
		rows = append(rows, row)
	}
	return stats.Correlate(keys, rows)
}

// withinPaper weights the evaluators of each paper by expertise, then
// averages the per-paper results.
func withinPaper(groups []paperGroup) types.WeightingComparison {
	c := types.WeightingComparison{Strategy: WithinPaper}
	var raw, weighted []float64
	for _, g := range groups {
		var xs, ws []float64
		for _, ev := range g.evals {
			if v, ok := evaluationScore(ev); ok {
				xs = append(xs, v)
				ws = append(ws, ev.Evaluator.Weight())
			}
		}
		if len(xs) == 0 {
			continue
		}
		c.Papers++
		if len(xs) > 1 {
			c.MultiEvaluatorPapers++
		}
		raw = append(raw, stats.Mean(xs))
		weighted = append(weighted, stats.WeightedMean(xs, ws))
	}
	c.RawAverage = stats.Mean(raw)
	c.WeightedAverage = stats.Mean(weighted)

	switch {
	case c.Papers == 0:
		c.Effect = types.EffectNone
		c.Note = "no scored papers"
	case c.MultiEvaluatorPapers == 0:
		c.Effect = types.EffectNone
		c.WeightedAverage = c.RawAverage
		c.Note = "every paper has exactly one evaluator, so weighting cannot change any paper's score"
	default:
		c.Difference = c.WeightedAverage - c.RawAverage
		c.Effect = effect(c.Difference)
		c.Note = fmt.Sprintf("%d of %d papers have more than one evaluator", c.MultiEvaluatorPapers, c.Papers)
	}
	return c
}

// crossPaper weights each paper's mean score by its evaluators' mean
// expertise.
func crossPaper(groups []paperGroup, papers []types.AggregatedPaper) types.WeightingComparison {
	c := types.WeightingComparison{Strategy: CrossPaper}
	var xs, ws []float64
	for i, g := range groups {
		var scores []float64
		for _, ev := range g.evals {
			if v, ok := evaluationScore(ev); ok {
				scores = append(scores, v)
			}
		}
		if len(scores) == 0 {
			continue
		}
		c.Papers++
		if len(g.evals) > 1 {
			c.MultiEvaluatorPapers++
		}
		xs = append(xs, stats.Mean(scores))
		ws = append(ws, papers[i].MeanExpertise)
	}
	if c.Papers == 0 {
		c.Effect = types.EffectNone
		c.Note = "no scored papers"
		return c
	}
	c.RawAverage = stats.Mean(xs)
	c.WeightedAverage = stats.WeightedMean(xs, ws)
	c.Difference = c.WeightedAverage - c.RawAverage
	c.Effect = effect(c.Difference)
	if uniform(ws) {
		c.Note = "expertise weights are uniform across papers"
	}
	return c
}

func effect(diff float64) types.WeightingEffect {
	if math.Abs(diff) < EffectTolerance {
		return types.EffectMinimal
	}
	return types.EffectPresent
}

func uniform(ws []float64) bool {
	for _, w := range ws[1:] {
		if math.Abs(w-ws[0]) > EffectTolerance {
			return false
		}
	}
	return true
}

// timeline buckets evaluations by UTC calendar day. It returns the number
// of evaluations skipped for lacking a timestamp or a score.
func timeline(evals []types.Evaluation) ([]types.TimelinePoint, int) {
	byDay := make(map[string][]float64)
	var skipped int
	for _, ev := range evals {
		v, ok := evaluationScore(ev)
		if ev.Timestamp.IsZero() || !ok {
			skipped++
			continue
		}
		day := ev.Timestamp.UTC().Format("2006-01-02")
		byDay[day] = append(byDay[day], v)
	}

	days := make([]string, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Strings(days)

	points := make([]types.TimelinePoint, len(days))
	avgs := make([]float64, len(days))
	for i, d := range days {
		avgs[i] = stats.Mean(byDay[d])
		points[i] = types.TimelinePoint{Date: d, Count: len(byDay[d]), AvgScore: avgs[i]}
	}
	for i, ma := range stats.MovingAverage(avgs, MovingAverageWindow) {
		points[i].MovingAverage = ma
	}
	return points, skipped
}

// trend compares the first and second half of the timeline. With an odd
// number of points the middle one belongs to the second half.
func trend(points []types.TimelinePoint) types.Trend {
	if len(points) < 2 {
		return types.Trend{Direction: types.TrendInsufficient}
	}
	half := len(points) / 2
	mean := func(ps []types.TimelinePoint) float64 {
		xs := make([]float64, len(ps))
		for i, p := range ps {
			xs[i] = p.AvgScore
		}
		return stats.Mean(xs)
	}
	t := types.Trend{FirstHalf: mean(points[:half]), SecondHalf: mean(points[half:])}
	t.Magnitude = t.SecondHalf - t.FirstHalf
	switch {
	case t.Magnitude > TrendTolerance:
		t.Direction = types.TrendImproving
	case t.Magnitude < -TrendTolerance:
		t.Direction = types.TrendDeclining
	default:
		t.Direction = types.TrendStable
	}
	return t
}
