// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fieldeval scores one field of one paper: text similarity and
// quality are computed independently, each blended with the evaluator's
// rating, then combined into the field's overall score. Every intermediate
// result is persisted alongside the score.
package fieldeval

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/eval-engine/internal/combine"
	"github.com/pdiddy/eval-engine/internal/logging"
	"github.com/pdiddy/eval-engine/internal/quality"
	"github.com/pdiddy/eval-engine/internal/similarity"
	"github.com/pdiddy/eval-engine/internal/store"
	"github.com/pdiddy/eval-engine/internal/telemetry"
	"github.com/pdiddy/eval-engine/pkg/types"
)

// FieldInput is one evaluator action on one field.
type FieldInput struct {
	Domain    types.Domain    `json:"domain" yaml:"domain"`
	Field     string          `json:"field" yaml:"field"`
	Pair      types.FieldPair `json:"pair" yaml:"pair"`
	Rating    int             `json:"rating" yaml:"rating"`
	Comments  string          `json:"comments,omitempty" yaml:"comments,omitempty"`
	Expertise float64         `json:"expertise,omitempty" yaml:"expertise,omitempty"`
}

// FieldEvaluation is the full scoring detail for one field.
type FieldEvaluation struct {
	Domain     types.Domain           `json:"domain"`
	Field      string                 `json:"field"`
	Pair       types.FieldPair        `json:"pair"`
	Similarity types.SimilarityResult `json:"similarity"`
	Quality    types.QualityResult    `json:"quality"`
	Accuracy   types.Combination      `json:"accuracy"`
	QualityMix types.Combination      `json:"qualityCombination"`
	Score      types.FieldScore       `json:"score"`
	Defects    []types.ScoringDefect  `json:"defects,omitempty"`
}

// accuracyRecord is persisted under accuracy/<domain>/<field>.
type accuracyRecord struct {
	types.FieldPair
	types.SimilarityResult
	types.Combination
	Defect *types.ScoringDefect `json:"defect,omitempty"`
}

// qualityRecord is persisted under quality/<domain>/<field>.
type qualityRecord struct {
	types.QualityResult
	types.Combination
	Defect *types.ScoringDefect `json:"defect,omitempty"`
}

// SimilarityScorer compares an extracted value with its reference.
type SimilarityScorer interface {
	Score(pair types.FieldPair) types.Result[types.SimilarityResult]
}

// QualityScorer assesses an extracted value along the quality dimensions.
type QualityScorer interface {
	Score(pair types.FieldPair) types.Result[types.QualityResult]
}

// Processor orchestrates similarity, quality, and combination for single
// fields.
type Processor struct {
	cfg        types.EngineConfig
	similarity SimilarityScorer
	quality    QualityScorer
	store      store.Store
	log        *zap.Logger
	metrics    *telemetry.Metrics
}

// New returns a Processor using the similarity and quality scorers built
// from cfg. A nil store disables persistence; nil log and metrics are
// allowed.
func New(cfg types.EngineConfig, st store.Store, log *zap.Logger, metrics *telemetry.Metrics) *Processor {
	return NewWithScorers(cfg, similarity.New(cfg), quality.New(cfg), st, log, metrics)
}

// NewWithScorers returns a Processor that uses the given scorers.
func NewWithScorers(cfg types.EngineConfig, sim SimilarityScorer, qual QualityScorer, st store.Store, log *zap.Logger, metrics *telemetry.Metrics) *Processor {
	return &Processor{
		cfg:        cfg,
		similarity: sim,
		quality:    qual,
		store:      st,
		log:        logging.OrNop(log),
		metrics:    metrics,
	}
}

// Evaluate scores in. Scores are always returned; the error reports only a
// persistence failure.
func (p *Processor) Evaluate(ctx context.Context, in FieldInput) (FieldEvaluation, error) {
	ev := FieldEvaluation{Domain: in.Domain, Field: in.Field, Pair: in.Pair}

	sim := p.scoreSimilarity(in.Pair)
	ev.Similarity = sim.Value
	p.note(&ev, sim.Defect)

	qual := p.scoreQuality(in.Pair)
	ev.Quality = qual.Value
	p.note(&ev, qual.Defect)

	p.combine(&ev, in.Rating, in.Comments, in.Expertise)
	p.metrics.FieldScored(string(in.Domain))

	return ev, p.persist(ctx, &ev, sim.Defect, qual.Defect)
}

// Rerate applies a new rating and comment to an evaluated field without
// recomputing the automated scores, then persists the result.
func (p *Processor) Rerate(ctx context.Context, ev FieldEvaluation, rating int, comments string) (FieldEvaluation, error) {
	kept := ev.Defects[:0:0]
	for _, d := range ev.Defects {
		if d.Stage != types.StageCombine && d.Stage != types.StagePersist {
			kept = append(kept, d)
		}
	}
	ev.Defects = kept
	p.combine(&ev, rating, comments, ev.Accuracy.Expertise)
	return ev, p.persist(ctx, &ev, ev.defect(types.StageSimilarity), ev.defect(types.StageQuality))
}

// scoreSimilarity and scoreQuality turn a panicking scorer into that
// stage's fallback so the other stage still runs.
func (p *Processor) scoreSimilarity(pair types.FieldPair) (res types.Result[types.SimilarityResult]) {
	defer func() {
		if r := recover(); r != nil {
			res = types.FallbackSimilarity(types.StageSimilarity, types.DefectMalformedInput, fmt.Sprint(r))
		}
	}()
	return p.similarity.Score(pair)
}

func (p *Processor) scoreQuality(pair types.FieldPair) (res types.Result[types.QualityResult]) {
	defer func() {
		if r := recover(); r != nil {
			weights := p.cfg.QualityFor(pair.Type()).Weights
			res = types.FallbackQuality(weights, types.StageQuality, types.DefectMalformedInput, fmt.Sprint(r))
		}
	}()
	return p.quality.Score(pair)
}

func (p *Processor) combine(ev *FieldEvaluation, rating int, comments string, expertise float64) {
	if rating != combine.ClampRating(rating) {
		p.note(ev, &types.ScoringDefect{
			Stage:   types.StageCombine,
			Kind:    types.DefectMalformedInput,
			Message: fmt.Sprintf("rating %d outside 0-%d, clamped", rating, combine.MaxRating),
		})
	}

	ev.Accuracy = combine.Combine(ev.Similarity.WeightedAutomatedScore, rating, expertise)
	ev.QualityMix = combine.Combine(ev.Quality.AutomatedOverallScore, rating, expertise)

	wA, wQ := p.cfg.DomainFor(ev.Domain).Blend()
	automated := ev.Accuracy.Automated
	ev.Score = types.FieldScore{
		Field:             ev.Field,
		Rating:            ev.Accuracy.Rating,
		Comments:          comments,
		AccuracyScore:     ev.Accuracy.Final,
		QualityScore:      ev.QualityMix.Final,
		OverallScore:      types.Clamp01(wA*ev.Accuracy.Final + wQ*ev.QualityMix.Final),
		AutomatedAccuracy: &automated,
	}
}

func (p *Processor) note(ev *FieldEvaluation, d *types.ScoringDefect) {
	if d == nil {
		return
	}
	ev.Defects = append(ev.Defects, *d)
	p.metrics.Fallback(d.Stage)
	p.log.Warn("scoring stage fell back",
		zap.String("domain", string(ev.Domain)),
		zap.String("field", ev.Field),
		zap.String("stage", d.Stage),
		zap.String("kind", string(d.Kind)),
		zap.String("message", d.Message),
	)
}

func (p *Processor) persist(ctx context.Context, ev *FieldEvaluation, simDefect, qualDefect *types.ScoringDefect) error {
	if p.store == nil {
		return nil
	}
	domain := string(ev.Domain)
	writes := []struct {
		metric types.MetricType
		value  any
	}{
		{types.MetricAccuracy, accuracyRecord{ev.Pair, ev.Similarity, ev.Accuracy, simDefect}},
		{types.MetricQuality, qualityRecord{ev.Quality, ev.QualityMix, qualDefect}},
		{types.MetricOverall, ev.Score},
	}

	var errs []error
	for _, w := range writes {
		path := store.Path{Metric: w.metric, Domain: domain, Field: ev.Field}
		if err := p.store.Set(ctx, path, w.value); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		ev.Defects = append(ev.Defects, types.ScoringDefect{
			Stage:   types.StagePersist,
			Kind:    types.DefectPersistence,
			Message: err.Error(),
		})
		p.log.Error("persisting field evaluation",
			zap.String("domain", domain), zap.String("field", ev.Field), zap.Error(err))
		return fmt.Errorf("persisting %s/%s: %w", domain, ev.Field, err)
	}
	p.log.Debug("persisted field evaluation", zap.String("domain", domain), zap.String("field", ev.Field))
	return nil
}

func (ev FieldEvaluation) defect(stage string) *types.ScoringDefect {
	for i := range ev.Defects {
		if ev.Defects[i].Stage == stage {
			d := ev.Defects[i]
			return &d
		}
	}
	return nil
}
