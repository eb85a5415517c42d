// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fieldeval

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/eval-engine/internal/quality"
	"github.com/pdiddy/eval-engine/internal/similarity"
	"github.com/pdiddy/eval-engine/internal/store"
	"github.com/pdiddy/eval-engine/internal/telemetry"
	"github.com/pdiddy/eval-engine/pkg/types"
)

// failingStore rejects every write.
type failingStore struct {
	*store.Memory
}

func (failingStore) Set(context.Context, store.Path, any) error {
	return errors.New("disk full")
}

func titleInput(rating int) FieldInput {
	return FieldInput{
		Domain: types.DomainMetadata,
		Field:  "title",
		Pair: types.FieldPair{
			Reference: "Graph Neural Networks",
			Extracted: "Graph Neural Network",
			FieldType: types.FieldText,
		},
		Rating: rating,
	}
}

func TestEvaluateScoresAndPersists(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	p := New(types.EngineConfig{}, st, nil, nil)

	ev, err := p.Evaluate(ctx, titleInput(4))
	require.NoError(t, err)
	assert.Empty(t, ev.Defects)

	auto := ev.Similarity.WeightedAutomatedScore
	assert.InDelta(t, auto*0.8, ev.Score.AccuracyScore, 1e-9)
	assert.InDelta(t, ev.Quality.AutomatedOverallScore*0.8, ev.Score.QualityScore, 1e-9)
	assert.InDelta(t, 0.5*ev.Score.AccuracyScore+0.5*ev.Score.QualityScore, ev.Score.OverallScore, 1e-9)
	assert.Equal(t, 4, ev.Score.Rating)

	raw, ok, err := st.Get(ctx, store.Path{Metric: types.MetricAccuracy, Domain: "metadata", Field: "title"})
	require.NoError(t, err)
	require.True(t, ok)
	var acc map[string]any
	require.NoError(t, json.Unmarshal(raw, &acc))
	assert.Equal(t, "Graph Neural Network", acc["extractedValue"])
	assert.Contains(t, acc, "tokenF1")
	assert.Contains(t, acc, "finalScore")
	assert.Contains(t, acc, "agreement")

	raw, ok, err = st.Get(ctx, store.Path{Metric: types.MetricQuality, Domain: "metadata", Field: "title"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"completeness"`)

	raw, ok, err = st.Get(ctx, store.Path{Metric: types.MetricOverall, Domain: "metadata", Field: "title"})
	require.NoError(t, err)
	require.True(t, ok)
	var score types.FieldScore
	require.NoError(t, json.Unmarshal(raw, &score))
	assert.Equal(t, ev.Score, score)
}

func TestEvaluateUnratedUsesAutomated(t *testing.T) {
	p := New(types.EngineConfig{}, nil, nil, nil)
	ev, err := p.Evaluate(context.Background(), titleInput(0))
	require.NoError(t, err)
	assert.Equal(t, ev.Similarity.WeightedAutomatedScore, ev.Score.AccuracyScore)
	assert.Equal(t, ev.Quality.AutomatedOverallScore, ev.Score.QualityScore)
	assert.Nil(t, ev.Accuracy.Agreement)
}

func TestEvaluateDomainBlend(t *testing.T) {
	cfg := types.EngineConfig{Domains: map[types.Domain]types.DomainConfig{
		types.DomainMetadata: {AccuracyWeight: 0.8, QualityWeight: 0.2, Importance: 1},
	}}
	p := New(cfg, nil, nil, nil)
	ev, err := p.Evaluate(context.Background(), titleInput(5))
	require.NoError(t, err)
	assert.InDelta(t, 0.8*ev.Score.AccuracyScore+0.2*ev.Score.QualityScore, ev.Score.OverallScore, 1e-9)
}

func TestEvaluateStructured(t *testing.T) {
	p := New(types.EngineConfig{}, nil, nil, nil)
	in := FieldInput{
		Domain: types.DomainTemplate,
		Field:  "properties",
		Pair: types.FieldPair{
			Reference: map[string]any{"name": "GNN", "year": 2020},
			Extracted: map[string]any{"name": "GNN", "year": 2020},
			FieldType: types.FieldStructured,
		},
	}
	ev, err := p.Evaluate(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, ev.Defects)
	assert.InDelta(t, 1.0, ev.Similarity.WeightedAutomatedScore, 1e-9)
	assert.InDelta(t, 1.0, ev.Score.AccuracyScore, 1e-9)
}

func TestEvaluateSimilarityFallbackKeepsQuality(t *testing.T) {
	metrics := telemetry.New()
	p := New(types.EngineConfig{}, nil, nil, metrics)

	in := FieldInput{
		Domain: types.DomainTemplate,
		Field:  "properties",
		Pair: types.FieldPair{
			Reference: map[string]any{"dataset": "Cora", "metric": "accuracy"},
			Extracted: map[string]any{"dataset": "Cora", "loader": func() {}},
			FieldType: types.FieldStructured,
		},
		Rating: 5,
	}
	ev, err := p.Evaluate(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, ev.Defects, 1)
	assert.Equal(t, types.StageSimilarity, ev.Defects[0].Stage)
	assert.Equal(t, types.DefectMalformedInput, ev.Defects[0].Kind)
	assert.Equal(t, types.FallbackScore, ev.Similarity.WeightedAutomatedScore)

	assert.InDelta(t, 0.5, ev.Quality.Completeness.Score, 1e-9, "quality still scored")
	assert.Equal(t, []string{"missing required sub-field: metric"}, ev.Quality.Completeness.Issues)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ScoringFallbacks.WithLabelValues(types.StageSimilarity)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FieldsScored.WithLabelValues("template")))
}

// panickingSimilarity and panickingQuality fail every call.
type panickingSimilarity struct{}

func (panickingSimilarity) Score(types.FieldPair) types.Result[types.SimilarityResult] {
	panic("similarity exploded")
}

type panickingQuality struct{}

func (panickingQuality) Score(types.FieldPair) types.Result[types.QualityResult] {
	panic("quality exploded")
}

func TestEvaluateStagesFailIndependently(t *testing.T) {
	cfg := types.EngineConfig{}
	tests := []struct {
		name       string
		sim        SimilarityScorer
		qual       QualityScorer
		wantStage  string
		checkOther func(t *testing.T, ev FieldEvaluation)
	}{
		{
			name:      "quality panics",
			sim:       similarity.New(cfg),
			qual:      panickingQuality{},
			wantStage: types.StageQuality,
			checkOther: func(t *testing.T, ev FieldEvaluation) {
				want := similarity.New(cfg).Score(titleInput(0).Pair).Value
				assert.Equal(t, want, ev.Similarity)
				assert.InDelta(t, want.WeightedAutomatedScore*0.8, ev.Score.AccuracyScore, 1e-9)
				assert.Equal(t, types.FallbackScore, ev.Quality.AutomatedOverallScore)
			},
		},
		{
			name:      "similarity panics",
			sim:       panickingSimilarity{},
			qual:      quality.New(cfg),
			wantStage: types.StageSimilarity,
			checkOther: func(t *testing.T, ev FieldEvaluation) {
				assert.Equal(t, types.FallbackScore, ev.Similarity.WeightedAutomatedScore)
				assert.InDelta(t, 1.0, ev.Quality.Completeness.Score, 1e-9)
				assert.Greater(t, ev.Quality.AutomatedOverallScore, types.FallbackScore)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemory()
			p := NewWithScorers(cfg, tt.sim, tt.qual, st, nil, nil)
			ev, err := p.Evaluate(context.Background(), titleInput(4))
			require.NoError(t, err)

			require.Len(t, ev.Defects, 1)
			assert.Equal(t, tt.wantStage, ev.Defects[0].Stage)
			assert.Contains(t, ev.Defects[0].Message, "exploded")
			tt.checkOther(t, ev)

			_, ok, err := st.Get(context.Background(), store.Path{Metric: types.MetricOverall, Domain: "metadata", Field: "title"})
			require.NoError(t, err)
			assert.True(t, ok, "the field score is persisted")
		})
	}
}

func TestEvaluateRatingOutOfRange(t *testing.T) {
	p := New(types.EngineConfig{}, nil, nil, nil)
	ev, err := p.Evaluate(context.Background(), titleInput(9))
	require.NoError(t, err)
	assert.Equal(t, 5, ev.Score.Rating)
	require.Len(t, ev.Defects, 1)
	assert.Equal(t, types.StageCombine, ev.Defects[0].Stage)
}

func TestEvaluatePersistenceFailure(t *testing.T) {
	p := New(types.EngineConfig{}, failingStore{store.NewMemory()}, nil, nil)
	ev, err := p.Evaluate(context.Background(), titleInput(3))
	require.Error(t, err)
	assert.ErrorContains(t, err, "disk full")

	assert.Greater(t, ev.Score.OverallScore, 0.0, "scores are returned despite the failure")
	require.NotEmpty(t, ev.Defects)
	last := ev.Defects[len(ev.Defects)-1]
	assert.Equal(t, types.DefectPersistence, last.Kind)
}

func TestRerateKeepsAutomatedScores(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	p := New(types.EngineConfig{}, st, nil, nil)

	ev, err := p.Evaluate(ctx, titleInput(0))
	require.NoError(t, err)

	rerated, err := p.Rerate(ctx, ev, 1, "wrong plural")
	require.NoError(t, err)
	assert.Equal(t, ev.Similarity, rerated.Similarity)
	assert.Equal(t, ev.Quality, rerated.Quality)
	assert.InDelta(t, ev.Similarity.WeightedAutomatedScore*0.2, rerated.Score.AccuracyScore, 1e-9)
	assert.Equal(t, "wrong plural", rerated.Score.Comments)

	raw, ok, err := st.Get(ctx, store.Path{Metric: types.MetricOverall, Domain: "metadata", Field: "title"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(raw), "wrong plural")
}

func TestScoresStayInUnitInterval(t *testing.T) {
	p := New(types.EngineConfig{}, nil, nil, nil)
	pairs := []types.FieldPair{
		{Reference: "", Extracted: "", FieldType: types.FieldText},
		{Reference: "2021-03-04", Extracted: "March 4, 2021", FieldType: types.FieldDate},
		{Reference: 42, Extracted: "42 pages", FieldType: types.FieldNumber},
		{Reference: "10.1000/xyz", Extracted: "https://doi.org/10.1000/XYZ", FieldType: types.FieldResource},
		{Reference: []any{"a", "b"}, Extracted: "a; b; c", FieldType: types.FieldList},
		{Reference: nil, Extracted: func() {}, FieldType: types.FieldText},
	}
	for _, pair := range pairs {
		for rating := 0; rating <= 5; rating++ {
			ev, err := p.Evaluate(context.Background(), FieldInput{Domain: types.DomainContent, Field: "f", Pair: pair, Rating: rating})
			require.NoError(t, err)
			for _, s := range []float64{ev.Score.AccuracyScore, ev.Score.QualityScore, ev.Score.OverallScore} {
				assert.GreaterOrEqual(t, s, 0.0)
				assert.LessOrEqual(t, s, 1.0)
			}
		}
	}
}
