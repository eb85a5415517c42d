// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package assessment

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/eval-engine/internal/fieldeval"
	"github.com/pdiddy/eval-engine/internal/store"
	"github.com/pdiddy/eval-engine/pkg/types"
)

func score(field string, acc, qual float64) types.FieldScore {
	return types.FieldScore{Field: field, AccuracyScore: acc, QualityScore: qual, OverallScore: (acc + qual) / 2}
}

func TestBuildOverall(t *testing.T) {
	b := NewBuilder(types.DomainTemplate, types.DomainConfig{AccuracyWeight: 0.6, QualityWeight: 0.4})
	b.AddCustom("name", score("name", 0.9, 0.7))
	b.AddCustom("properties", score("properties", 0.5, 0.9))
	b.AddCustom(types.OverallField, score("", 0, 0))

	a := b.Build()
	assert.Equal(t, types.DomainTemplate, a.Domain)
	assert.Len(t, a.Fields, 2)
	assert.Equal(t, 2, a.Overall.Fields)
	assert.InDelta(t, 0.7, a.Overall.AccuracyScore, 1e-9)
	assert.InDelta(t, 0.8, a.Overall.QualityScore, 1e-9)
	assert.InDelta(t, 0.6*0.7+0.4*0.8, a.Overall.OverallScore, 1e-9)
}

func TestBuildConfiguredFields(t *testing.T) {
	b := NewBuilder(types.DomainMetadata, types.DomainConfig{Fields: []string{"title", "doi", "title"}})
	b.AddCustom("title", score("title", 1, 1))
	b.AddCustom("venue", score("venue", 0, 0))

	o := b.Build().Overall
	assert.Equal(t, 1, o.Fields, "only configured fields that were scored count")
	assert.InDelta(t, 1.0, o.OverallScore, 1e-9)
}

func TestBuildEmpty(t *testing.T) {
	a := NewBuilder(types.DomainContent, types.DomainConfig{}).Build()
	assert.Equal(t, types.DomainOverall{}, a.Overall)
	assert.NotNil(t, a.Fields)
}

func TestAddClampsAndReplaces(t *testing.T) {
	b := NewBuilder(types.DomainContent, types.DomainConfig{})
	b.AddCustom("x", types.FieldScore{AccuracyScore: 3, QualityScore: -1, OverallScore: 2})
	b.Add(fieldeval.FieldEvaluation{Field: "x", Score: score("x", 0.4, 0.4)})

	f := b.Build().Fields["x"]
	assert.InDelta(t, 0.4, f.AccuracyScore, 1e-9)

	b.AddCustom("y", types.FieldScore{AccuracyScore: 3, QualityScore: -1, OverallScore: 2})
	y := b.Build().Fields["y"]
	assert.Equal(t, 1.0, y.AccuracyScore)
	assert.Equal(t, 0.0, y.QualityScore)
	assert.Equal(t, 1.0, y.OverallScore)
}

func TestRankedChoice(t *testing.T) {
	candidates := []string{"Machine Learning", "Computer Vision", "Robotics"}
	tests := []struct {
		name     string
		choice   RankedChoice
		accuracy float64
		quality  float64
	}{
		{"reference ranked first", RankedChoice{Candidates: candidates, Reference: "machine learning", Selected: "Machine Learning"}, 1, 1},
		{"reference ranked second", RankedChoice{Candidates: candidates, Reference: "Computer  Vision", Selected: "Computer Vision"}, 0.5, 1},
		{"reference absent", RankedChoice{Candidates: candidates, Reference: "Databases", Selected: "Robotics"}, 0, 1},
		{"selection outside candidates", RankedChoice{Candidates: candidates, Reference: "Robotics", Selected: "Databases"}, 1.0 / 3, 0.5},
		{"rating applies", RankedChoice{Candidates: candidates, Reference: "Machine Learning", Selected: "Machine Learning", Rating: 4}, 0.8, 0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.choice.Score("primary_field", types.DomainConfig{})
			assert.Equal(t, "primary_field", s.Field)
			assert.InDelta(t, tt.accuracy, s.AccuracyScore, 1e-9)
			assert.InDelta(t, tt.quality, s.QualityScore, 1e-9)
			assert.InDelta(t, 0.5*tt.accuracy+0.5*tt.quality, s.OverallScore, 1e-9)
		})
	}
}

func TestPaperWeightsByImportance(t *testing.T) {
	cfg := types.EngineConfig{Domains: map[types.Domain]types.DomainConfig{
		types.DomainMetadata: {Importance: 3},
		types.DomainContent:  {Importance: 1},
	}}
	domains := map[types.Domain]types.DomainAssessment{
		types.DomainMetadata: {Overall: types.DomainOverall{AccuracyScore: 1, QualityScore: 1, OverallScore: 1, Fields: 2}},
		types.DomainContent:  {Overall: types.DomainOverall{AccuracyScore: 0.2, QualityScore: 0.6, OverallScore: 0.4, Fields: 1}},
		types.DomainTemplate: {Overall: types.DomainOverall{}},
	}
	pa := Paper(domains, cfg)
	assert.Equal(t, 2, pa.Overall.Domains, "domains without fields are skipped")
	assert.InDelta(t, (3*1+0.4)/4, pa.Overall.OverallScore, 1e-9)
	assert.InDelta(t, (3*1+0.2)/4, pa.Overall.AccuracyScore, 1e-9)

	assert.Equal(t, types.PaperOverall{}, Paper(nil, cfg).Overall)
}

func TestPersistAndFromMetrics(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	a := NewBuilder(types.DomainMetadata, types.DomainConfig{})
	a.AddCustom("title", score("title", 0.9, 0.7))
	built := a.Build()
	for field, s := range built.Fields {
		require.NoError(t, st.Set(ctx, store.Path{Metric: types.MetricOverall, Domain: "metadata", Field: field}, s))
	}
	require.NoError(t, Persist(ctx, st, built))

	require.NoError(t, st.Set(ctx, store.Path{Metric: types.MetricAccuracy, Domain: "content", Field: "summary"},
		map[string]any{"finalScore": 0.6, "rating": 3, "automatedScore": 1.0}))
	require.NoError(t, st.Set(ctx, store.Path{Metric: types.MetricQuality, Domain: "content", Field: "summary"},
		map[string]any{"finalScore": 0.8}))
	require.NoError(t, st.Set(ctx, store.Path{Metric: types.MetricOverall, Domain: "content", Field: "broken"},
		json.RawMessage(`"not an object"`)))

	snap, err := st.Snapshot(ctx)
	require.NoError(t, err)
	got := FromMetrics(snap, types.EngineConfig{})

	require.Contains(t, got, types.DomainMetadata)
	assert.Equal(t, built.Overall, got[types.DomainMetadata].Overall)

	content := got[types.DomainContent]
	require.Contains(t, content.Fields, "summary")
	assert.NotContains(t, content.Fields, "broken")
	s := content.Fields["summary"]
	assert.Equal(t, 3, s.Rating)
	assert.InDelta(t, 0.7, s.OverallScore, 1e-9)
	require.NotNil(t, s.AutomatedAccuracy)
	assert.InDelta(t, 1.0, *s.AutomatedAccuracy, 1e-9)
	assert.Equal(t, 1, content.Overall.AutomatedFields)
	assert.InDelta(t, 1.0, content.Overall.AutomatedAccuracyScore, 1e-9)
}

func TestFromMetricsReadsAutomatedAccuracy(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	p := fieldeval.New(types.EngineConfig{}, st, nil, nil)
	_, err := p.Evaluate(ctx, fieldeval.FieldInput{
		Domain: types.DomainMetadata,
		Field:  "title",
		Pair:   types.FieldPair{Reference: "Graph Neural Networks", Extracted: "Graph Neural Networks"},
		Rating: 1,
	})
	require.NoError(t, err)

	// Records written without the unrated score on the overall entry.
	raw, ok, err := st.Get(ctx, store.Path{Metric: types.MetricOverall, Domain: "metadata", Field: "title"})
	require.NoError(t, err)
	require.True(t, ok)
	var legacy map[string]any
	require.NoError(t, json.Unmarshal(raw, &legacy))
	delete(legacy, "automatedAccuracy")
	require.NoError(t, st.Set(ctx, store.Path{Metric: types.MetricOverall, Domain: "metadata", Field: "title"}, legacy))

	snap, err := st.Snapshot(ctx)
	require.NoError(t, err)
	md := FromMetrics(snap, types.EngineConfig{})[types.DomainMetadata]
	assert.InDelta(t, 0.2, md.Overall.AccuracyScore, 1e-9)
	assert.InDelta(t, 1.0, md.Overall.AutomatedAccuracyScore, 1e-9)
	assert.Equal(t, 1, md.Overall.AutomatedFields)
}

func TestFromMetricsEmpty(t *testing.T) {
	assert.Empty(t, FromMetrics(nil, types.EngineConfig{}))
	assert.Empty(t, FromMetrics(store.Decode([]byte("garbage")), types.EngineConfig{}))
}
