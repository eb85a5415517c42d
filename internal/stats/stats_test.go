// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	d := Summarize([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, d.Mean, 1e-9)
	assert.InDelta(t, 2.0, d.StdDev, 1e-9, "population std dev divides by n")
	assert.Equal(t, 2.0, d.Min)
	assert.Equal(t, 9.0, d.Max)
	assert.Equal(t, 8, d.Count)

	assert.Equal(t, Descriptive{}, Summarize(nil))
}

func TestWeightedMean(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		ws   []float64
		want float64
	}{
		{"empty", nil, nil, 0},
		{"equal weights", []float64{0.2, 0.8}, []float64{1, 1}, 0.5},
		{"heavier second", []float64{0.2, 0.8}, []float64{1, 3}, 0.65},
		{"missing weights count as one", []float64{0.2, 0.8}, nil, 0.5},
		{"invalid weights count as one", []float64{0.2, 0.8}, []float64{0, math.NaN()}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, WeightedMean(tt.xs, tt.ws), 1e-9)
		})
	}
}

func TestBucket(t *testing.T) {
	tests := []struct {
		score float64
		want  Level
	}{
		{1, High},
		{0.8, High},
		{0.79, Partial},
		{0.5, Partial},
		{0.49, Low},
		{0, Low},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Bucket(tt.score), "score %v", tt.score)
	}

	assert.Equal(t, Distribution{High: 2, Partial: 1, Low: 1}, Distribute([]float64{0.9, 0.8, 0.6, 0.1}))
}

func TestPearson(t *testing.T) {
	tests := []struct {
		name   string
		x, y   []float64
		want   float64
		wantOK bool
	}{
		{"single point", []float64{1}, []float64{2}, 0, false},
		{"empty", nil, nil, 0, false},
		{"two points co-vary", []float64{0.9, 0.5}, []float64{0.8, 0.4}, 1, true},
		{"perfect negative", []float64{1, 2, 3}, []float64{3, 2, 1}, -1, true},
		{"zero variance", []float64{0.7, 0.7, 0.7}, []float64{0.1, 0.5, 0.9}, 0, true},
		{"partial", []float64{1, 2, 3, 4}, []float64{1, 3, 2, 4}, 0.8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := Pearson(tt.x, tt.y)
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, r, 1e-9)
			assert.False(t, math.IsNaN(r))
		})
	}
}

func TestCorrelate(t *testing.T) {
	rows := []map[string]float64{
		{"metadata": 0.9, "template": 0.8, "content": 0.3},
		{"metadata": 0.5, "template": 0.4},
		{"metadata": 0.7, "template": 0.9},
	}
	m := Correlate([]string{"template", "metadata", "content"}, rows)

	assert.Equal(t, []string{"content", "metadata", "template"}, m.Keys)
	for _, a := range m.Keys {
		r, ok := m.At(a, a)
		require.True(t, ok)
		assert.Equal(t, 1.0, r, "diagonal is 1")
		for _, b := range m.Keys {
			assert.Equal(t, m.Values[a][b], m.Values[b][a], "symmetric %s/%s", a, b)
			if v := m.Values[a][b]; v != nil {
				assert.GreaterOrEqual(t, *v, -1.0)
				assert.LessOrEqual(t, *v, 1.0)
			}
		}
	}

	_, ok := m.At("metadata", "content")
	assert.False(t, ok, "one paired observation is undefined")
	assert.Equal(t, 1, m.Observations["content"]["metadata"])
	assert.Equal(t, 3, m.Observations["metadata"]["template"])

	_, ok = m.At("metadata", "template")
	assert.True(t, ok)
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{0.3, 0.6, 0.9, 0.3}, 3)
	want := []float64{0.3, 0.45, 0.6, 0.6}
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9)
	}
	assert.Empty(t, MovingAverage(nil, 3))
}
