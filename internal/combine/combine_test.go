// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package combine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine(t *testing.T) {
	tests := []struct {
		name      string
		automated float64
		rating    int
		expertise float64
		wantFinal float64
	}{
		{"unrated keeps automated", 0.73, 0, 1.0, 0.73},
		{"unrated ignores expertise", 0.73, 0, 4.5, 0.73},
		{"top rating keeps automated", 0.73, 5, 0.2, 0.73},
		{"rating one scales by 0.2", 0.73, 1, 3.0, 0.73 * 0.2},
		{"rating three", 0.5, 3, 1.0, 0.3},
		{"automated clamped high", 1.4, 5, 1.0, 1},
		{"automated clamped low", -0.2, 4, 1.0, 0},
		{"rating clamped high", 0.6, 9, 1.0, 0.6},
		{"rating clamped low", 0.6, -3, 1.0, 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Combine(tt.automated, tt.rating, tt.expertise)
			assert.InDelta(t, tt.wantFinal, c.Final, 1e-12)
			assert.GreaterOrEqual(t, c.Final, 0.0)
			assert.LessOrEqual(t, c.Final, 1.0)
		})
	}
}

func TestCombine_Linearity(t *testing.T) {
	for r := 1; r <= MaxRating; r++ {
		c := Combine(0.9, r, 2)
		assert.InDelta(t, 0.9*float64(r)/5, c.Final, 1e-12, "rating %d", r)
	}
}

func TestCombine_Agreement(t *testing.T) {
	c := Combine(0.8, 0, 1)
	assert.Nil(t, c.Agreement)

	c = Combine(0.8, 4, 1)
	require.NotNil(t, c.Agreement)
	assert.InDelta(t, 1.0, *c.Agreement, 1e-12)

	c = Combine(0.2, 5, 1)
	require.NotNil(t, c.Agreement)
	assert.InDelta(t, 0.2, *c.Agreement, 1e-12)
	assert.InDelta(t, 0.2, c.Final, 1e-12, "agreement is not blended into the final score")

	c = Combine(1, 1, 1)
	require.NotNil(t, c.Agreement)
	assert.InDelta(t, 0.2, *c.Agreement, 1e-12, "automated above the rating")
}

func TestCombine_RecordsExpertiseWithoutApplying(t *testing.T) {
	a := Combine(0.6, 3, 0.2)
	b := Combine(0.6, 3, 5.0)
	assert.Equal(t, a.Final, b.Final)
	assert.Equal(t, 0.2, a.Expertise)
	assert.Equal(t, 5.0, b.Expertise)
}
