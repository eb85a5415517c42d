// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package combine blends an automated score with an evaluator's 1–5 rating.
//
// The expertise multiplier is recorded but never applied here. Expertise
// weighting happens only in cross-evaluator aggregation.
package combine

import (
	"math"

	"github.com/pdiddy/eval-engine/pkg/types"
)

const (
	// MaxRating is the top of the rating scale.
	MaxRating = 5

	// Unrated marks a field the evaluator has not rated yet.
	Unrated = 0
)

// Combine returns automated·(rating/5) for a set rating and the automated
// score alone when unrated. Ratings outside 0–5 are clamped and automated
// scores are clamped to [0,1]. Agreement, 1 − |automated − rating/5|, is
// reported for rated fields only.
func Combine(automated float64, rating int, expertise float64) types.Combination {
	automated = types.Clamp01(automated)
	rating = ClampRating(rating)

	c := types.Combination{
		Automated: automated,
		Rating:    rating,
		Final:     automated,
		Expertise: expertise,
	}
	if rating == Unrated {
		return c
	}

	normalized := float64(rating) / MaxRating
	c.Final = types.Clamp01(automated * normalized)
	agreement := types.Clamp01(1 - math.Abs(automated-normalized))
	c.Agreement = &agreement
	return c
}

// ClampRating limits r to the 0–5 scale.
func ClampRating(r int) int {
	switch {
	case r < Unrated:
		return Unrated
	case r > MaxRating:
		return MaxRating
	}
	return r
}
