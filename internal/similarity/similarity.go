// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package similarity compares an extracted value with its reference text.
// It reports edit-distance similarity, token-overlap precision/recall/F1,
// special-character overlap, and their weighted blend.
package similarity

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/eval-engine/internal/value"
	"github.com/pdiddy/eval-engine/pkg/types"
)

// Scorer computes SimilarityResults using per-field-type weights.
type Scorer struct {
	cfg types.EngineConfig
}

// New returns a Scorer. Field types without configured weights use
// types.DefaultSimilarityWeights.
func New(cfg types.EngineConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score compares pair.Extracted with pair.Reference. Inputs without a
// textual form, or any panic while scoring, yield the fallback result.
func (s *Scorer) Score(pair types.FieldPair) (res types.Result[types.SimilarityResult]) {
	defer func() {
		if r := recover(); r != nil {
			res = types.FallbackSimilarity(types.StageSimilarity, types.DefectMalformedInput, fmt.Sprint(r))
		}
	}()

	ft := pair.Type()
	ref, err := value.Text(pair.Reference, ft)
	if err != nil {
		return types.FallbackSimilarity(types.StageSimilarity, types.DefectMalformedInput, "reference: "+err.Error())
	}
	ext, err := value.Text(pair.Extracted, ft)
	if err != nil {
		return types.FallbackSimilarity(types.StageSimilarity, types.DefectMalformedInput, "extracted: "+err.Error())
	}

	return types.Ok(Compare(ref, ext, s.cfg.SimilarityFor(ft)))
}

// Compare computes every similarity component for two strings and blends
// them with w. Weights are normalized before use.
func Compare(ref, ext string, w types.SimilarityWeights) types.SimilarityResult {
	w = w.Normalized()
	p, r, f1 := TokenOverlap(ref, ext)
	res := types.SimilarityResult{
		EditDistanceScore: EditDistanceScore(ref, ext),
		TokenPrecision:    p,
		TokenRecall:       r,
		TokenF1:           f1,
		SpecialCharScore:  SpecialCharScore(ref, ext),
	}
	res.WeightedAutomatedScore = types.Clamp01(
		res.EditDistanceScore*w.EditDistance +
			res.TokenF1*w.Token +
			res.SpecialCharScore*w.SpecialChar,
	)
	return res
}

// EditDistanceScore returns 1 − lev(ref, ext)/max(len) measured in runes.
// Two empty strings score 1; exactly one empty string scores 0.
func EditDistanceScore(ref, ext string) float64 {
	lr, le := utf8.RuneCountInString(ref), utf8.RuneCountInString(ext)
	switch {
	case lr == 0 && le == 0:
		return 1
	case lr == 0 || le == 0:
		return 0
	}
	longest := max(lr, le)
	return types.Clamp01(1 - float64(Levenshtein(ref, ext))/float64(longest))
}

// Levenshtein returns the rune-level edit distance between a and b.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Tokens lower-cases s and splits it on whitespace into a set. No stemming,
// stop-word removal, or punctuation stripping is applied.
func Tokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[tok] = struct{}{}
	}
	return set
}

// TokenOverlap returns precision (common/extracted), recall
// (common/reference), and F1 over the token sets of ref and ext.
func TokenOverlap(ref, ext string) (precision, recall, f1 float64) {
	return overlap(Tokens(ref), Tokens(ext))
}

// SpecialChars returns the set of runes in s that are neither letters,
// digits, nor whitespace.
func SpecialChars(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			continue
		}
		set[string(r)] = struct{}{}
	}
	return set
}

// SpecialCharScore is the F1 overlap of the special-character sets of ref
// and ext. Strings without punctuation on either side score 1.
func SpecialCharScore(ref, ext string) float64 {
	_, _, f1 := overlap(SpecialChars(ref), SpecialChars(ext))
	return f1
}

// overlap computes set precision, recall, and F1. Both sets empty scores 1
// on every measure; exactly one empty scores 0.
func overlap(ref, ext map[string]struct{}) (precision, recall, f1 float64) {
	switch {
	case len(ref) == 0 && len(ext) == 0:
		return 1, 1, 1
	case len(ref) == 0 || len(ext) == 0:
		return 0, 0, 0
	}

	common := 0
	for tok := range ext {
		if _, ok := ref[tok]; ok {
			common++
		}
	}
	precision = float64(common) / float64(len(ext))
	recall = float64(common) / float64(len(ref))
	if precision+recall == 0 {
		return precision, recall, 0
	}
	f1 = 2 * precision * recall / (precision + recall)
	return precision, recall, f1
}
