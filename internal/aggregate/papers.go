// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"sort"

	"github.com/pdiddy/eval-engine/internal/stats"
	"github.com/pdiddy/eval-engine/pkg/types"
)

// paperGroup holds every evaluation of one paper.
type paperGroup struct {
	token string
	evals []types.Evaluation
}

// groupByPaper groups evaluations by token in token order. Evaluations
// without a token are dropped.
func groupByPaper(evals []types.Evaluation) []paperGroup {
	byToken := make(map[string]*paperGroup)
	for _, ev := range evals {
		if ev.Token == "" {
			continue
		}
		g, ok := byToken[ev.Token]
		if !ok {
			g = &paperGroup{token: ev.Token}
			byToken[ev.Token] = g
		}
		g.evals = append(g.evals, ev)
	}

	out := make([]paperGroup, 0, len(byToken))
	for _, g := range byToken {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].token < out[j].token })
	return out
}

// AggregatePapers builds one AggregatedPaper per paper token.
func AggregatePapers(evals []types.Evaluation) map[string]types.AggregatedPaper {
	out := make(map[string]types.AggregatedPaper)
	for _, g := range groupByPaper(evals) {
		out[g.token] = aggregatePaper(g)
	}
	return out
}

func aggregatePaper(g paperGroup) types.AggregatedPaper {
	p := types.AggregatedPaper{
		Token:      g.token,
		Evaluators: len(g.evals),
		Domains:    make(map[types.Domain]types.DomainAggregate),
	}

	weights := make([]float64, len(g.evals))
	for i, ev := range g.evals {
		weights[i] = ev.Evaluator.Weight()
		if !ev.Timestamp.IsZero() {
			if p.FirstSeen.IsZero() || ev.Timestamp.Before(p.FirstSeen) {
				p.FirstSeen = ev.Timestamp
			}
			if ev.Timestamp.After(p.LastSeen) {
				p.LastSeen = ev.Timestamp
			}
		}
	}
	p.MeanExpertise = stats.Mean(weights)

	for _, d := range domainsOf(g.evals) {
		var acc, accW, auto, qual, ratings, overall []float64
		for i, ev := range g.evals {
			a, ok := ev.Domains[d]
			if !ok || a.Overall.Fields == 0 {
				continue
			}
			acc = append(acc, a.Overall.AccuracyScore)
			accW = append(accW, weights[i])
			if a.Overall.AutomatedFields > 0 {
				auto = append(auto, a.Overall.AutomatedAccuracyScore)
			}
			overall = append(overall, a.Overall.OverallScore)
			if a.Overall.QualityScore > 0 {
				qual = append(qual, a.Overall.QualityScore)
			}
			if r, n := a.MeanRating(); n > 0 {
				ratings = append(ratings, r)
			}
		}
		if len(acc) == 0 {
			continue
		}
		p.Domains[d] = types.DomainAggregate{
			AccuracyScores: types.AccuracyStats{
				Mean:         stats.Mean(acc),
				WeightedMean: stats.WeightedMean(acc, accW),
				Count:        len(acc),
			},
			AutomatedAccuracy: types.ScoreStats{Mean: stats.Mean(auto), Count: len(auto)},
			QualityScores:     types.ScoreStats{Mean: stats.Mean(qual), Count: len(qual)},
			UserRatings:       types.ScoreStats{Mean: stats.Mean(ratings), Count: len(ratings)},
			Scores:            types.ScoreStats{Mean: stats.Mean(overall), Count: len(overall)},
		}
	}
	return p
}

// domainsOf lists the domains present in evals, known domains first in
// display order.
func domainsOf(evals []types.Evaluation) []types.Domain {
	seen := make(map[types.Domain]bool)
	for _, ev := range evals {
		for d := range ev.Domains {
			seen[d] = true
		}
	}
	var out []types.Domain
	for _, d := range types.Domains {
		if seen[d] {
			out = append(out, d)
			delete(seen, d)
		}
	}
	var extra []types.Domain
	for d := range seen {
		extra = append(extra, d)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// evaluationScore is one evaluator's paper-level score: the mean domain
// overall score over domains with scored fields.
func evaluationScore(ev types.Evaluation) (float64, bool) {
	var xs []float64
	for _, d := range domainsOf([]types.Evaluation{ev}) {
		if a := ev.Domains[d]; a.Overall.Fields > 0 {
			xs = append(xs, a.Overall.OverallScore)
		}
	}
	if len(xs) == 0 {
		return 0, false
	}
	return stats.Mean(xs), true
}

func sortedDomains(m map[types.Domain]types.DomainAggregate) []types.Domain {
	out := make([]types.Domain, 0, len(m))
	for d := range m {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
