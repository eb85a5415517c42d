// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stats implements the descriptive statistics used by cross-paper
// aggregation. Every function tolerates empty input and never returns NaN.
package stats

import (
	"math"
	"sort"

	"github.com/pdiddy/eval-engine/pkg/types"
)

// zeroVariance is the denominator below which a correlation is reported as 0.
const zeroVariance = 1e-12

// Bucket thresholds.
const (
	HighThreshold    = 0.8
	PartialThreshold = 0.5
)

// Descriptive summarizes a sample.
type Descriptive struct {
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"stdDev" yaml:"std_dev"`
	Min    float64 `json:"min" yaml:"min"`
	Max    float64 `json:"max" yaml:"max"`
	Count  int     `json:"count" yaml:"count"`
}

// Summarize computes mean, population standard deviation, min, and max.
func Summarize(xs []float64) Descriptive {
	if len(xs) == 0 {
		return Descriptive{}
	}
	d := Descriptive{
		Mean:   Mean(xs),
		StdDev: PopulationStdDev(xs),
		Min:    xs[0],
		Max:    xs[0],
		Count:  len(xs),
	}
	for _, x := range xs[1:] {
		d.Min = math.Min(d.Min, x)
		d.Max = math.Max(d.Max, x)
	}
	return d
}

// Mean returns the arithmetic mean, or 0 for an empty sample.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// PopulationStdDev divides by n, not n−1.
func PopulationStdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// WeightedMean returns Σw·x/Σw. Non-positive or NaN weights count as 1.
func WeightedMean(xs, ws []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var num, den float64
	for i, x := range xs {
		w := 1.0
		if i < len(ws) && ws[i] > 0 && !math.IsNaN(ws[i]) {
			w = ws[i]
		}
		num += w * x
		den += w
	}
	return num / den
}

// Level is a categorical score bucket.
type Level string

const (
	High    Level = "high"
	Partial Level = "partial"
	Low     Level = "low"
)

// Bucket classifies a score: ≥0.8 high, ≥0.5 partial, otherwise low.
func Bucket(score float64) Level {
	switch {
	case score >= HighThreshold:
		return High
	case score >= PartialThreshold:
		return Partial
	}
	return Low
}

// Distribution counts scores per bucket.
type Distribution struct {
	High    int `json:"high" yaml:"high"`
	Partial int `json:"partial" yaml:"partial"`
	Low     int `json:"low" yaml:"low"`
}

// Distribute buckets every score in xs.
func Distribute(xs []float64) Distribution {
	var d Distribution
	for _, x := range xs {
		switch Bucket(x) {
		case High:
			d.High++
		case Partial:
			d.Partial++
		default:
			d.Low++
		}
	}
	return d
}

// Pearson returns the correlation coefficient of paired samples. ok is
// false with fewer than two pairs. Zero variance in either series yields 0.
func Pearson(x, y []float64) (r float64, ok bool) {
	n := min(len(x), len(y))
	if n < 2 {
		return 0, false
	}
	x, y = x[:n], y[:n]
	mx, my := Mean(x), Mean(y)
	var num, dx2, dy2 float64
	for i := range n {
		dx, dy := x[i]-mx, y[i]-my
		num += dx * dy
		dx2 += dx * dx
		dy2 += dy * dy
	}
	denom := math.Sqrt(dx2 * dy2)
	if denom < zeroVariance || math.IsNaN(denom) {
		return 0, true
	}
	return math.Max(-1, math.Min(1, num/denom)), true
}

// Correlate builds the Pearson matrix over keys. Each row is one
// observation; a pair uses only rows where both keys are present.
func Correlate(keys []string, rows []map[string]float64) types.CorrelationMatrix {
	keys = append([]string(nil), keys...)
	sort.Strings(keys)
	m := types.CorrelationMatrix{
		Keys:         keys,
		Values:       make(map[string]map[string]*float64, len(keys)),
		Observations: make(map[string]map[string]int, len(keys)),
	}
	for _, k := range keys {
		m.Values[k] = make(map[string]*float64, len(keys))
		m.Observations[k] = make(map[string]int, len(keys))
	}

	for i, a := range keys {
		for _, b := range keys[i:] {
			var xs, ys []float64
			for _, row := range rows {
				x, okx := row[a]
				y, oky := row[b]
				if okx && oky {
					xs = append(xs, x)
					ys = append(ys, y)
				}
			}
			m.Observations[a][b] = len(xs)
			m.Observations[b][a] = len(xs)

			if a == b {
				one := 1.0
				m.Values[a][a] = &one
				continue
			}
			if r, ok := Pearson(xs, ys); ok {
				m.Values[a][b] = &r
				m.Values[b][a] = &r
			} else {
				m.Values[a][b] = nil
				m.Values[b][a] = nil
			}
		}
	}
	return m
}

// MovingAverage returns the trailing mean over up to window points ending
// at each index.
func MovingAverage(xs []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(xs))
	var sum float64
	for i, x := range xs {
		sum += x
		if i >= window {
			sum -= xs[i-window]
		}
		out[i] = sum / float64(min(i+1, window))
	}
	return out
}
