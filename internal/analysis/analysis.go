// Package analysis combines the ensemble's per-model distributions into a
// ranked result and an inter-model conflict score.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// NotAvailable names the padding entry used when fewer than three classes exist.
const NotAvailable = "N/A"

var ErrEmpty = errors.New("no distributions to analyze")

// Namer resolves class indices to display names.
type Namer interface {
	Name(i int) string
}

type Prediction struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"` // percent, 2 decimals
}

type Result struct {
	Top           Prediction `json:"top_prediction"`
	Secondary     Prediction `json:"secondary_prediction"`
	Tertiary      Prediction `json:"tertiary_prediction"`
	ConflictScore float64    `json:"conflict_score"`
	TopIndex      int        `json:"-"`
}

// Analyze averages dists element-wise, ranks the top three classes and
// measures how much the models disagree on the winning class: the standard
// deviation (divisor n) of each model's confidence for it, as a percentage.
// Ties keep the lower class index first.
func Analyze(names Namer, dists ...[]float64) (Result, error) {
	if len(dists) == 0 || len(dists[0]) == 0 {
		return Result{}, ErrEmpty
	}
	n := len(dists[0])
	for i, d := range dists {
		if len(d) != n {
			return Result{}, fmt.Errorf("distribution %d has %d classes, want %d", i, len(d), n)
		}
	}

	avg := make([]float64, n)
	for _, d := range dists {
		for i, v := range d {
			avg[i] += v
		}
	}
	for i := range avg {
		avg[i] /= float64(len(dists))
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return avg[order[a]] > avg[order[b]] })

	ranked := make([]Prediction, 3)
	for r := range ranked {
		if r >= n {
			ranked[r] = Prediction{Name: NotAvailable, Score: 0}
			continue
		}
		i := order[r]
		ranked[r] = Prediction{Name: names.Name(i), Score: round2(avg[i] * 100)}
	}

	top := order[0]
	perModel := make([]float64, len(dists))
	for m, d := range dists {
		perModel[m] = d[top]
	}

	return Result{
		Top:           ranked[0],
		Secondary:     ranked[1],
		Tertiary:      ranked[2],
		ConflictScore: round2(stddev(perModel) * 100),
		TopIndex:      top,
	}, nil
}

// FromPercentages re-runs Analyze over distributions stored as percentages.
func FromPercentages(names Namer, percents ...[]float64) (Result, error) {
	dists := make([][]float64, len(percents))
	for m, p := range percents {
		d := make([]float64, len(p))
		for i, v := range p {
			d[i] = v / 100
		}
		dists[m] = d
	}
	return Analyze(names, dists...)
}

// ToPercentages converts a distribution to percentages rounded to 2 decimals,
// the form kept in history records.
func ToPercentages(dist []float64) []float64 {
	out := make([]float64, len(dist))
	for i, v := range dist {
		out[i] = round2(v * 100)
	}
	return out
}

func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return math.Sqrt(sq / float64(len(xs)))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
