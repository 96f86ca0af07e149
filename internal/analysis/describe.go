// Package analysis holds the exploratory statistics run before forecasting:
// summaries, correlation structure, hypothesis tests and weekly decomposition.
package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/store"
)

type Summary struct {
	Field  string  `json:"field" yaml:"field"`
	Count  int     `json:"count" yaml:"count"`
	Mean   float64 `json:"mean" yaml:"mean"`
	Std    float64 `json:"std" yaml:"std"`
	Min    float64 `json:"min" yaml:"min"`
	Q1     float64 `json:"q1" yaml:"q1"`
	Median float64 `json:"median" yaml:"median"`
	Q3     float64 `json:"q3" yaml:"q3"`
	Max    float64 `json:"max" yaml:"max"`
}

// Describe summarises every numeric field; missing values are skipped. An
// all-missing field has Count 0 and zero statistics.
func Describe(recs []models.DailyRecord) []Summary {
	out := make([]Summary, 0, len(models.Fields))
	for _, f := range models.Fields {
		xs, _ := store.Series(recs, f)
		out = append(out, summarize(f, dropNaN(xs)))
	}
	return out
}

func summarize(field string, xs []float64) Summary {
	s := Summary{Field: field, Count: len(xs)}
	if len(xs) == 0 {
		return s
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	s.Mean = stat.Mean(sorted, nil)
	if len(sorted) > 1 {
		s.Std = stat.StdDev(sorted, nil)
	}
	s.Min, s.Max = floats.Min(sorted), floats.Max(sorted)
	s.Q1 = stat.Quantile(0.25, stat.LinInterp, sorted, nil)
	s.Median = stat.Quantile(0.5, stat.LinInterp, sorted, nil)
	s.Q3 = stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	return s
}

func dropNaN(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// pairwise keeps the indices where both x and y are present.
func pairwise(x, y []float64) (px, py []float64) {
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		px = append(px, x[i])
		py = append(py, y[i])
	}
	return px, py
}

// nullable maps NaN to nil so the slice survives JSON encoding.
func nullable(xs []float64) []*float64 {
	out := make([]*float64, len(xs))
	for i := range xs {
		if !math.IsNaN(xs[i]) {
			out[i] = &xs[i]
		}
	}
	return out
}
