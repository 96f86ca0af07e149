package analysis

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/store"
)

type CorrelationMatrix struct {
	Fields []string    `json:"fields" yaml:"fields"`
	Values [][]float64 `json:"values" yaml:"values"`
}

// Correlate returns the pairwise Pearson correlation of the given fields
// (all numeric fields when empty). Pairs with fewer than 3 complete
// observations or zero variance are NaN.
func Correlate(recs []models.DailyRecord, fields []string) (CorrelationMatrix, error) {
	if len(fields) == 0 {
		fields = models.Fields
	}
	series := make([][]float64, len(fields))
	for i, f := range fields {
		xs, ok := store.Series(recs, f)
		if !ok {
			return CorrelationMatrix{}, fmt.Errorf("analysis: unknown field %q", f)
		}
		series[i] = xs
	}

	m := mat.NewSymDense(len(fields), nil)
	for i := range fields {
		for j := i; j < len(fields); j++ {
			r := 1.0
			if i != j {
				r = pearson(series[i], series[j])
			}
			m.SetSym(i, j, r)
		}
	}
	return fromSym(fields, m), nil
}

// MarshalJSON writes undefined correlations as null.
func (c CorrelationMatrix) MarshalJSON() ([]byte, error) {
	rows := make([][]*float64, len(c.Values))
	for i := range c.Values {
		rows[i] = nullable(c.Values[i])
	}
	return json.Marshal(struct {
		Fields []string     `json:"fields"`
		Values [][]*float64 `json:"values"`
	}{c.Fields, rows})
}

func pearson(x, y []float64) float64 {
	px, py := pairwise(x, y)
	if len(px) < 3 || stat.Variance(px, nil) == 0 || stat.Variance(py, nil) == 0 {
		return math.NaN()
	}
	return stat.Correlation(px, py, nil)
}

func fromSym(fields []string, m *mat.SymDense) CorrelationMatrix {
	n := m.SymmetricDim()
	out := CorrelationMatrix{Fields: fields, Values: make([][]float64, n)}
	for i := range out.Values {
		out.Values[i] = make([]float64, n)
		for j := range out.Values[i] {
			out.Values[i][j] = m.At(i, j)
		}
	}
	return out
}

// Reorder permutes the matrix into the leaf order of an average-linkage
// hierarchical clustering on 1-|r|, so correlated fields sit together.
// NaN correlations count as distance 1.
func (c CorrelationMatrix) Reorder() CorrelationMatrix {
	order := averageLinkageOrder(c.Values)
	out := CorrelationMatrix{Fields: make([]string, len(order)), Values: make([][]float64, len(order))}
	for i, oi := range order {
		out.Fields[i] = c.Fields[oi]
		out.Values[i] = make([]float64, len(order))
		for j, oj := range order {
			out.Values[i][j] = c.Values[oi][oj]
		}
	}
	return out
}

func averageLinkageOrder(r [][]float64) []int {
	n := len(r)
	dist := func(i, j int) float64 {
		if math.IsNaN(r[i][j]) {
			return 1
		}
		return 1 - math.Abs(r[i][j])
	}
	clusters := make([][]int, n)
	for i := range clusters {
		clusters[i] = []int{i}
	}
	for len(clusters) > 1 {
		bi, bj, best := 0, 1, math.Inf(1)
		for i := 0; i < len(clusters); i++ {
			for j := i + 1; j < len(clusters); j++ {
				var s float64
				for _, a := range clusters[i] {
					for _, b := range clusters[j] {
						s += dist(a, b)
					}
				}
				if d := s / float64(len(clusters[i])*len(clusters[j])); d < best {
					bi, bj, best = i, j, d
				}
			}
		}
		merged := append(append([]int(nil), clusters[bi]...), clusters[bj]...)
		clusters[bi] = merged
		clusters = append(clusters[:bj], clusters[bj+1:]...)
	}
	if n == 0 {
		return nil
	}
	return clusters[0]
}
