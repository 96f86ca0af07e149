package analysis

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/store"
)

type TestResult struct {
	Name      string  `json:"name" yaml:"name"`
	Statistic float64 `json:"statistic" yaml:"statistic"`
	DF        float64 `json:"df" yaml:"df"`
	PValue    float64 `json:"p_value" yaml:"p_value"`
	Estimate  float64 `json:"estimate" yaml:"estimate"`
	N         int     `json:"n" yaml:"n"`
}

// Significant reports whether the test rejects at level alpha.
func (t TestResult) Significant(alpha float64) bool { return t.PValue < alpha }

// CorrelationTest tests H0: rho = 0 with the t statistic r*sqrt((n-2)/(1-r^2)).
func CorrelationTest(x, y []float64) (TestResult, error) {
	px, py := pairwise(x, y)
	n := len(px)
	if n < 3 {
		return TestResult{}, fmt.Errorf("analysis: correlation test needs 3 pairs, got %d", n)
	}
	r := pearson(px, py)
	if math.IsNaN(r) {
		return TestResult{}, fmt.Errorf("analysis: correlation undefined for constant series")
	}
	res := TestResult{Name: "pearson", Estimate: r, N: n, DF: float64(n - 2)}
	if math.Abs(r) >= 1 {
		res.Statistic, res.PValue = math.Copysign(math.MaxFloat64, r), 0
		return res, nil
	}
	res.Statistic = r * math.Sqrt(res.DF/(1-r*r))
	res.PValue = twoSided(res.Statistic, res.DF)
	return res, nil
}

// WelchTest compares the means of a and b without assuming equal variances.
// Estimate is mean(a) - mean(b).
func WelchTest(a, b []float64) (TestResult, error) {
	a, b = dropNaN(a), dropNaN(b)
	if len(a) < 2 || len(b) < 2 {
		return TestResult{}, fmt.Errorf("analysis: welch test needs 2 observations per group, got %d and %d", len(a), len(b))
	}
	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	na, nb := float64(len(a)), float64(len(b))
	se2 := va/na + vb/nb
	if se2 == 0 {
		return TestResult{}, fmt.Errorf("analysis: welch test undefined for zero variance")
	}
	df := se2 * se2 / ((va/na)*(va/na)/(na-1) + (vb/nb)*(vb/nb)/(nb-1))
	t := (ma - mb) / math.Sqrt(se2)
	return TestResult{Name: "welch", Statistic: t, DF: df, PValue: twoSided(t, df), Estimate: ma - mb, N: len(a) + len(b)}, nil
}

// WeekdayEffect runs a Welch test of field on weekdays against weekends.
func WeekdayEffect(recs []models.DailyRecord, field string) (TestResult, error) {
	xs, ok := store.Series(recs, field)
	if !ok {
		return TestResult{}, fmt.Errorf("analysis: unknown field %q", field)
	}
	var wk, we []float64
	for i, r := range recs {
		switch r.Date.Weekday() {
		case time.Saturday, time.Sunday:
			we = append(we, xs[i])
		default:
			wk = append(wk, xs[i])
		}
	}
	res, err := WelchTest(wk, we)
	res.Name = "weekday-vs-weekend " + field
	return res, err
}

func twoSided(t, df float64) float64 {
	d := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	return 2 * d.Survival(math.Abs(t))
}
