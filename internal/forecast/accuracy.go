package forecast

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// RMSE over the common prefix of actual and predicted, skipping pairs with a
// NaN on either side; NaN when nothing is left.
func RMSE(actual, predicted []float64) float64 {
	a, p := observed(actual, predicted)
	if len(a) == 0 {
		return math.NaN()
	}
	return floats.Distance(a, p, 2) / math.Sqrt(float64(len(a)))
}

// MAE over the same pairs as RMSE.
func MAE(actual, predicted []float64) float64 {
	a, p := observed(actual, predicted)
	if len(a) == 0 {
		return math.NaN()
	}
	return floats.Distance(a, p, 1) / float64(len(a))
}

func observed(actual, predicted []float64) (a, p []float64) {
	n := min(len(actual), len(predicted))
	a, p = make([]float64, 0, n), make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(actual[i]) || math.IsNaN(predicted[i]) {
			continue
		}
		a = append(a, actual[i])
		p = append(p, predicted[i])
	}
	return a, p
}
