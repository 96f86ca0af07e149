package forecast

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrNotEnoughData = errors.New("forecast: not enough data")
	// ErrDegenerateData means the history cannot identify a model, e.g. every
	// week has the same clicks.
	ErrDegenerateData = errors.New("forecast: degenerate data")
)

// Poisson is a log-link Poisson GLM of weekly conversions on weekly clicks,
// fitted by iteratively reweighted least squares.
type Poisson struct {
	Intercept  float64 `json:"intercept"`
	Slope      float64 `json:"slope"`
	Deviance   float64 `json:"deviance"`
	NullDev    float64 `json:"null_deviance"`
	Iterations int     `json:"iterations"`
	Converged  bool    `json:"converged"`
}

const (
	irlsMaxIter = 50
	irlsTol     = 1e-8
)

// FitPoisson fits y ~ Poisson(exp(a + b*x)). The predictor is standardised
// internally; the reported coefficients are on the original scale.
func FitPoisson(x, y []float64) (*Poisson, error) {
	n := len(x)
	if n != len(y) {
		return nil, fmt.Errorf("forecast: x has %d values, y has %d", n, len(y))
	}
	if n < 3 {
		return nil, fmt.Errorf("%w: poisson needs 3 observations, got %d", ErrNotEnoughData, n)
	}
	for i := range y {
		if y[i] < 0 || math.IsNaN(y[i]) || math.IsNaN(x[i]) {
			return nil, fmt.Errorf("forecast: invalid observation %d (x=%g, y=%g)", i, x[i], y[i])
		}
	}
	mean, sd := stat.MeanStdDev(x, nil)
	if sd == 0 {
		return nil, fmt.Errorf("%w: predictor is constant (%g)", ErrDegenerateData, mean)
	}

	X := mat.NewDense(n, 2, nil)
	for i := range x {
		X.Set(i, 0, 1)
		X.Set(i, 1, (x[i]-mean)/sd)
	}

	mu := make([]float64, n)
	eta := make([]float64, n)
	for i := range y {
		mu[i] = y[i] + 0.5
		eta[i] = math.Log(mu[i])
	}

	p := &Poisson{}
	beta := mat.NewVecDense(2, nil)
	dev := poissonDeviance(y, mu)
	for p.Iterations < irlsMaxIter {
		p.Iterations++

		w := mat.NewDiagDense(n, append([]float64(nil), mu...))
		zw := mat.NewVecDense(n, nil)
		for i := range y {
			zw.SetVec(i, eta[i]+(y[i]-mu[i])/mu[i])
		}

		var xtw, xtwx mat.Dense
		xtw.Mul(X.T(), w)
		xtwx.Mul(&xtw, X)
		var rhs mat.VecDense
		rhs.MulVec(&xtw, zw)
		if err := beta.SolveVec(&xtwx, &rhs); err != nil {
			return nil, fmt.Errorf("%w: irls solve: %w", ErrDegenerateData, err)
		}

		var fitted mat.VecDense
		fitted.MulVec(X, beta)
		for i := range eta {
			eta[i] = fitted.AtVec(i)
			mu[i] = math.Exp(eta[i])
		}
		next := poissonDeviance(y, mu)
		if math.Abs(next-dev)/(math.Abs(next)+0.1) < irlsTol {
			dev = next
			p.Converged = true
			break
		}
		dev = next
	}

	b0, b1 := beta.AtVec(0), beta.AtVec(1)
	p.Slope = b1 / sd
	p.Intercept = b0 - b1*mean/sd
	p.Deviance = dev

	ybar := stat.Mean(y, nil)
	null := make([]float64, n)
	for i := range null {
		null[i] = ybar
	}
	p.NullDev = poissonDeviance(y, null)
	return p, nil
}

// Predict returns the expected weekly conversions for a weekly click total.
func (p *Poisson) Predict(weeklyClicks float64) (float64, error) {
	v := math.Exp(p.Intercept + p.Slope*weeklyClicks)
	if math.IsInf(v, 0) {
		return 0, fmt.Errorf("forecast: poisson prediction overflows at x=%g", weeklyClicks)
	}
	return v, nil
}

func (p *Poisson) String() string {
	return fmt.Sprintf("poisson(log mu = %.4g + %.4g*clicks)", p.Intercept, p.Slope)
}

func poissonDeviance(y, mu []float64) float64 {
	var d float64
	for i := range y {
		if y[i] > 0 {
			d += y[i]*math.Log(y[i]/mu[i]) - (y[i] - mu[i])
		} else {
			d += mu[i]
		}
	}
	return 2 * d
}

// Linear is an ordinary least squares weekly model. Its predictions can go
// negative for small click totals.
type Linear struct {
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
	R2        float64 `json:"r2"`
}

func FitLinear(x, y []float64) (*Linear, error) {
	if len(x) != len(y) {
		return nil, fmt.Errorf("forecast: x has %d values, y has %d", len(x), len(y))
	}
	if len(x) < 2 {
		return nil, fmt.Errorf("%w: linear needs 2 observations, got %d", ErrNotEnoughData, len(x))
	}
	a, b := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(a) || math.IsNaN(b) {
		return nil, fmt.Errorf("%w: linear fit undefined", ErrDegenerateData)
	}
	return &Linear{Intercept: a, Slope: b, R2: stat.RSquared(x, y, nil, a, b)}, nil
}

func (l *Linear) Predict(weeklyClicks float64) (float64, error) {
	return l.Intercept + l.Slope*weeklyClicks, nil
}

func (l *Linear) String() string {
	return fmt.Sprintf("ols(%.4g + %.4g*clicks)", l.Intercept, l.Slope)
}
