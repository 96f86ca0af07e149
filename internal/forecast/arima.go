package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/sartorproj/goarima/arima"
	"github.com/sartorproj/goarima/autoarima"
	"github.com/sartorproj/goarima/timeseries"
)

// ARIMA selects a non-seasonal ARIMA order by AICc search and forecasts
// daily clicks.
type ARIMA struct {
	MaxP, MaxQ int

	order   string
	aicc    float64
	predict func(h int) ([]float64, error)
}

func NewARIMA() *ARIMA { return &ARIMA{MaxP: 3, MaxQ: 3} }

// Fit searches orders on series (NaNs interpolated). When the search fails it
// falls back to ARIMA(1,1,1).
func (a *ARIMA) Fit(series []float64) error {
	if len(series) < 10 {
		return fmt.Errorf("%w: arima needs 10 observations, got %d", ErrNotEnoughData, len(series))
	}
	ts := &timeseries.Series{Values: Interpolate(series)}

	cfg := autoarima.DefaultConfig()
	cfg.MaxP, cfg.MaxQ = a.MaxP, a.MaxQ
	cfg.Criterion = "aicc"
	cfg.ModelSelection = "aicc"
	cfg.AutoSeasonal = false
	cfg.CompareModels = false
	auto, err := autoarima.AutoARIMA(ts, cfg)
	if err == nil && auto != nil && auto.Model != nil {
		a.order = fmt.Sprintf("(%d,%d,%d)", auto.P, auto.D, auto.Q)
		a.aicc = auto.AICc
		a.predict = auto.Predict
		return nil
	}

	m := arima.New(1, 1, 1)
	if ferr := m.Fit(ts); ferr != nil {
		return fmt.Errorf("forecast: arima fit: %w", errors.Join(err, ferr))
	}
	a.order = "(1,1,1)"
	a.aicc = m.AICc
	a.predict = m.Predict
	return nil
}

// Forecast returns h non-negative daily values.
func (a *ARIMA) Forecast(h int) ([]float64, error) {
	if a.predict == nil {
		return nil, errors.New("forecast: arima not fitted")
	}
	fc, err := a.predict(h)
	if err != nil {
		return nil, fmt.Errorf("forecast: arima predict: %w", err)
	}
	if len(fc) != h {
		return nil, fmt.Errorf("forecast: arima returned %d values, want %d", len(fc), h)
	}
	for i, v := range fc {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("forecast: arima returned NaN at step %d", i)
		}
		fc[i] = math.Max(v, 0)
	}
	return fc, nil
}

func (a *ARIMA) String() string {
	if a.order == "" {
		return "arima(unfitted)"
	}
	return fmt.Sprintf("arima%s aicc=%.2f", a.order, a.aicc)
}
