package forecast

import (
	"fmt"
	"math"

	"github.com/sartorproj/goarima/timeseries"
)

// MovingAverage is a simple moving-average smoother whose window is chosen by
// minimising the in-sample one-step-ahead RMSE.
type MovingAverage struct {
	Window int
	RMSE   float64
	level  float64
}

// FitMovingAverage tries windows 1..maxWindow on series (NaNs interpolated).
func FitMovingAverage(series []float64, maxWindow int) (*MovingAverage, error) {
	xs := Interpolate(series)
	if maxWindow < 1 {
		maxWindow = 1
	}
	if maxWindow > len(xs)-1 {
		maxWindow = len(xs) - 1
	}
	if maxWindow < 1 {
		return nil, fmt.Errorf("%w: moving average needs 2 observations, got %d", ErrNotEnoughData, len(xs))
	}

	ts := &timeseries.Series{Values: xs}
	best := &MovingAverage{RMSE: math.Inf(1)}
	for k := 1; k <= maxWindow; k++ {
		// ma[j] averages xs[j:j+k], so it is the one-step prediction of xs[j+k].
		// Every window is scored on xs[maxWindow:] so RMSEs are comparable.
		ma := ts.MovingAverage(k).Values
		pred := ma[maxWindow-k : len(xs)-k]
		if e := RMSE(xs[maxWindow:], pred); e < best.RMSE {
			best.Window, best.RMSE, best.level = k, e, ma[len(ma)-1]
		}
	}
	return best, nil
}

// Forecast is flat at the mean of the last Window observations.
func (m *MovingAverage) Forecast(h int) []float64 {
	out := make([]float64, h)
	for i := range out {
		out[i] = m.level
	}
	return out
}

func (m *MovingAverage) String() string { return fmt.Sprintf("sma(%d)", m.Window) }
