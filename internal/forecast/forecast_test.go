package forecast

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/redistribute"
)

// synthetic returns n days with a weekly click pattern and conversions
// roughly proportional to clicks.
func synthetic(n int) []models.DailyRecord {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	weekday := []float64{120, 130, 125, 128, 110, 70, 60}
	out := make([]models.DailyRecord, n)
	for i := range out {
		c := weekday[i%7] + float64(i%5)*3 + float64(i)/10
		out[i] = models.DailyRecord{
			Date:        start.AddDate(0, 0, i),
			Clicks:      c,
			Impressions: int(c * 20),
			Conversions: int(c / 20),
			Cost:        c * 0.8,
		}
	}
	return out
}

func TestFitPoissonRecoversCoefficients(t *testing.T) {
	x := []float64{100, 200, 300, 400, 500, 600, 700, 800}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = math.Exp(0.5 + 0.003*v)
	}
	p, err := FitPoisson(x, y)
	require.NoError(t, err)
	assert.True(t, p.Converged)
	assert.InDelta(t, 0.5, p.Intercept, 1e-5)
	assert.InDelta(t, 0.003, p.Slope, 1e-7)
	assert.InDelta(t, 0, p.Deviance, 1e-6)

	got, err := p.Predict(1000)
	require.NoError(t, err)
	assert.InDelta(t, math.Exp(3.5), got, 1e-3)
}

func TestFitPoissonHandlesZeroCounts(t *testing.T) {
	p, err := FitPoisson([]float64{10, 20, 30, 40, 50}, []float64{0, 1, 0, 2, 3})
	require.NoError(t, err)
	assert.Greater(t, p.Slope, 0.0)
	assert.Less(t, p.Deviance, p.NullDev)
}

func TestFitPoissonRejectsBadInput(t *testing.T) {
	_, err := FitPoisson([]float64{1, 2}, []float64{1, 2})
	require.ErrorIs(t, err, ErrNotEnoughData)

	_, err = FitPoisson([]float64{5, 5, 5}, []float64{1, 2, 3})
	require.ErrorIs(t, err, ErrDegenerateData)

	_, err = FitPoisson([]float64{1, 2, 3}, []float64{1, -2, 3})
	require.Error(t, err)
}

func TestFitLinear(t *testing.T) {
	l, err := FitLinear([]float64{0, 10, 20, 30}, []float64{-1, 1, 3, 5})
	require.NoError(t, err)
	assert.InDelta(t, -1, l.Intercept, 1e-9)
	assert.InDelta(t, 0.2, l.Slope, 1e-9)
	assert.InDelta(t, 1, l.R2, 1e-9)

	v, _ := l.Predict(0)
	assert.Less(t, v, 0.0)
}

func TestLinearNegativePredictionClampedByRedistribute(t *testing.T) {
	l := &Linear{Intercept: -10, Slope: 0.01}
	out, err := redistribute.Redistribute(l, []float64{10, 10, 10, 10, 10, 10, 10}, redistribute.Options{})
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 7), out)
}

func TestMovingAverageSelectsWindow(t *testing.T) {
	xs := []float64{0, 10, 0, 10, 0, 10, 0, 10, 0, 10}
	m, err := FitMovingAverage(xs, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Window)
	assert.InDelta(t, 5, m.RMSE, 1e-9)
	assert.Equal(t, []float64{5, 5, 5}, m.Forecast(3))

	m, err = FitMovingAverage([]float64{1, 2, 3, 4, 5, 6}, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Window)
	assert.Equal(t, []float64{6}, m.Forecast(1))

	_, err = FitMovingAverage([]float64{1}, 3)
	require.ErrorIs(t, err, ErrNotEnoughData)
}

func TestInterpolate(t *testing.T) {
	nan := math.NaN()
	assert.Equal(t, []float64{2, 2, 4, 6, 8, 8}, Interpolate([]float64{nan, 2, nan, nan, 8, nan}))
	assert.Equal(t, []float64{0, 0}, Interpolate([]float64{nan, nan}))
}

func TestAccuracy(t *testing.T) {
	assert.InDelta(t, 2.5, RMSE([]float64{1, 2, 3, 4}, []float64{1, 2, 8, 4, 99}), 1e-9)
	assert.InDelta(t, 1.25, MAE([]float64{1, 2, 3, 4}, []float64{1, 2, 8, 4}), 1e-9)
	assert.True(t, math.IsNaN(RMSE(nil, nil)))

	nan := math.NaN()
	assert.InDelta(t, math.Sqrt(4.5), RMSE([]float64{1, nan, 3}, []float64{4, 100, 3}), 1e-9)
	assert.InDelta(t, 1.5, MAE([]float64{1, nan, 3}, []float64{4, 100, 3}), 1e-9)
	assert.True(t, math.IsNaN(MAE([]float64{nan}, []float64{1})))
}

func TestAggregateWeekly(t *testing.T) {
	recs := synthetic(10)
	recs[3].Clicks = math.NaN()
	weeks := AggregateWeekly(recs)
	require.Len(t, weeks, 2)
	assert.Equal(t, 7, weeks[0].Days)
	assert.Equal(t, 3, weeks[1].Days)

	var want float64
	for i := 0; i < 7; i++ {
		if i != 3 {
			want += recs[i].Clicks
		}
	}
	assert.InDelta(t, want, weeks[0].Clicks, 1e-9)

	x, _ := fullWeeks(weeks)
	assert.Len(t, x, 1)
}

func TestCompareScoresAllCandidates(t *testing.T) {
	cfg := DefaultConfig()
	cmp, err := Compare(context.Background(), synthetic(91), cfg)
	require.NoError(t, err)
	assert.Equal(t, 63, cmp.TrainDays)
	assert.Equal(t, 28, cmp.TestDays)
	require.Len(t, cmp.Scores, 5)

	names := map[string]bool{}
	for i, s := range cmp.Scores {
		names[s.Name] = true
		if s.Err == "" {
			assert.Len(t, s.Predicted, 28)
			if i > 0 && cmp.Scores[i-1].Err == "" {
				assert.LessOrEqual(t, cmp.Scores[i-1].RMSE, s.RMSE)
			}
		}
	}
	for _, n := range []string{"arima+poisson", "arima+ols", "actual-clicks+poisson", "sma", "naive"} {
		assert.True(t, names[n], n)
	}
}

func TestCompareSkipsGapDays(t *testing.T) {
	recs := synthetic(91)
	gap := recs[80].Date
	recs = append(recs[:80], recs[81:]...)

	cmp, err := Compare(context.Background(), recs, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 28, cmp.TestDays)
	assert.Equal(t, 27, cmp.ScoredDays)
	require.Len(t, cmp.Actual, 28)
	idx := int(gap.Sub(recs[0].Date).Hours()/24) - cmp.TrainDays
	assert.Nil(t, cmp.Actual[idx])
	require.NotNil(t, cmp.Actual[idx+1])
	assert.Equal(t, float64(recs[80].Conversions), *cmp.Actual[idx+1])
}

func TestCompareNeedsHistory(t *testing.T) {
	_, err := Compare(context.Background(), synthetic(30), DefaultConfig())
	require.ErrorIs(t, err, ErrNotEnoughData)
}

func TestCompareHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Compare(ctx, synthetic(91), DefaultConfig())
	require.ErrorIs(t, err, context.Canceled)
}

func TestForecastHorizon(t *testing.T) {
	recs := synthetic(84)
	cfg := DefaultConfig()
	cfg.Horizon = 10

	f, err := Forecast(context.Background(), recs, cfg)
	require.NoError(t, err)
	require.Len(t, f.Points, 10)
	assert.Equal(t, recs[83].Date.AddDate(0, 0, 1).Format("2006-01-02"), f.Points[0].Date)
	for _, p := range f.Points {
		assert.GreaterOrEqual(t, p.Clicks, 0.0)
		assert.GreaterOrEqual(t, p.Conversions, 0.0)
	}

	_, err = Forecast(context.Background(), recs, Config{})
	require.Error(t, err)
}
