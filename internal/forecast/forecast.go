package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/redistribute"
	"github.com/AngelCh415/adforecast/internal/store"
)

// Forecast fits ARIMA on all daily clicks and a Poisson weekly model on all
// full weeks, then forecasts cfg.Horizon days past the last record. Daily
// conversions are the weekly predictions redistributed by forecast clicks.
func Forecast(ctx context.Context, recs []models.DailyRecord, cfg Config) (models.Forecast, error) {
	if cfg.Horizon <= 0 {
		return models.Forecast{}, fmt.Errorf("forecast: horizon must be positive, got %d", cfg.Horizon)
	}
	recs = store.Contiguous(recs, math.NaN())
	if len(recs) < 3*redistribute.DaysPerBucket {
		return models.Forecast{}, fmt.Errorf("%w: %d days", ErrNotEnoughData, len(recs))
	}

	clicks, _ := store.Series(recs, models.FieldClicks)
	a := NewARIMA()
	if err := a.Fit(clicks); err != nil {
		return models.Forecast{}, err
	}
	if err := ctx.Err(); err != nil {
		return models.Forecast{}, err
	}
	fc, err := a.Forecast(cfg.Horizon)
	if err != nil {
		return models.Forecast{}, err
	}

	x, y := fullWeeks(AggregateWeekly(recs))
	pm, err := FitPoisson(x, y)
	if err != nil {
		return models.Forecast{}, err
	}
	conv, err := redistribute.Redistribute(pm, fc, cfg.Options)
	if err != nil {
		return models.Forecast{}, err
	}

	last := recs[len(recs)-1].Date
	out := models.Forecast{
		GeneratedAt: time.Now().UTC(),
		ClicksModel: a.String(),
		ConvModel:   pm.String(),
		Points:      make([]models.ForecastPoint, cfg.Horizon),
	}
	for i := range out.Points {
		out.Points[i] = models.ForecastPoint{
			Date:        last.AddDate(0, 0, i+1).Format("2006-01-02"),
			Clicks:      fc[i],
			Conversions: conv[i],
		}
	}
	return out, nil
}
