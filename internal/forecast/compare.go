package forecast

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/redistribute"
	"github.com/AngelCh415/adforecast/internal/store"
)

type Config struct {
	Horizon      int
	TestDays     int
	MaxSMAWindow int
	Options      redistribute.Options
}

func DefaultConfig() Config {
	return Config{Horizon: 14, TestDays: 28, MaxSMAWindow: 14}
}

// candidate produces conversion predictions for the test days from the
// training days.
type candidate struct {
	name string
	run  func(train, test []models.DailyRecord) ([]float64, string, error)
}

func (c Config) candidates() []candidate {
	return []candidate{
		{"arima+poisson", func(train, test []models.DailyRecord) ([]float64, string, error) {
			return c.clicksThenWeekly(train, len(test), fitPoissonWeekly)
		}},
		{"arima+ols", func(train, test []models.DailyRecord) ([]float64, string, error) {
			return c.clicksThenWeekly(train, len(test), fitLinearWeekly)
		}},
		{"actual-clicks+poisson", func(train, test []models.DailyRecord) ([]float64, string, error) {
			m, err := fitPoissonWeekly(train)
			if err != nil {
				return nil, "", err
			}
			clicks, _ := store.Series(test, models.FieldClicks)
			pred, err := redistribute.Redistribute(m, clicks, c.Options)
			return pred, fmt.Sprint(m), err
		}},
		{"sma", func(train, test []models.DailyRecord) ([]float64, string, error) {
			conv, _ := store.Series(train, models.FieldConversions)
			m, err := FitMovingAverage(conv, c.MaxSMAWindow)
			if err != nil {
				return nil, "", err
			}
			return m.Forecast(len(test)), m.String(), nil
		}},
		{"naive", func(train, test []models.DailyRecord) ([]float64, string, error) {
			last := float64(train[len(train)-1].Conversions)
			out := make([]float64, len(test))
			for i := range out {
				out[i] = last
			}
			return out, "last value", nil
		}},
	}
}

// Compare holds out the last TestDays days, fits every candidate on the rest
// in parallel and returns their scores on daily conversions, best RMSE first.
// A failing candidate is reported with Err set and sorted last, not returned
// as an error.
func Compare(ctx context.Context, recs []models.DailyRecord, cfg Config) (models.Comparison, error) {
	present := make(map[time.Time]bool, len(recs))
	for _, r := range recs {
		present[store.Day(r.Date)] = true
	}
	recs = store.Contiguous(recs, math.NaN())
	if cfg.TestDays <= 0 || len(recs)-cfg.TestDays < 3*redistribute.DaysPerBucket {
		return models.Comparison{}, fmt.Errorf("%w: %d days with %d held out", ErrNotEnoughData, len(recs), cfg.TestDays)
	}
	split := len(recs) - cfg.TestDays
	train, test := recs[:split], recs[split:]
	// gap days filled by Contiguous have no observed conversions
	actual, _ := store.Series(test, models.FieldConversions)
	shown := make([]*float64, len(actual))
	scored := 0
	for i, r := range test {
		if !present[store.Day(r.Date)] {
			actual[i] = math.NaN()
			continue
		}
		shown[i] = &actual[i]
		scored++
	}
	if scored == 0 {
		return models.Comparison{}, fmt.Errorf("%w: no observed days among the last %d", ErrNotEnoughData, len(test))
	}

	cands := cfg.candidates()
	scores := make([]models.ModelScore, len(cands))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range cands {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s := models.ModelScore{Name: c.name}
			pred, detail, err := c.run(train, test)
			switch {
			case err != nil:
				s.Err = err.Error()
			default:
				s.Detail, s.Predicted = detail, pred
				s.RMSE, s.MAE = RMSE(actual, pred), MAE(actual, pred)
			}
			scores[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.Comparison{}, err
	}

	sort.SliceStable(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if (a.Err == "") != (b.Err == "") {
			return a.Err == ""
		}
		return a.RMSE < b.RMSE
	})
	return models.Comparison{TrainDays: len(train), TestDays: len(test), Actual: shown, ScoredDays: scored, Scores: scores}, nil
}

func (c Config) clicksThenWeekly(train []models.DailyRecord, h int, fit func([]models.DailyRecord) (redistribute.Model, error)) ([]float64, string, error) {
	clicks, _ := store.Series(train, models.FieldClicks)
	a := NewARIMA()
	if err := a.Fit(clicks); err != nil {
		return nil, "", err
	}
	fc, err := a.Forecast(h)
	if err != nil {
		return nil, "", err
	}
	m, err := fit(train)
	if err != nil {
		return nil, "", err
	}
	pred, err := redistribute.Redistribute(m, fc, c.Options)
	if err != nil {
		return nil, "", err
	}
	return pred, fmt.Sprintf("%s, %s", a, m), nil
}

func fitPoissonWeekly(recs []models.DailyRecord) (redistribute.Model, error) {
	x, y := fullWeeks(AggregateWeekly(recs))
	return FitPoisson(x, y)
}

func fitLinearWeekly(recs []models.DailyRecord) (redistribute.Model, error) {
	x, y := fullWeeks(AggregateWeekly(recs))
	return FitLinear(x, y)
}
