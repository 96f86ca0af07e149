package forecast

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/adforecast/internal/cache"
	"github.com/AngelCh415/adforecast/internal/metrics"
	"github.com/AngelCh415/adforecast/internal/redistribute"
	"github.com/AngelCh415/adforecast/internal/store"
)

func newService(t *testing.T, days int) (*Service, *metrics.Collectors, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	for _, r := range synthetic(days) {
		st.Upsert(r)
	}
	c, err := cache.NewLRU(16, time.Minute)
	require.NoError(t, err)
	col := metrics.NewCollectors(prometheus.NewRegistry())
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(st, c, col, DefaultConfig(), log), col, st
}

func TestServiceForecastIsCachedPerDatasetVersion(t *testing.T) {
	svc, col, st := newService(t, 84)
	ctx := context.Background()

	first, err := svc.Forecast(ctx, 7)
	require.NoError(t, err)
	second, err := svc.Forecast(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, first.Points, second.Points)
	assert.Equal(t, 1.0, testutil.ToFloat64(col.CacheLookup.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(col.Runs.WithLabelValues("forecast", "ok")))

	r := synthetic(85)[84]
	st.Upsert(r)
	third, err := svc.Forecast(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, r.Date.AddDate(0, 0, 1).Format("2006-01-02"), third.Points[0].Date)
	assert.Equal(t, 2.0, testutil.ToFloat64(col.Runs.WithLabelValues("forecast", "ok")))
}

func TestServiceRedistributeCountsErrors(t *testing.T) {
	svc, col, _ := newService(t, 0)
	_, err := svc.Redistribute(&Linear{Slope: 1}, nil, redistribute.Options{})
	require.ErrorIs(t, err, redistribute.ErrInputShape)
	assert.Equal(t, 1.0, testutil.ToFloat64(col.Runs.WithLabelValues("redistribute", "error")))
}

func TestServiceCompareSetsGauges(t *testing.T) {
	svc, col, _ := newService(t, 91)
	cmp, err := svc.Compare(context.Background())
	require.NoError(t, err)
	for _, s := range cmp.Scores {
		if s.Name == "naive" {
			assert.InDelta(t, s.RMSE, testutil.ToFloat64(col.ModelRMSE.WithLabelValues("naive")), 1e-9)
		}
	}
}
