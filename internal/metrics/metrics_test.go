package metrics

import (
	"errors"
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/store"
)

func seeded() *store.MemoryStore {
	st := store.NewMemoryStore()
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		st.Upsert(models.DailyRecord{
			Date:            start.AddDate(0, 0, i),
			Impressions:     1000,
			Clicks:          float64(10 * i),
			Conversions:     i,
			Cost:            50,
			ConversionValue: 100,
		})
	}
	return st
}

func TestDerivedMetricsSafeDiv(t *testing.T) {
	rows := ToMetrics([]models.DailyRecord{{Clicks: 0, Impressions: 0, Cost: 100}, {Clicks: math.NaN(), Cost: 0}})
	require.Len(t, rows, 2)
	assert.Equal(t, 0.0, rows[0].CPC)
	assert.Equal(t, 0.0, rows[0].CTR)
	assert.Equal(t, 0.0, rows[0].CPA)
	assert.Equal(t, 0.0, rows[1].Clicks)
	assert.Equal(t, 0.0, rows[1].ROAS)
}

func TestDerivedMetrics(t *testing.T) {
	rows := ToMetrics([]models.DailyRecord{{Impressions: 1000, Clicks: 40, Conversions: 4, Cost: 50, ConversionValue: 125}})
	m := rows[0]
	assert.Equal(t, 0.04, m.CTR)
	assert.Equal(t, 1.25, m.CPC)
	assert.Equal(t, 0.1, m.CVR)
	assert.Equal(t, 12.5, m.CPA)
	assert.Equal(t, 2.5, m.ROAS)
}

func TestQueryDailyFiltersAndPaginates(t *testing.T) {
	svc := NewService(seeded())

	rows, err := svc.QueryDaily(url.Values{"from": {"2024-05-03"}, "to": {"2024-05-08"}, "limit": {"2"}, "offset": {"1"}})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-05-04", rows[0].Date)

	rows, err = svc.QueryDaily(url.Values{"min_clicks": {"75"}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = svc.QueryDaily(url.Values{"offset": {"50"}})
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, err = svc.QueryDaily(url.Values{"from": {"May 1"}})
	require.Error(t, err)
	assert.True(t, IsBadParam(err))
}

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollectors(reg)
	c.Observe("forecast", time.Now(), nil)
	c.Observe("forecast", time.Now(), errors.New("x"))
	c.CacheResult(true)
	c.CacheResult(false)
	c.CacheResult(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Runs.WithLabelValues("forecast", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheLookup.WithLabelValues("miss")))
}
