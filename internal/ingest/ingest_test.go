package ingest

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/adforecast/internal/config"
	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/store"
)

const sampleCSV = `Day,Impressions,Clicks,Conversions,Cost,Total conversion value,Avg. position
2024-01-02,"1,200",40,3,$52.10,310.5,1.8
2024-01-01,1000,35,2,45.00,200,1.9
2024-01-03,900,,1,30,90,2.1
`

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// fetchURL does the request and returns the HTTP status or the transport error.
func fetchURL(c HTTPClient, url string) (int, error) {
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

func TestHTTPClientHandles500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer srv.Close()

	code, err := fetchURL(NewHTTPClient(2*time.Second), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestHTTPClientHandlesTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := fetchURL(NewHTTPClient(50*time.Millisecond), srv.URL)
	assert.Error(t, err)
}

func TestParseCSV(t *testing.T) {
	recs, err := ParseCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "2024-01-01", recs[0].Date.Format("2006-01-02"))
	assert.Equal(t, 1200, recs[1].Impressions)
	assert.Equal(t, 52.10, recs[1].Cost)
	assert.Equal(t, 310.5, recs[1].ConversionValue)
	assert.Equal(t, 1.8, recs[1].AvgPosition)
	assert.True(t, recs[2].ClicksMissing())
	assert.Equal(t, 1, recs[2].Conversions)
}

func TestParseCSVRequiresColumns(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("date,impressions\n2024-01-01,3\n"))
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestParseCSVBadNumber(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("date,clicks,conversions\n2024-01-01,abc,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestRunFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daily.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	st := store.NewMemoryStore()
	etl := NewETL(NewHTTPClient(time.Second), st, nil, quietLogger(), config.Config{DatasetPath: path})

	since, _ := time.Parse("2006-01-02", "2024-01-02")
	n, err := etl.Run(context.Background(), "", &since)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, st.Len())
}

func TestRunFromURLRetries5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[{"date":"2024-02-01","clicks":12,"conversions":1},{"date":"2024-02-02","conversions":0},{"date":"bad"}]`))
	}))
	defer srv.Close()

	st := store.NewMemoryStore()
	etl := NewETL(NewHTTPClient(time.Second), st, nil, quietLogger(), config.Config{DatasetURL: srv.URL})
	n, err := etl.Run(context.Background(), "url", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(2), calls.Load())

	all := st.All()
	assert.Equal(t, 12.0, all[0].Clicks)
	assert.True(t, all[1].ClicksMissing())
}

func TestRunURL404IsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	etl := NewETL(NewHTTPClient(time.Second), store.NewMemoryStore(), nil, quietLogger(), config.Config{DatasetURL: srv.URL})
	_, err := etl.Run(context.Background(), "url", nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

type fakeSource struct{ recs []models.DailyRecord }

func (f fakeSource) LoadDaily(context.Context, time.Time, time.Time) ([]models.DailyRecord, error) {
	return f.recs, nil
}

func TestRunFromPostgresSource(t *testing.T) {
	d, _ := time.Parse("2006-01-02", "2024-03-01")
	st := store.NewMemoryStore()
	etl := NewETL(nil, st, fakeSource{recs: []models.DailyRecord{{Date: d, Clicks: 4}}}, quietLogger(), config.Config{})
	n, err := etl.Run(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = NewETL(nil, st, nil, quietLogger(), config.Config{}).Run(context.Background(), "postgres", nil)
	require.ErrorIs(t, err, ErrSourceNotConfigured)
}

func TestExportForecastSignsBody(t *testing.T) {
	var gotSig string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cfg := config.Config{SinkURL: srv.URL, SinkSecret: "s3cret"}
	etl := NewETL(NewHTTPClient(time.Second), store.NewMemoryStore(), nil, quietLogger(), cfg)
	f := models.Forecast{Points: []models.ForecastPoint{{Date: "2024-01-01", Clicks: 10, Conversions: 1}}}

	n, err := etl.ExportForecast(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, Sign("s3cret", body), gotSig)

	var decoded models.Forecast
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Len(t, decoded.Points, 1)
}

func TestExportForecastRequiresSink(t *testing.T) {
	etl := NewETL(nil, store.NewMemoryStore(), nil, quietLogger(), config.Config{})
	_, err := etl.ExportForecast(context.Background(), models.Forecast{})
	require.ErrorIs(t, err, ErrSourceNotConfigured)
}

func TestStatusErrorTemporary(t *testing.T) {
	assert.True(t, (&StatusError{Code: 503}).Temporary())
	assert.True(t, (&StatusError{Code: 429}).Temporary())
	assert.False(t, (&StatusError{Code: 404}).Temporary())
}
