package ingest

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/AngelCh415/adforecast/internal/config"
	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/store"
)

var ErrSourceNotConfigured = errors.New("source not configured")

// DailySource is a warehouse that can return daily rows, e.g. store.PostgresSource.
type DailySource interface {
	LoadDaily(ctx context.Context, from, to time.Time) ([]models.DailyRecord, error)
}

type ETL struct {
	c   HTTPClient
	st  *store.MemoryStore
	db  DailySource
	log *slog.Logger
	cfg config.Config
}

func NewETL(c HTTPClient, st *store.MemoryStore, db DailySource, log *slog.Logger, cfg config.Config) *ETL {
	return &ETL{c: c, st: st, db: db, log: log, cfg: cfg}
}

type dailyResp []struct {
	Date            string   `json:"date"`
	Impressions     int      `json:"impressions"`
	Clicks          *float64 `json:"clicks"`
	Conversions     int      `json:"conversions"`
	Cost            float64  `json:"cost"`
	ConversionValue float64  `json:"total_conversion_value"`
	AvgPosition     float64  `json:"average_position"`
}

// Run loads from the named source ("file", "url" or "postgres"; empty picks the
// first configured one) and returns the number of days inserted or replaced.
func (e *ETL) Run(ctx context.Context, source string, since *time.Time) (int, error) {
	if source == "" {
		switch {
		case e.cfg.DatasetPath != "":
			source = "file"
		case e.cfg.DatasetURL != "":
			source = "url"
		case e.db != nil:
			source = "postgres"
		}
	}

	var (
		recs []models.DailyRecord
		err  error
	)
	switch source {
	case "file":
		if e.cfg.DatasetPath == "" {
			return 0, fmt.Errorf("%w: dataset_path", ErrSourceNotConfigured)
		}
		recs, err = LoadCSVFile(e.cfg.DatasetPath)
	case "url":
		recs, err = e.fetchURL(ctx)
	case "postgres":
		if e.db == nil {
			return 0, fmt.Errorf("%w: database_url", ErrSourceNotConfigured)
		}
		var from time.Time
		if since != nil {
			from = *since
		}
		recs, err = e.db.LoadDaily(ctx, from, time.Time{})
	default:
		return 0, fmt.Errorf("%w: %q", ErrSourceNotConfigured, source)
	}
	if err != nil {
		return 0, fmt.Errorf("ingest %s: %w", source, err)
	}

	n := e.Load(recs, since)
	e.log.Info("ingest complete",
		slog.String("source", source),
		slog.Int("rows", len(recs)),
		slog.Int("upserted", n),
		slog.Int("days", e.st.Len()),
		slog.Int("gaps", len(e.st.Gaps())))
	return n, nil
}

// Load upserts recs dated on or after since into the store.
func (e *ETL) Load(recs []models.DailyRecord, since *time.Time) int {
	n := 0
	for _, r := range recs {
		if since != nil && dayUTC(r.Date).Before(dayUTC(*since)) {
			continue
		}
		e.st.Upsert(r)
		n++
	}
	return n
}

func (e *ETL) fetchURL(ctx context.Context) ([]models.DailyRecord, error) {
	if e.cfg.DatasetURL == "" {
		return nil, fmt.Errorf("%w: dataset_url", ErrSourceNotConfigured)
	}
	var resp dailyResp
	if err := GetJSONWithRetry(ctx, e.c, e.cfg.DatasetURL, &resp); err != nil {
		return nil, err
	}
	out := make([]models.DailyRecord, 0, len(resp))
	for _, r := range resp {
		d, err := parseDate(strings.TrimSpace(r.Date))
		if err != nil {
			e.log.Warn("skipping row", slog.String("date", r.Date), slog.String("err", err.Error()))
			continue
		}
		rec := models.DailyRecord{
			Date:            d,
			Impressions:     max0(r.Impressions),
			Clicks:          math.NaN(),
			Conversions:     max0(r.Conversions),
			Cost:            maxf(r.Cost),
			ConversionValue: maxf(r.ConversionValue),
			AvgPosition:     maxf(r.AvgPosition),
		}
		if r.Clicks != nil {
			rec.Clicks = maxf(*r.Clicks)
		}
		out = append(out, rec)
	}
	return out, nil
}

// ExportForecast POSTs f to the sink with an HMAC-SHA256 signature of the body
// in X-Signature.
func (e *ETL) ExportForecast(ctx context.Context, f models.Forecast) (int, error) {
	if e.cfg.SinkURL == "" || e.cfg.SinkSecret == "" {
		return 0, fmt.Errorf("%w: sink", ErrSourceNotConfigured)
	}
	if len(f.Points) == 0 {
		return 0, nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.SinkURL, bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", Sign(e.cfg.SinkSecret, b))
	resp, err := e.c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("export sink: %w", &StatusError{Code: resp.StatusCode})
	}
	e.log.Info("forecast exported", slog.Int("points", len(f.Points)))
	return len(f.Points), nil
}

func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func dayUTC(t time.Time) time.Time { return store.Day(t) }

func max0(i int) int {
	if i < 0 {
		return 0
	}
	return i
}

func maxf(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
