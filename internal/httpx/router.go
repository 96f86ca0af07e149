package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AngelCh415/adforecast/internal/analysis"
	"github.com/AngelCh415/adforecast/internal/forecast"
	"github.com/AngelCh415/adforecast/internal/ingest"
	"github.com/AngelCh415/adforecast/internal/metrics"
	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/redistribute"
	"github.com/AngelCh415/adforecast/internal/store"
	"github.com/AngelCh415/adforecast/internal/utils"
)

type Deps struct {
	ETL       *ingest.ETL
	Store     *store.MemoryStore
	Metrics   *metrics.Service
	Forecasts *forecast.Service

	Collectors *metrics.Collectors
	Gatherer   prometheus.Gatherer

	RateLimitPerSec float64
	RateLimitBurst  int
}

func NewRouter(log *slog.Logger, d Deps) http.Handler {
	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if d.Store.Len() == 0 {
			http.Error(w, "no data loaded", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(200)
		w.Write([]byte("ready"))
	})
	if d.Gatherer != nil {
		mux.Handle("/metrics/prom", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	mux.Post("/ingest/run", func(w http.ResponseWriter, r *http.Request) {
		var since *time.Time
		if q := r.URL.Query().Get("since"); q != "" {
			t, err := time.Parse("2006-01-02", q)
			if err != nil {
				http.Error(w, "bad since (YYYY-MM-DD)", 400)
				return
			}
			since = &t
		}
		n, err := d.ETL.Run(r.Context(), r.URL.Query().Get("source"), since)
		if err != nil {
			writeError(w, err)
			return
		}
		if d.Collectors != nil {
			d.Collectors.StoredDays.Set(float64(d.Store.Len()))
		}
		writeJSON(w, map[string]any{"upserted": n, "days": d.Store.Len(), "gaps": len(d.Store.Gaps())})
	})

	mux.Get("/metrics/daily", func(w http.ResponseWriter, r *http.Request) {
		rows, err := d.Metrics.QueryDaily(r.URL.Query())
		if err != nil {
			code := http.StatusInternalServerError
			if metrics.IsBadParam(err) {
				code = http.StatusBadRequest
			}
			http.Error(w, err.Error(), code)
			return
		}
		writeJSON(w, rows)
	})

	mux.Route("/analysis", func(ar chi.Router) {
		ar.Get("/summary", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, analysis.Describe(d.Store.All()))
		})
		ar.Get("/correlation", func(w http.ResponseWriter, r *http.Request) {
			m, err := analysis.Correlate(d.Store.All(), csvList(r.URL.Query().Get("fields")))
			if err != nil {
				http.Error(w, err.Error(), 400)
				return
			}
			if r.URL.Query().Get("reorder") != "false" {
				m = m.Reorder()
			}
			writeJSON(w, m)
		})
		ar.Get("/tests", func(w http.ResponseWriter, r *http.Request) {
			alpha := 0.05
			if q := r.URL.Query().Get("alpha"); q != "" {
				a, err := strconv.ParseFloat(q, 64)
				if err != nil || a <= 0 || a >= 1 {
					http.Error(w, "alpha must be in (0, 1)", 400)
					return
				}
				alpha = a
			}
			recs := d.Store.All()
			clicks, _ := store.Series(recs, models.FieldClicks)
			conv, _ := store.Series(recs, models.FieldConversions)
			out := map[string]any{"alpha": alpha}
			add := func(key string, res analysis.TestResult, err error) {
				if err != nil {
					out[key+"_error"] = err.Error()
					return
				}
				out[key] = testOutcome{TestResult: res, Significant: res.Significant(alpha)}
			}
			res, err := analysis.CorrelationTest(clicks, conv)
			add("clicks_conversions", res, err)
			for _, f := range []string{models.FieldClicks, models.FieldConversions} {
				res, err := analysis.WeekdayEffect(recs, f)
				add("weekday_"+f, res, err)
			}
			writeJSON(w, out)
		})
		ar.Get("/decompose", func(w http.ResponseWriter, r *http.Request) {
			field := r.URL.Query().Get("field")
			if field == "" {
				field = models.FieldClicks
			}
			recs := store.Contiguous(d.Store.All(), math.NaN())
			xs, ok := store.Series(recs, field)
			if !ok {
				http.Error(w, "unknown field", 400)
				return
			}
			method := r.URL.Query().Get("method")
			switch method {
			case "", analysis.MethodSTL, analysis.MethodClassical:
			default:
				http.Error(w, "method must be stl or classical", 400)
				return
			}
			dec, err := analysis.DecomposeWith(method, forecast.Interpolate(xs), redistribute.DaysPerBucket)
			if err != nil {
				http.Error(w, err.Error(), 422)
				return
			}
			writeJSON(w, map[string]any{"field": field, "decomposition": dec, "weekday_index": dec.WeekdayIndex(recs[0].Date)})
		})
	})

	mux.Group(func(fr chi.Router) {
		fr.Use(utils.RateLimit(d.RateLimitPerSec, d.RateLimitBurst))

		fr.Get("/forecast", func(w http.ResponseWriter, r *http.Request) {
			h, _ := strconv.Atoi(r.URL.Query().Get("horizon"))
			f, err := d.Forecasts.Forecast(r.Context(), h)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, f)
		})

		fr.Get("/forecast/compare", func(w http.ResponseWriter, r *http.Request) {
			cmp, err := d.Forecasts.Compare(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, cmp)
		})

		fr.Post("/forecast/redistribute", func(w http.ResponseWriter, r *http.Request) {
			var req redistributeRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad json: "+err.Error(), 400)
				return
			}
			m, opts, clicks, err := req.build()
			if err != nil {
				http.Error(w, err.Error(), 400)
				return
			}
			out, err := d.Forecasts.Redistribute(m, clicks, opts)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, map[string]any{"daily_conversions": out})
		})

		fr.Post("/export/run", func(w http.ResponseWriter, r *http.Request) {
			h, _ := strconv.Atoi(r.URL.Query().Get("horizon"))
			f, err := d.Forecasts.Forecast(r.Context(), h)
			if err != nil {
				writeError(w, err)
				return
			}
			n, err := d.ETL.ExportForecast(r.Context(), f)
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, map[string]any{"exported": n})
		})
	})

	return mux
}

type testOutcome struct {
	analysis.TestResult
	Significant bool `json:"significant"`
}

type redistributeRequest struct {
	DailyClicks []*float64 `json:"daily_clicks"`
	Model       struct {
		Kind      string  `json:"kind"`
		Intercept float64 `json:"intercept"`
		Slope     float64 `json:"slope"`
	} `json:"model"`
	Missing    string `json:"missing"`
	ZeroBucket string `json:"zero_bucket"`
}

func (req redistributeRequest) build() (redistribute.Model, redistribute.Options, []float64, error) {
	var (
		opts redistribute.Options
		err  error
		m    redistribute.Model
	)
	switch req.Model.Kind {
	case "", "linear":
		m = &forecast.Linear{Intercept: req.Model.Intercept, Slope: req.Model.Slope}
	case "poisson":
		m = &forecast.Poisson{Intercept: req.Model.Intercept, Slope: req.Model.Slope}
	default:
		return nil, opts, nil, errors.New("model.kind must be linear or poisson")
	}
	if opts.Missing, err = redistribute.ParseMissingPolicy(req.Missing); err != nil {
		return nil, opts, nil, err
	}
	if opts.ZeroBucket, err = redistribute.ParseZeroBucketPolicy(req.ZeroBucket); err != nil {
		return nil, opts, nil, err
	}
	clicks := make([]float64, len(req.DailyClicks))
	for i, c := range req.DailyClicks {
		clicks[i] = math.NaN()
		if c != nil {
			clicks[i] = *c
		}
	}
	return m, opts, clicks, nil
}

func writeError(w http.ResponseWriter, err error) {
	var mie *redistribute.ModelInvocationError
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, redistribute.ErrInputShape), errors.Is(err, ingest.ErrSourceNotConfigured):
		code = http.StatusBadRequest
	case errors.Is(err, redistribute.ErrDegenerateBucket), errors.Is(err, forecast.ErrNotEnoughData),
		errors.Is(err, forecast.ErrDegenerateData):
		code = http.StatusUnprocessableEntity
	case errors.As(err, &mie):
		code = http.StatusBadGateway
	default:
		var se *ingest.StatusError
		if errors.As(err, &se) {
			code = http.StatusBadGateway
		}
	}
	http.Error(w, err.Error(), code)
}

func csvList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// writeJSON encodes v before writing so an unencodable value becomes a 500
// instead of a 200 with an empty body.
func writeJSON(w http.ResponseWriter, v any) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", " ")
	if err := enc.Encode(v); err != nil {
		slog.Error("encode response", slog.String("err", err.Error()))
		http.Error(w, "encode response: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(buf.Bytes())
}
