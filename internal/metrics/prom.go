package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collectors are the service's Prometheus metrics. They are registered on
// the given registry rather than the global one so tests can build many.
type Collectors struct {
	Runs        *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	ModelRMSE   *prometheus.GaugeVec
	CacheLookup *prometheus.CounterVec
	StoredDays  prometheus.Gauge
}

func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adforecast_runs_total",
			Help: "Forecast, comparison and redistribution runs by kind and outcome",
		}, []string{"kind", "outcome"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adforecast_run_duration_seconds",
			Help:    "Wall time of model runs",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"kind"}),
		ModelRMSE: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "adforecast_model_rmse",
			Help: "Hold-out RMSE of daily conversions from the last comparison",
		}, []string{"model"}),
		CacheLookup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adforecast_cache_lookups_total",
			Help: "Forecast cache lookups by result",
		}, []string{"result"}),
		StoredDays: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "adforecast_stored_days",
			Help: "Days currently held in the store",
		}),
	}
	reg.MustRegister(c.Runs, c.RunDuration, c.ModelRMSE, c.CacheLookup, c.StoredDays)
	return c
}

// Observe records one run of kind that started at start.
func (c *Collectors) Observe(kind string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.Runs.WithLabelValues(kind, outcome).Inc()
	c.RunDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (c *Collectors) CacheResult(hit bool) {
	if hit {
		c.CacheLookup.WithLabelValues("hit").Inc()
		return
	}
	c.CacheLookup.WithLabelValues("miss").Inc()
}
