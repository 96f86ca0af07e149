package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/AngelCh415/adforecast/internal/cache"
	"github.com/AngelCh415/adforecast/internal/config"
	"github.com/AngelCh415/adforecast/internal/forecast"
	"github.com/AngelCh415/adforecast/internal/httpx"
	"github.com/AngelCh415/adforecast/internal/ingest"
	"github.com/AngelCh415/adforecast/internal/metrics"
	"github.com/AngelCh415/adforecast/internal/redistribute"
	"github.com/AngelCh415/adforecast/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fcfg, err := forecastConfig(cfg.Forecast)
	if err != nil {
		logger.Error("invalid forecast config", slog.String("err", err.Error()))
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	col := metrics.NewCollectors(reg)

	st := store.NewMemoryStore()

	var db ingest.DailySource
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresSource(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("postgres unavailable", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer pg.Close()
		db = pg
	}

	var c cache.Cache
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedis(cfg.RedisAddr, cfg.CacheTTL)
		if err != nil {
			logger.Error("redis unavailable", slog.String("err", err.Error()))
			os.Exit(1)
		}
		defer rc.Close()
		c = rc
	} else if cfg.CacheSize > 0 {
		lc, err := cache.NewLRU(cfg.CacheSize, cfg.CacheTTL)
		if err != nil {
			logger.Error("cache init failed", slog.String("err", err.Error()))
			os.Exit(1)
		}
		c = lc
	}

	etl := ingest.NewETL(ingest.NewHTTPClient(cfg.HTTPTimeout), st, db, logger, cfg)
	if cfg.DatasetPath != "" || cfg.DatasetURL != "" || db != nil {
		if _, err := etl.Run(ctx, "", nil); err != nil {
			logger.Warn("initial ingest failed", slog.String("err", err.Error()))
		}
		col.StoredDays.Set(float64(st.Len()))
	}

	r := httpx.NewRouter(logger, httpx.Deps{
		ETL:             etl,
		Store:           st,
		Metrics:         metrics.NewService(st),
		Forecasts:       forecast.NewService(st, c, col, fcfg, logger),
		Collectors:      col,
		Gatherer:        reg,
		RateLimitPerSec: cfg.RateLimitPerSec,
		RateLimitBurst:  cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", slog.String("port", cfg.Port), slog.Int("days", st.Len()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func forecastConfig(f config.Forecast) (forecast.Config, error) {
	out := forecast.DefaultConfig()
	if f.HorizonDays > 0 {
		out.Horizon = f.HorizonDays
	}
	if f.TestDays > 0 {
		out.TestDays = f.TestDays
	}
	if f.MaxSMAWindow > 0 {
		out.MaxSMAWindow = f.MaxSMAWindow
	}
	var err error
	if out.Options.Missing, err = redistribute.ParseMissingPolicy(f.MissingPolicy); err != nil {
		return out, err
	}
	if out.Options.ZeroBucket, err = redistribute.ParseZeroBucketPolicy(f.ZeroBucketPolicy); err != nil {
		return out, err
	}
	return out, nil
}
