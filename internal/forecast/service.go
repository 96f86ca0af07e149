package forecast

import (
	"context"
	"log/slog"
	"time"

	"github.com/AngelCh415/adforecast/internal/cache"
	"github.com/AngelCh415/adforecast/internal/metrics"
	"github.com/AngelCh415/adforecast/internal/models"
	"github.com/AngelCh415/adforecast/internal/redistribute"
	"github.com/AngelCh415/adforecast/internal/store"
)

// Service runs forecasts against the store's current data, memoizing results
// per dataset version. Cache and collectors are optional.
type Service struct {
	st  *store.MemoryStore
	c   cache.Cache
	col *metrics.Collectors
	cfg Config
	log *slog.Logger
}

func NewService(st *store.MemoryStore, c cache.Cache, col *metrics.Collectors, cfg Config, log *slog.Logger) *Service {
	return &Service{st: st, c: c, col: col, cfg: cfg, log: log}
}

func (s *Service) Config() Config { return s.cfg }

func (s *Service) Forecast(ctx context.Context, horizon int) (models.Forecast, error) {
	cfg := s.cfg
	if horizon > 0 {
		cfg.Horizon = horizon
	}
	return cached(ctx, s, "forecast", func() (models.Forecast, error) {
		return Forecast(ctx, s.st.All(), cfg)
	}, cfg.Horizon, cfg.Options.Missing, cfg.Options.ZeroBucket)
}

func (s *Service) Compare(ctx context.Context) (models.Comparison, error) {
	cmp, err := cached(ctx, s, "compare", func() (models.Comparison, error) {
		return Compare(ctx, s.st.All(), s.cfg)
	}, s.cfg.TestDays, s.cfg.MaxSMAWindow, s.cfg.Options.Missing, s.cfg.Options.ZeroBucket)
	if err == nil && s.col != nil {
		for _, sc := range cmp.Scores {
			if sc.Err == "" {
				s.col.ModelRMSE.WithLabelValues(sc.Name).Set(sc.RMSE)
			}
		}
	}
	return cmp, err
}

// Redistribute is redistribute.Redistribute with run metrics.
func (s *Service) Redistribute(m redistribute.Model, clicks []float64, opts redistribute.Options) ([]float64, error) {
	start := time.Now()
	out, err := redistribute.Redistribute(m, clicks, opts)
	s.observe("redistribute", start, err)
	return out, err
}

func cached[T any](ctx context.Context, s *Service, kind string, run func() (T, error), params ...any) (T, error) {
	start := time.Now()
	first, last, _ := s.st.Range()
	key := cache.Key(append([]any{kind, s.st.Version(), s.st.Len(), first, last}, params...)...)

	if s.c != nil {
		var hit T
		ok, err := cache.GetJSON(ctx, s.c, key, &hit)
		if err != nil {
			s.log.Warn("cache get failed", slog.String("kind", kind), slog.String("err", err.Error()))
		}
		if s.col != nil {
			s.col.CacheResult(ok)
		}
		if ok {
			return hit, nil
		}
	}

	v, err := run()
	s.observe(kind, start, err)
	if err != nil {
		return v, err
	}
	if s.c != nil {
		if err := cache.SetJSON(ctx, s.c, key, v); err != nil {
			s.log.Warn("cache set failed", slog.String("kind", kind), slog.String("err", err.Error()))
		}
	}
	return v, nil
}

func (s *Service) observe(kind string, start time.Time, err error) {
	if s.col != nil {
		s.col.Observe(kind, start, err)
	}
	if err != nil {
		s.log.Warn("model run failed", slog.String("kind", kind), slog.String("err", err.Error()))
		return
	}
	s.log.Debug("model run", slog.String("kind", kind), slog.Duration("took", time.Since(start)))
}
