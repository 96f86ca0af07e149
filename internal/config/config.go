package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	HTTPTimeout time.Duration
	LogLevel    slog.Level

	DatasetPath string
	DatasetURL  string
	DatabaseURL string

	RedisAddr string
	CacheSize int
	CacheTTL  time.Duration

	SinkURL    string
	SinkSecret string

	RateLimitPerSec float64
	RateLimitBurst  int

	Forecast Forecast
}

type Forecast struct {
	HorizonDays      int
	TestDays         int
	MaxSMAWindow     int
	MissingPolicy    string
	ZeroBucketPolicy string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("http_timeout_seconds", 15)
	v.SetDefault("dataset_path", "")
	v.SetDefault("dataset_url", "")
	v.SetDefault("database_url", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("cache_size", 128)
	v.SetDefault("cache_ttl_seconds", 600)
	v.SetDefault("sink_url", "")
	v.SetDefault("sink_secret", "")
	v.SetDefault("rate_limit_per_sec", 0)
	v.SetDefault("rate_limit_burst", 0)
	v.SetDefault("forecast.horizon_days", 14)
	v.SetDefault("forecast.test_days", 28)
	v.SetDefault("forecast.max_sma_window", 14)
	v.SetDefault("forecast.missing_policy", "zero")
	v.SetDefault("forecast.zero_bucket_policy", "zero")
}

// Load reads adforecast.yaml (optional) and ADFORECAST_* environment variables.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("adforecast")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/adforecast/")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ADFORECAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return FromViper(v), nil
}

func FromViper(v *viper.Viper) Config {
	lvl := slog.LevelInfo
	switch strings.ToLower(v.GetString("log_level")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return Config{
		Port:            v.GetString("port"),
		HTTPTimeout:     time.Duration(v.GetInt("http_timeout_seconds")) * time.Second,
		LogLevel:        lvl,
		DatasetPath:     v.GetString("dataset_path"),
		DatasetURL:      v.GetString("dataset_url"),
		DatabaseURL:     v.GetString("database_url"),
		RedisAddr:       v.GetString("redis_addr"),
		CacheSize:       v.GetInt("cache_size"),
		CacheTTL:        time.Duration(v.GetInt("cache_ttl_seconds")) * time.Second,
		SinkURL:         v.GetString("sink_url"),
		SinkSecret:      v.GetString("sink_secret"),
		RateLimitPerSec: v.GetFloat64("rate_limit_per_sec"),
		RateLimitBurst:  v.GetInt("rate_limit_burst"),
		Forecast: Forecast{
			HorizonDays:      v.GetInt("forecast.horizon_days"),
			TestDays:         v.GetInt("forecast.test_days"),
			MaxSMAWindow:     v.GetInt("forecast.max_sma_window"),
			MissingPolicy:    v.GetString("forecast.missing_policy"),
			ZeroBucketPolicy: v.GetString("forecast.zero_bucket_policy"),
		},
	}
}
