package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"oracle-price-audit/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Input     InputConfig     `mapstructure:"input"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Benchmark BenchmarkConfig `mapstructure:"benchmark"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// InputConfig locates submission logs and benchmark series on disk.
type InputConfig struct {
	SubmissionsGlob string `mapstructure:"submissions_glob"`
	BenchmarkDir    string `mapstructure:"benchmark_dir"`
}

// DetectorConfig carries staleness and lag thresholds. Pairs may override
// the global values since FX pairs and token cross-rates have very
// different natural volatility.
type DetectorConfig struct {
	MinRunLength int                   `mapstructure:"min_run_length"`
	Tolerance    float64               `mapstructure:"tolerance"`
	LagHorizon   time.Duration         `mapstructure:"lag_horizon"`
	LagThreshold float64               `mapstructure:"lag_threshold"`
	GapMultiple  float64               `mapstructure:"gap_multiple"`
	Pairs        map[string]PairConfig `mapstructure:"pairs"`
}

// PairConfig overrides detector thresholds for a single pair.
type PairConfig struct {
	Tolerance    *float64 `mapstructure:"tolerance"`
	LagThreshold *float64 `mapstructure:"lag_threshold"`
	MinPrice     *float64 `mapstructure:"min_price"`
	MaxPrice     *float64 `mapstructure:"max_price"`
}

// AuditConfig governs pipeline execution.
type AuditConfig struct {
	Workers int `mapstructure:"workers"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// BenchmarkConfig covers the remote market-data source used by
// fetch-benchmark.
type BenchmarkConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ORACLEAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "oracleaudit")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("input.submissions_glob", "data/submissions/*.csv")
	v.SetDefault("input.benchmark_dir", "data/benchmarks")

	v.SetDefault("detector.min_run_length", 30)
	v.SetDefault("detector.tolerance", 1e-9)
	v.SetDefault("detector.lag_horizon", "60m")
	v.SetDefault("detector.lag_threshold", 0.05)
	v.SetDefault("detector.gap_multiple", 4.0)

	v.SetDefault("audit.workers", 4)

	v.SetDefault("benchmark.base_url", "")
	v.SetDefault("benchmark.request_timeout", "10s")
	v.SetDefault("benchmark.user_agent", "oracleaudit/1.0")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Detector.MinRunLength <= 1 {
		return fmt.Errorf("detector.min_run_length must be greater than one")
	}
	if c.Detector.Tolerance < 0 {
		return fmt.Errorf("detector.tolerance cannot be negative")
	}
	if c.Detector.LagHorizon <= 0 {
		return fmt.Errorf("detector.lag_horizon must be greater than zero")
	}
	if c.Detector.LagThreshold <= 0 {
		return fmt.Errorf("detector.lag_threshold must be greater than zero")
	}
	if c.Detector.GapMultiple < 1 {
		return fmt.Errorf("detector.gap_multiple must be at least one")
	}
	if c.Audit.Workers <= 0 {
		return fmt.Errorf("audit.workers must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	for pair, pc := range c.Detector.Pairs {
		if pc.Tolerance != nil && *pc.Tolerance < 0 {
			return fmt.Errorf("detector.pairs.%s.tolerance cannot be negative", pair)
		}
		if pc.LagThreshold != nil && *pc.LagThreshold <= 0 {
			return fmt.Errorf("detector.pairs.%s.lag_threshold must be greater than zero", pair)
		}
		if pc.MinPrice != nil && pc.MaxPrice != nil && *pc.MinPrice > *pc.MaxPrice {
			return fmt.Errorf("detector.pairs.%s: min_price exceeds max_price", pair)
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
