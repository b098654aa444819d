// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/camilorv/aeropolicy/internal/policy"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	DB        DBConfig        `mapstructure:"db"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Score     ScoreConfig     `mapstructure:"score"`
	Viability ViabilityConfig `mapstructure:"viability"`
	Sources   []policy.Source `mapstructure:"sources"`
}

// FetchConfig governs the rate-limited fetcher.
type FetchConfig struct {
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	MaxRetries     int      `mapstructure:"max_retries"`
	BackoffBaseMs  int      `mapstructure:"backoff_base_ms"`
	BackoffMaxMs   int      `mapstructure:"backoff_max_ms"`
	MinDelayMs     int      `mapstructure:"min_delay_ms"`
	MaxDelayMs     int      `mapstructure:"max_delay_ms"`
	UserAgents     []string `mapstructure:"user_agents"`
}

// Timeout returns the per-attempt request timeout.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// HeadlessConfig configures the script-capable rendering collaborator.
type HeadlessConfig struct {
	Enabled            bool    `mapstructure:"enabled"`
	MaxParallel        int     `mapstructure:"max_parallel"`
	PageLoadTimeoutSec int     `mapstructure:"page_load_timeout_seconds"`
	DomainQPS          float64 `mapstructure:"domain_qps"`
}

// PageLoadTimeout returns the render timeout, longer than the plain fetch one.
func (c HeadlessConfig) PageLoadTimeout() time.Duration {
	return time.Duration(c.PageLoadTimeoutSec) * time.Second
}

// SnapshotConfig selects and parameterizes the snapshot store backend.
type SnapshotConfig struct {
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls the append-only policy record store.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ScoreConfig sets confidence thresholds and plausibility bounds.
type ScoreConfig struct {
	ReviewThreshold float64 `mapstructure:"review_threshold"`
	MaxCostCOP      int     `mapstructure:"max_cost_cop"`
	MaxCostUSD      float64 `mapstructure:"max_cost_usd"`
}

// ViabilityConfig sets the market verdict thresholds.
type ViabilityConfig struct {
	CoverageViablePct     float64 `mapstructure:"coverage_viable_pct"`
	CoverageRestrictedPct float64 `mapstructure:"coverage_restricted_pct"`
	MaxAcceptableCostCOP  int     `mapstructure:"max_acceptable_cost_cop"`
	MinViableSources      int     `mapstructure:"min_viable_sources"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AEROPOLICY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("fetch.timeout_seconds", 30)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_base_ms", 2000)
	v.SetDefault("fetch.backoff_max_ms", 30000)
	v.SetDefault("fetch.min_delay_ms", 2000)
	v.SetDefault("fetch.max_delay_ms", 5000)
	v.SetDefault("fetch.user_agents", []string{
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	})
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.page_load_timeout_seconds", 45)
	v.SetDefault("headless.domain_qps", 0.5)
	v.SetDefault("snapshot.backend", "local")
	v.SetDefault("snapshot.base_dir", "data/snapshots")
	v.SetDefault("snapshot.prefix", "snapshots")
	v.SetDefault("db.table", "airline_policies")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("logging.development", true)
	v.SetDefault("score.review_threshold", 0.4)
	v.SetDefault("score.max_cost_cop", 10_000_000)
	v.SetDefault("score.max_cost_usd", 5000)
	v.SetDefault("viability.coverage_viable_pct", 60)
	v.SetDefault("viability.coverage_restricted_pct", 40)
	v.SetDefault("viability.max_acceptable_cost_cop", 200_000)
	v.SetDefault("viability.min_viable_sources", 3)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxRetries <= 0 {
		return fmt.Errorf("fetch.max_retries must be > 0")
	}
	if c.Fetch.MinDelayMs < 0 || c.Fetch.MaxDelayMs < c.Fetch.MinDelayMs {
		return fmt.Errorf("fetch delay interval [%d,%d] is invalid", c.Fetch.MinDelayMs, c.Fetch.MaxDelayMs)
	}
	if len(c.Fetch.UserAgents) == 0 {
		return fmt.Errorf("fetch.user_agents must not be empty")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.Snapshot.Backend {
	case "local", "memory":
	case "gcs":
		if c.Snapshot.GCSBucket == "" {
			return fmt.Errorf("snapshot.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown snapshot backend %q", c.Snapshot.Backend)
	}
	if c.Score.ReviewThreshold < 0 || c.Score.ReviewThreshold > 1 {
		return fmt.Errorf("score.review_threshold must be within [0,1]")
	}
	if c.Viability.CoverageRestrictedPct > c.Viability.CoverageViablePct {
		return fmt.Errorf("viability.coverage_restricted_pct must not exceed coverage_viable_pct")
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for _, src := range c.Sources {
		if src.Code == "" || src.PolicyURL == "" {
			return fmt.Errorf("source %q needs both code and policy_url", src.Name)
		}
		if _, dup := seen[src.Code]; dup {
			return fmt.Errorf("duplicate source code %q", src.Code)
		}
		seen[src.Code] = struct{}{}
	}
	return nil
}

// DefaultSources returns the Colombian market catalog scraped by default.
func DefaultSources() []policy.Source {
	return []policy.Source{
		{
			Code:       "AV",
			Name:       "Avianca",
			BaseURL:    "https://www.avianca.com",
			PolicyURL:  "https://www.avianca.com/co/es/experiencia/condiciones-transporte/",
			PatternSet: "avianca",
		},
		{
			Code:       "LA",
			Name:       "LATAM",
			BaseURL:    "https://www.latamairlines.com",
			PolicyURL:  "https://www.latamairlines.com/co/es/experiencia/cambios-y-reembolsos",
			PatternSet: "latam",
		},
		{
			Code:       "P5",
			Name:       "Wingo",
			BaseURL:    "https://www.wingo.com",
			PolicyURL:  "https://www.wingo.com/es/ayuda/cambios-y-cancelaciones",
			PatternSet: "wingo",
		},
		{
			Code:       "VE",
			Name:       "EasyFly",
			BaseURL:    "https://www.easyfly.com.co",
			PolicyURL:  "https://www.easyfly.com.co/condiciones-generales",
			PatternSet: "easyfly",
		},
		{
			Code:       "9R",
			Name:       "Satena",
			BaseURL:    "https://www.satena.com",
			PolicyURL:  "https://www.satena.com/terminos-y-condiciones/",
			PatternSet: "satena",
		},
		{
			Code:       "CM",
			Name:       "Copa Airlines",
			BaseURL:    "https://www.copaair.com",
			PolicyURL:  "https://www.copaair.com/es/web/co/cambios-reembolsos",
			PatternSet: "copa",
		},
		{
			Code:       "JA",
			Name:       "JetSmart",
			BaseURL:    "https://jetsmart.com",
			PolicyURL:  "https://jetsmart.com/co/es/condiciones-de-transporte",
			PatternSet: "jetsmart",
		},
	}
}
