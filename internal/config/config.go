// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/brlegis/normcrawler/internal/norm"
)

// Config captures all crawler configuration knobs loaded via Viper.
type Config struct {
	Budget    BudgetConfig    `mapstructure:"budget"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Index     IndexConfig     `mapstructure:"index"`
	Snapshots SnapshotConfig  `mapstructure:"snapshots"`
	Events    EventsConfig    `mapstructure:"events"`
	State     StateConfig     `mapstructure:"state"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// BudgetConfig caps the total HTTP requests one run may spend.
type BudgetConfig struct {
	MaxRequests int64 `mapstructure:"max_requests"`
}

// CrawlConfig selects the corpus slice and update policy for a run.
type CrawlConfig struct {
	Types             []string `mapstructure:"types"`
	YearFrom          int      `mapstructure:"year_from"`
	YearTo            int      `mapstructure:"year_to"`
	Variants          []string `mapstructure:"variants"`
	RecheckWindow     int      `mapstructure:"recheck_window"`
	ProbeRefreshHours int      `mapstructure:"probe_refresh_hours"`
	Lookback          int      `mapstructure:"lookback"`
	Concurrency       int      `mapstructure:"concurrency"`
}

// DiscoveryConfig governs how the last existing number is found.
type DiscoveryConfig struct {
	Strategy string `mapstructure:"strategy"`
	Ceiling  int    `mapstructure:"ceiling"`
	GapLimit int    `mapstructure:"gap_limit"`
}

// FetchConfig configures the HTTP client.
type FetchConfig struct {
	UserAgent         string  `mapstructure:"user_agent"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	MaxRetries        int     `mapstructure:"max_retries"`
	BackoffInitialMs  int     `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs      int     `mapstructure:"backoff_max_ms"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// IndexConfig selects and configures the index backend.
type IndexConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
	DSN     string `mapstructure:"dsn"`
}

// SnapshotConfig controls raw page archival.
type SnapshotConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Bucket  string `mapstructure:"bucket"`
}

// EventsConfig holds metadata for change-event notifications.
type EventsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// StateConfig locates the crawl state file.
type StateConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig exposes the Prometheus/health listener.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NORMCRAWLER")
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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("budget.max_requests", 500)
	v.SetDefault("crawl.types", []string{"LEI"})
	v.SetDefault("crawl.year_from", norm.StartYear)
	v.SetDefault("crawl.year_to", 0)
	v.SetDefault("crawl.variants", []string{"original"})
	v.SetDefault("crawl.recheck_window", 25)
	v.SetDefault("crawl.probe_refresh_hours", 24)
	v.SetDefault("crawl.lookback", 50)
	v.SetDefault("crawl.concurrency", 1)
	v.SetDefault("discovery.strategy", "binary")
	v.SetDefault("discovery.ceiling", 300000)
	v.SetDefault("discovery.gap_limit", 5)
	v.SetDefault("fetch.user_agent", "normcrawler/0.1")
	v.SetDefault("fetch.timeout_seconds", 20)
	v.SetDefault("fetch.max_retries", 2)
	v.SetDefault("fetch.backoff_initial_ms", 250)
	v.SetDefault("fetch.backoff_max_ms", 2000)
	v.SetDefault("fetch.requests_per_second", 2.0)
	v.SetDefault("index.backend", "sqlite")
	v.SetDefault("index.path", "normas.db")
	v.SetDefault("snapshots.enabled", false)
	v.SetDefault("snapshots.backend", "local")
	v.SetDefault("snapshots.dir", "snapshots")
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.topic", "norm-changes")
	v.SetDefault("state.path", "state.json")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Budget.MaxRequests <= 0 {
		return fmt.Errorf("budget.max_requests must be > 0")
	}
	if len(c.Crawl.Types) == 0 {
		return fmt.Errorf("crawl.types must not be empty")
	}
	for _, tc := range c.Crawl.Types {
		if !norm.ValidType(tc) {
			return fmt.Errorf("crawl.types: unknown type %q", tc)
		}
	}
	if c.Crawl.YearFrom < norm.StartYear {
		return fmt.Errorf("crawl.year_from must be >= %d", norm.StartYear)
	}
	if c.Crawl.YearTo != 0 && c.Crawl.YearTo < c.Crawl.YearFrom {
		return fmt.Errorf("crawl.year_to must be >= crawl.year_from")
	}
	if _, err := norm.ParseVariants(c.Crawl.Variants); err != nil {
		return fmt.Errorf("crawl.variants: %w", err)
	}
	if c.Crawl.Concurrency <= 0 {
		return fmt.Errorf("crawl.concurrency must be > 0")
	}
	switch c.Discovery.Strategy {
	case "binary", "scan":
	default:
		return fmt.Errorf("discovery.strategy must be binary or scan")
	}
	if c.Discovery.Ceiling <= 0 {
		return fmt.Errorf("discovery.ceiling must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.RequestsPerSecond <= 0 {
		return fmt.Errorf("fetch.requests_per_second must be > 0")
	}
	switch c.Index.Backend {
	case "sqlite":
		if c.Index.Path == "" {
			return fmt.Errorf("index.path must be set for the sqlite backend")
		}
	case "postgres":
		if c.Index.DSN == "" {
			return fmt.Errorf("index.dsn must be set for the postgres backend")
		}
	case "memory":
	default:
		return fmt.Errorf("index.backend must be sqlite, postgres, or memory")
	}
	if c.Snapshots.Enabled {
		switch c.Snapshots.Backend {
		case "local":
			if c.Snapshots.Dir == "" {
				return fmt.Errorf("snapshots.dir must be set for the local backend")
			}
		case "gcs":
			if c.Snapshots.Bucket == "" {
				return fmt.Errorf("snapshots.bucket must be set for the gcs backend")
			}
		default:
			return fmt.Errorf("snapshots.backend must be local or gcs")
		}
	}
	if c.Events.Enabled && c.Events.ProjectID == "" {
		return fmt.Errorf("events.project_id must be set when events are enabled")
	}
	if c.State.Path == "" {
		return fmt.Errorf("state.path must be set")
	}
	return nil
}

// FetchTimeout returns the HTTP client timeout as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// ProbeRefreshInterval returns how long a probe result stays fresh.
func (c Config) ProbeRefreshInterval() time.Duration {
	return time.Duration(c.Crawl.ProbeRefreshHours) * time.Hour
}
