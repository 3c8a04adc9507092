package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vitos/live_price_chart/internal/domain"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config/config.yaml"

type RangeConfig struct {
	Key      string `yaml:"key"`
	Duration string `yaml:"duration"` // Go duration, "" or "all" for the whole series; "d" suffix allowed
}

// Config holds all application configuration.
type Config struct {
	Feed struct {
		URL       string `yaml:"url"`
		File      string `yaml:"file"`
		TimeoutMs int    `yaml:"timeout_ms"`
	} `yaml:"feed"`
	Series struct {
		Identifier   string `yaml:"identifier"`
		DefaultRange string `yaml:"default_range"`
		Timezone     string `yaml:"timezone"`
	} `yaml:"series"`
	Polling struct {
		IntervalMs   int `yaml:"interval_ms"`
		MaxBackoffMs int `yaml:"max_backoff_ms"`
	} `yaml:"polling"`
	Chart struct {
		MaxPoints int           `yaml:"max_points"`
		Epsilon   float64       `yaml:"epsilon"`
		Width     int           `yaml:"width"`
		Height    int           `yaml:"height"`
		Ranges    []RangeConfig `yaml:"ranges"`
	} `yaml:"chart"`
	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Retention struct {
		StatusDays int    `yaml:"status_days"`
		PruneCron  string `yaml:"prune_cron"`
	} `yaml:"retention"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	// Zero is meaningful for these, so they are seeded before parsing.
	cfg.Chart.Epsilon = 1e-9
	cfg.Retention.StatusDays = 7

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv("FEED_FILE"); v != "" {
		cfg.Feed.File = v
	}
	if v := os.Getenv("SERIES_ID"); v != "" {
		cfg.Series.Identifier = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if err := envInt("POLL_INTERVAL_MS", &cfg.Polling.IntervalMs); err != nil {
		return nil, err
	}
	if err := envInt("MAX_POINTS", &cfg.Chart.MaxPoints); err != nil {
		return nil, err
	}
	if err := envInt("PORT", &cfg.Server.Port); err != nil {
		return nil, err
	}

	// Defaults
	if cfg.Feed.TimeoutMs == 0 {
		cfg.Feed.TimeoutMs = 10000
	}
	if cfg.Series.DefaultRange == "" {
		cfg.Series.DefaultRange = string(domain.Range6H)
	}
	if cfg.Polling.IntervalMs == 0 {
		cfg.Polling.IntervalMs = 5000
	}
	if cfg.Chart.MaxPoints == 0 {
		cfg.Chart.MaxPoints = 200
	}
	if cfg.Chart.Width == 0 {
		cfg.Chart.Width = 1024
	}
	if cfg.Chart.Height == 0 {
		cfg.Chart.Height = 400
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/live_chart.db"
	}
	if cfg.Retention.PruneCron == "" {
		cfg.Retention.PruneCron = "0 0 3 * * *"
	}

	return cfg, nil
}

func envInt(name string, dst *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("env %s: %w", name, err)
	}
	*dst = n
	return nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Feed.URL == "" && c.Feed.File == "" {
		return fmt.Errorf("feed.url or feed.file is required")
	}
	if c.Feed.URL != "" && c.Feed.File != "" {
		return fmt.Errorf("feed.url and feed.file are mutually exclusive")
	}
	if strings.TrimSpace(c.Series.Identifier) == "" {
		return fmt.Errorf("series.identifier is required")
	}
	if c.Polling.IntervalMs <= 0 {
		return fmt.Errorf("polling.interval_ms must be positive")
	}
	if c.Polling.MaxBackoffMs < 0 {
		return fmt.Errorf("polling.max_backoff_ms must not be negative")
	}
	if c.Feed.TimeoutMs < 0 {
		return fmt.Errorf("feed.timeout_ms must not be negative")
	}
	if c.Chart.MaxPoints <= 0 {
		return fmt.Errorf("chart.max_points must be positive")
	}
	if c.Chart.Epsilon < 0 {
		return fmt.Errorf("chart.epsilon must not be negative")
	}
	if c.Retention.StatusDays < 0 {
		return fmt.Errorf("retention.status_days must not be negative")
	}
	if _, err := cron.NewParser(cronSpec).Parse(c.Retention.PruneCron); err != nil {
		return fmt.Errorf("retention.prune_cron: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}

	ranges, err := c.Ranges()
	if err != nil {
		return err
	}
	if !ranges.Has(domain.RangeKey(c.Series.DefaultRange)) {
		return fmt.Errorf("series.default_range %q is not a configured range", c.Series.DefaultRange)
	}
	return nil
}

// cronSpec matches cron.WithSeconds().
const cronSpec = cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor

// Ranges builds the range catalog, falling back to the built-in set.
func (c *Config) Ranges() (*domain.RangeCatalog, error) {
	if len(c.Chart.Ranges) == 0 {
		return domain.DefaultRanges(), nil
	}
	options := make([]domain.RangeOption, 0, len(c.Chart.Ranges))
	for _, r := range c.Chart.Ranges {
		opt := domain.RangeOption{Key: domain.RangeKey(strings.TrimSpace(r.Key))}
		d, unbounded, err := parseWindow(r.Duration)
		if err != nil {
			return nil, fmt.Errorf("chart.ranges %q: %w", r.Key, err)
		}
		opt.Unbounded = unbounded
		opt.Millis = d.Milliseconds()
		options = append(options, opt)
	}
	catalog, err := domain.NewRangeCatalog(options)
	if err != nil {
		return nil, fmt.Errorf("chart.ranges: %w", err)
	}
	return catalog, nil
}

func parseWindow(raw string) (time.Duration, bool, error) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" || s == "all" {
		return 0, true, nil
	}
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, false, fmt.Errorf("invalid duration %q", raw)
		}
		return time.Duration(n) * 24 * time.Hour, false, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false, err
	}
	return d, false, nil
}

// Location resolves series.timezone for feed timestamps without a zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Series.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Series.Timezone)
	if err != nil {
		return nil, fmt.Errorf("series.timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Polling.IntervalMs) * time.Millisecond
}

func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Feed.TimeoutMs) * time.Millisecond
}

func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.Polling.MaxBackoffMs) * time.Millisecond
}

func (c *Config) StatusRetention() time.Duration {
	return time.Duration(c.Retention.StatusDays) * 24 * time.Hour
}
