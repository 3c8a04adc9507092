package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/live_price_chart/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.PollInterval())
	assert.Equal(t, 10*time.Second, cfg.FetchTimeout())
	assert.Equal(t, time.Duration(0), cfg.MaxBackoff())
	assert.Equal(t, 200, cfg.Chart.MaxPoints)
	assert.Equal(t, 1e-9, cfg.Chart.Epsilon)
	assert.Equal(t, "6H", cfg.Series.DefaultRange)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.StatusRetention())

	// No feed and no series configured.
	assert.Error(t, cfg.Validate())
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
feed:
  url: http://localhost:9000/Company-Jsons/{series}.json
series:
  identifier: TCS
  timezone: Asia/Kolkata
polling:
  interval_ms: 2000
chart:
  max_points: 100
logging:
  level: debug
`)
	t.Setenv("SERIES_ID", "INFY")
	t.Setenv("MAX_POINTS", "50")
	t.Setenv("PORT", "9090")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "INFY", cfg.Series.Identifier)
	assert.Equal(t, 50, cfg.Chart.MaxPoints)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2*time.Second, cfg.PollInterval())
	assert.Equal(t, "debug", cfg.Logging.Level)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
}

func TestLoad_ExplicitZeroIsKept(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
chart:
  epsilon: 0
retention:
  status_days: 0
`))
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Chart.Epsilon)
	assert.Equal(t, time.Duration(0), cfg.StatusRetention())
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("POLL_INTERVAL_MS", "soon")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "POLL_INTERVAL_MS")
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "feed: [unterminated"))
	assert.ErrorContains(t, err, "parse config")
}

func TestConfig_Ranges(t *testing.T) {
	cfg := &Config{}
	cfg.Chart.Ranges = []RangeConfig{
		{Key: "15M", Duration: "15m"},
		{Key: "1H", Duration: "1h"},
		{Key: "2D", Duration: "2d"},
		{Key: "ALL", Duration: "all"},
	}

	c, err := cfg.Ranges()
	require.NoError(t, err)

	w, ok := c.Lookup("2D")
	require.True(t, ok)
	assert.Equal(t, 48*time.Hour, w.Duration)

	w, ok = c.Lookup("ALL")
	require.True(t, ok)
	assert.True(t, w.Unbounded)

	def, err := (&Config{}).Ranges()
	require.NoError(t, err)
	assert.True(t, def.Has(domain.Range10D))
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		cfg.Feed.File = "data/{series}.json"
		cfg.Series.Identifier = "TCS"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"Both feeds", func(c *Config) { c.Feed.URL = "http://x" }},
		{"No series", func(c *Config) { c.Series.Identifier = " " }},
		{"Negative backoff", func(c *Config) { c.Polling.MaxBackoffMs = -1 }},
		{"Zero cap", func(c *Config) { c.Chart.MaxPoints = -5 }},
		{"Bad cron", func(c *Config) { c.Retention.PruneCron = "every night" }},
		{"Bad timezone", func(c *Config) { c.Series.Timezone = "Mars/Olympus" }},
		{"Bad range duration", func(c *Config) { c.Chart.Ranges = []RangeConfig{{Key: "X", Duration: "forever"}} }},
		{"Default range not in catalog", func(c *Config) { c.Series.DefaultRange = "2W" }},
	}

	require.NoError(t, valid().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
