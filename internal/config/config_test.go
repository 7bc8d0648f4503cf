package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "any", cfg.CourtPreference)
	assert.Equal(t, 7, cfg.WindowDays)
	assert.Equal(t, "#btnProfile", cfg.Selectors.LoggedInMarker)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
booking_times: ["07:00", "19:00"]
booking_window_days: 14
court_preference: "Court 3"
booking:
  timeout_seconds: 20
  max_retries: 5
  retry_delay_seconds: 2
selectors:
  cookie_button: "#accept-cookies"
test_mode:
  enabled: true
  target_date: "2026-09-01"
  target_time: "11:00"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"07:00", "19:00"}, cfg.BookingTimes)
	assert.Equal(t, 14, cfg.WindowDays)
	assert.Equal(t, "Court 3", cfg.CourtPreference)
	assert.Equal(t, 20*time.Second, cfg.Timeout())
	assert.Equal(t, 5, cfg.Booking.MaxRetries)
	assert.Equal(t, "#accept-cookies", cfg.Selectors.CookieButton)
	// untouched selectors keep their defaults
	assert.Equal(t, "#registerBtn", cfg.Selectors.RegisterButton)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOOKING_URL", "https://example.test/program")
	t.Setenv("BROWSER_STATE_PATH", "/tmp/state.json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/program", cfg.URLs.Program)
	assert.Equal(t, "/tmp/state.json", cfg.Session.StatePath)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no times", func(c *Config) { c.BookingTimes = nil }},
		{"bad time", func(c *Config) { c.BookingTimes = []string{"25:00"} }},
		{"zero window", func(c *Config) { c.WindowDays = 0 }},
		{"zero timeout", func(c *Config) { c.Booking.TimeoutSeconds = 0 }},
		{"zero retries", func(c *Config) { c.Booking.MaxRetries = 0 }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"bad test date", func(c *Config) {
			c.TestMode.Enabled = true
			c.TestMode.TargetDate = "01-09-2026"
		}},
		{"bad test time", func(c *Config) {
			c.TestMode.Enabled = true
			c.TestMode.TargetTime = "7pm"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("07:30")
	require.NoError(t, err)
	assert.Equal(t, 7, h)
	assert.Equal(t, 30, m)

	for _, bad := range []string{"", "7", "7:65", "24:00", "aa:bb", "12-30"} {
		_, _, err := ParseClock(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestTargetTimesTestModeOverride(t *testing.T) {
	cfg := Default()
	cfg.BookingTimes = []string{"18:00", "19:00"}
	assert.Equal(t, []string{"18:00", "19:00"}, cfg.TargetTimes())

	cfg.TestMode.Enabled = true
	cfg.TestMode.TargetTime = "11:00"
	assert.Equal(t, []string{"11:00"}, cfg.TargetTimes())
}

func TestTargetDate(t *testing.T) {
	cfg := Default()
	cfg.WindowDays = 7
	now := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC), cfg.TargetDate(now))

	cfg.TestMode.Enabled = true
	cfg.TestMode.TargetDate = "2026-09-01"
	got := cfg.TargetDate(now)
	assert.Equal(t, 2026, got.Year())
	assert.Equal(t, time.September, got.Month())
	assert.Equal(t, 1, got.Day())
}
