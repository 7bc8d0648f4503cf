package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the bot reads at startup: target times, the
// booking window, per-site selectors, and the ambient settings (logging,
// session file, notifications, history). Values come from the YAML file
// with environment variables taking precedence for deploy-specific paths.
type Config struct {
	URLs            URLs      `yaml:"urls"`
	BookingTimes    []string  `yaml:"booking_times"`
	WindowDays      int       `yaml:"booking_window_days"`
	CourtPreference string    `yaml:"court_preference"`
	PreferredCourts []string  `yaml:"preferred_courts"`
	Booking         Booking   `yaml:"booking"`
	Scheduler       Sched     `yaml:"scheduler"`
	TestMode        TestMode  `yaml:"test_mode"`
	Selectors       Selectors `yaml:"selectors"`
	Session         Session   `yaml:"session"`
	Timezone        string    `yaml:"timezone"`
	Log             Log       `yaml:"log"`
	Notify          Notify    `yaml:"notify"`
	History         History   `yaml:"history"`
}

type URLs struct {
	Base          string `yaml:"base"`
	Program       string `yaml:"program"`
	Registrations string `yaml:"registrations"`
}

type Booking struct {
	TimeoutSeconds    int `yaml:"timeout_seconds"`
	MaxRetries        int `yaml:"max_retries"`
	RetryDelaySeconds int `yaml:"retry_delay_seconds"`
}

type Sched struct {
	CheckIntervalMinutes int `yaml:"check_interval_minutes"`
}

type TestMode struct {
	Enabled     bool   `yaml:"enabled"`
	TargetDate  string `yaml:"target_date"` // YYYY-MM-DD
	TargetCourt string `yaml:"target_court"`
	TargetTime  string `yaml:"target_time"` // HH:MM
}

// Selectors are the DOM anchors the site flow depends on. The platform
// may change markup without notice, so every one of them is overridable.
type Selectors struct {
	CookieButton      string `yaml:"cookie_button"`
	CourtLink         string `yaml:"court_link"`
	TimeSlotCard      string `yaml:"time_slot_card"`
	SelectButton      string `yaml:"select_button"`
	SpotsTag          string `yaml:"spots_tag"`
	InstanceTime      string `yaml:"instance_time"`
	LocationDiv       string `yaml:"location_div"`
	RegisterButton    string `yaml:"register_button"`
	ProceedToCheckout string `yaml:"proceed_to_checkout"`
	CheckoutButton    string `yaml:"checkout_button"`
	FinalCheckout     string `yaml:"final_checkout"`
	RightArrow        string `yaml:"right_arrow"`
	LoggedInMarker    string `yaml:"logged_in_marker"`

	// text markers, matched by substring rather than CSS
	SignInText      string `yaml:"sign_in_text"`
	NoInstancesText string `yaml:"no_instances_text"`
}

type Session struct {
	StatePath   string `yaml:"state_path"`
	AccountName string `yaml:"account_name"`

	// sealing keys come from the environment only, never the YAML file
	SealHashKey  []byte `yaml:"-"`
	SealBlockKey []byte `yaml:"-"`
	Passphrase   string `yaml:"-"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Notify struct {
	EmailFrom  string `yaml:"email_from"`
	EmailTo    string `yaml:"email_to"`
	SMSNumber  string `yaml:"sms_number"`
	SMSCarrier string `yaml:"sms_carrier"`
}

type History struct {
	Path string `yaml:"path"`
}

func Default() Config {
	return Config{
		URLs: URLs{
			Base:          "https://membership.gocrimson.com",
			Program:       "https://membership.gocrimson.com/program?classificationid=dc42ec33-82df-44ca-b06c-109c3685395d",
			Registrations: "https://membership.gocrimson.com/profile/programregistrations",
		},
		BookingTimes:    []string{"19:00"},
		WindowDays:      7,
		CourtPreference: "any",
		Booking: Booking{
			TimeoutSeconds:    10,
			MaxRetries:        3,
			RetryDelaySeconds: 5,
		},
		Scheduler: Sched{CheckIntervalMinutes: 1},
		Selectors: Selectors{
			CookieButton:      "#gdpr-cookie-accept",
			CourtLink:         "a.img-link",
			TimeSlotCard:      "div.program-instance-card",
			SelectButton:      "button.program-select-btn",
			SpotsTag:          ".spots-tag",
			InstanceTime:      ".instance-time-header",
			LocationDiv:       `div[title="Location"]`,
			RegisterButton:    "#registerBtn",
			ProceedToCheckout: ".btn-NextRegistrationStep",
			CheckoutButton:    "#checkoutButton",
			FinalCheckout:     "#btnCheckoutCart",
			RightArrow:        ".single-date-right-arrow",
			LoggedInMarker:    "#btnProfile",
			SignInText:        "Sign in",
			NoInstancesText:   "no instances available",
		},
		Session:  Session{StatePath: "data/browser_state.json"},
		Timezone: "America/New_York",
		Log:      Log{Level: "info", File: "logs/courtsched.log"},
		History:  History{Path: "data/history.db"},
	}
}

// Load reads the YAML file at path (missing file means defaults), applies
// environment overrides, and validates. An empty path checks
// COURTSCHED_CONFIG and then config/config.yaml.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = getenv("COURTSCHED_CONFIG", "config/config.yaml")
	}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults stand
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.URLs.Program = getenv("BOOKING_URL", c.URLs.Program)
	c.Session.StatePath = getenv("BROWSER_STATE_PATH", c.Session.StatePath)
	c.Timezone = getenv("TIMEZONE", c.Timezone)
	c.Log.Level = getenv("LOG_LEVEL", c.Log.Level)
	c.Log.File = getenv("LOG_FILE", c.Log.File)

	c.Session.Passphrase = os.Getenv("STATE_PASSPHRASE")
	if v := os.Getenv("STATE_HASH_KEY"); v != "" {
		k, err := decodeB64(v)
		if err != nil {
			return fmt.Errorf("STATE_HASH_KEY: %w", err)
		}
		c.Session.SealHashKey = k
	}
	if v := os.Getenv("STATE_BLOCK_KEY"); v != "" {
		k, err := decodeB64(v)
		if err != nil {
			return fmt.Errorf("STATE_BLOCK_KEY: %w", err)
		}
		c.Session.SealBlockKey = k
	}
	return nil
}

func (c Config) Validate() error {
	if len(c.BookingTimes) == 0 {
		return fmt.Errorf("booking_times must list at least one HH:MM time")
	}
	for _, t := range c.BookingTimes {
		if _, _, err := ParseClock(t); err != nil {
			return fmt.Errorf("booking_times: %w", err)
		}
	}
	if c.WindowDays < 1 {
		return fmt.Errorf("booking_window_days must be >= 1")
	}
	if c.Booking.TimeoutSeconds < 1 {
		return fmt.Errorf("booking.timeout_seconds must be >= 1")
	}
	if c.Booking.MaxRetries < 1 {
		return fmt.Errorf("booking.max_retries must be >= 1")
	}
	if c.Booking.RetryDelaySeconds < 0 {
		return fmt.Errorf("booking.retry_delay_seconds must be >= 0")
	}
	if c.Scheduler.CheckIntervalMinutes < 1 {
		return fmt.Errorf("scheduler.check_interval_minutes must be >= 1")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.TestMode.Enabled {
		if c.TestMode.TargetDate != "" {
			if _, err := time.Parse("2006-01-02", c.TestMode.TargetDate); err != nil {
				return fmt.Errorf("test_mode.target_date (want YYYY-MM-DD): %w", err)
			}
		}
		if c.TestMode.TargetTime != "" {
			if _, _, err := ParseClock(c.TestMode.TargetTime); err != nil {
				return fmt.Errorf("test_mode.target_time: %w", err)
			}
		}
	}
	return nil
}

func (c Config) Timeout() time.Duration {
	return time.Duration(c.Booking.TimeoutSeconds) * time.Second
}

func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Booking.RetryDelaySeconds) * time.Second
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// TargetTimes returns the times to match against, honoring the test-mode
// override when it is enabled.
func (c Config) TargetTimes() []string {
	if c.TestMode.Enabled && c.TestMode.TargetTime != "" {
		return []string{c.TestMode.TargetTime}
	}
	return c.BookingTimes
}

// TargetDate is the single date a booking run aims at: the test-mode date
// when set, otherwise now plus the booking window.
func (c Config) TargetDate(now time.Time) time.Time {
	if c.TestMode.Enabled && c.TestMode.TargetDate != "" {
		if d, err := time.ParseInLocation("2006-01-02", c.TestMode.TargetDate, now.Location()); err == nil {
			return d
		}
	}
	return now.AddDate(0, 0, c.WindowDays)
}

// ParseClock splits an HH:MM string into hour and minute.
func ParseClock(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

func decodeB64(s string) ([]byte, error) {
	if b, err := os.ReadFile(s); err == nil {
		// allow pointing to a file path for secret mounts
		s = string(b)
	}
	s = strings.TrimSpace(s)
	return base64.StdEncoding.DecodeString(s)
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
