package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrNotConfigured marks an endpoint or credential that is unset or still a
// placeholder. It is reported before any network call is made.
var ErrNotConfigured = errors.New("not configured")

type Config struct {
	Port           string `yaml:"port"`
	LogLevelName   string `yaml:"log_level"`
	HTTPTimeoutSec int    `yaml:"http_timeout_seconds"`

	SheetName   string `yaml:"sheet_name"`
	StoreDriver string `yaml:"store_driver"` // memory | sqlite | postgres | remote
	StoreDSN    string `yaml:"store_dsn"`
	StoreURL    string `yaml:"store_url"`

	InsightsBaseURL   string  `yaml:"insights_base_url"`
	InsightsToken     string  `yaml:"insights_access_token"`
	InsightsAccountID string  `yaml:"insights_account_id"`
	InsightsChunkDays int     `yaml:"insights_chunk_days"`
	InsightsPageLimit int     `yaml:"insights_page_limit"`
	InsightsRPS       float64 `yaml:"insights_rps"`

	RedisURL          string `yaml:"redis_url"`
	SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
	DashUser          string `yaml:"dash_user"`
	DashSecret        string `yaml:"dash_secret"`

	SinkURL    string `yaml:"sink_url"`
	SinkSecret string `yaml:"sink_secret"`

	HTTPTimeout time.Duration `yaml:"-"`
	LogLevel    slog.Level    `yaml:"-"`
}

// Load reads .env when present, then an optional YAML file named by
// CONFIG_FILE, then the environment. Later sources win.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// FromEnv builds a Config from the environment only.
func FromEnv() Config {
	var cfg Config
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyEnv() {
	setStr(&c.Port, "PORT")
	setStr(&c.LogLevelName, "LOG_LEVEL")
	setInt(&c.HTTPTimeoutSec, "HTTP_TIMEOUT_SECONDS")
	setStr(&c.SheetName, "SHEET_NAME")
	setStr(&c.StoreDriver, "STORE_DRIVER")
	setStr(&c.StoreDSN, "STORE_DSN")
	setStr(&c.StoreURL, "STORE_URL")
	setStr(&c.InsightsBaseURL, "INSIGHTS_BASE_URL")
	setStr(&c.InsightsToken, "INSIGHTS_ACCESS_TOKEN")
	setStr(&c.InsightsAccountID, "INSIGHTS_ACCOUNT_ID")
	setInt(&c.InsightsChunkDays, "INSIGHTS_CHUNK_DAYS")
	setInt(&c.InsightsPageLimit, "INSIGHTS_PAGE_LIMIT")
	if v := os.Getenv("INSIGHTS_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.InsightsRPS = f
		}
	}
	setStr(&c.RedisURL, "REDIS_URL")
	setInt(&c.SessionTTLMinutes, "SESSION_TTL_MINUTES")
	setStr(&c.DashUser, "DASH_USER")
	setStr(&c.DashSecret, "DASH_SECRET")
	setStr(&c.SinkURL, "SINK_URL")
	setStr(&c.SinkSecret, "SINK_SECRET")
}

func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = "8080"
	}
	if c.HTTPTimeoutSec <= 0 {
		c.HTTPTimeoutSec = 15
	}
	c.HTTPTimeout = time.Duration(c.HTTPTimeoutSec) * time.Second
	c.LogLevel = slog.LevelInfo
	if strings.EqualFold(c.LogLevelName, "debug") {
		c.LogLevel = slog.LevelDebug
	}
	if c.SheetName == "" {
		c.SheetName = "campaigns"
	}
	if c.InsightsBaseURL == "" {
		c.InsightsBaseURL = "https://graph.facebook.com/v19.0"
	}
	if c.InsightsChunkDays <= 0 || c.InsightsChunkDays > 30 {
		c.InsightsChunkDays = 30
	}
	if c.InsightsPageLimit <= 0 {
		c.InsightsPageLimit = 500
	}
	if c.InsightsRPS <= 0 {
		c.InsightsRPS = 2
	}
	if c.SessionTTLMinutes <= 0 {
		c.SessionTTLMinutes = 12 * 60
	}
}

func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Require returns ErrNotConfigured naming the first setting that is empty or
// still a placeholder.
func Require(settings ...Setting) error {
	for _, s := range settings {
		if IsPlaceholder(s.Value) {
			return fmt.Errorf("%s: %w", s.Name, ErrNotConfigured)
		}
	}
	return nil
}

// Setting pairs a value with the name reported when it is missing.
type Setting struct {
	Name  string
	Value string
}

// IsPlaceholder reports empty values and template leftovers such as
// "YOUR_ACCESS_TOKEN", "<account-id>" or "changeme".
func IsPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	u := strings.ToUpper(v)
	return strings.Contains(u, "YOUR_") || strings.Contains(u, "YOUR-") ||
		strings.Contains(v, "<") || strings.Contains(v, ">") ||
		u == "CHANGEME" || u == "TODO" || u == "XXX"
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
