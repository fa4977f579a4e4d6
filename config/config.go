package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"spreadwatch/internal/gear"
	"spreadwatch/internal/store"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration. Values come from defaults,
// then an optional YAML file, then environment variables.
type Config struct {
	// Polling
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxChecks    int           `yaml:"max_checks"` // 0 = run until stopped

	// Gear engine
	UpperThreshold float64       `yaml:"upper_threshold"`
	LowerThreshold float64       `yaml:"lower_threshold"`
	GearStep       float64       `yaml:"gear_step"`
	Dwell          time.Duration `yaml:"dwell"`

	// Price feed
	FeedBaseURL     string        `yaml:"feed_base_url"`
	TickerA         string        `yaml:"ticker_a"`
	TickerB         string        `yaml:"ticker_b"`
	QuoteBucket     string        `yaml:"quote_bucket"`
	FeedTTL         time.Duration `yaml:"feed_ttl"`
	FeedTimeout     time.Duration `yaml:"feed_timeout"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`

	// Persistence
	StoreBackend  string `yaml:"store_backend"`
	StatePath     string `yaml:"state_path"`
	SQLitePath    string `yaml:"sqlite_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisKey      string `yaml:"redis_key"`
	BadgerPath    string `yaml:"badger_path"`
	DatabaseURL   string `yaml:"database_url"`

	// Notification
	BotToken   string `yaml:"bot_token"`
	ChatID     string `yaml:"chat_id"`
	WebhookURL string `yaml:"webhook_url"`

	// Infrastructure
	HTTPAddr string `yaml:"http_addr"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		PollInterval: 10 * time.Second,

		UpperThreshold: 16.0,
		LowerThreshold: 10.0,
		GearStep:       0.5,
		Dwell:          time.Second,

		FeedBaseURL:     "https://omni-client-api.prod.ap-northeast-1.variational.io",
		TickerA:         "PAXG",
		TickerB:         "XAUT",
		QuoteBucket:     "size_1k",
		FeedTTL:         5 * time.Second,
		FeedTimeout:     10 * time.Second,
		BreakerFailures: 5,
		BreakerCooldown: 30 * time.Second,

		StoreBackend: store.BackendFile,
		StatePath:    "data/gear_state.json",
		SQLitePath:   "data/spreadwatch.db",
		RedisAddr:    "localhost:6379",
		RedisKey:     "spreadwatch:gears",
		BadgerPath:   "data/badger",

		HTTPAddr: ":9096",
		LogLevel: "info",
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// any), then environment overrides. Malformed values are reported together.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error

	c.PollInterval = envDuration("POLL_INTERVAL", c.PollInterval, &errs)
	c.MaxChecks = envInt("MAX_CHECKS", c.MaxChecks, &errs)

	c.UpperThreshold = envFloat("UPPER_THRESHOLD", c.UpperThreshold, &errs)
	c.LowerThreshold = envFloat("LOWER_THRESHOLD", c.LowerThreshold, &errs)
	c.GearStep = envFloat("GEAR_STEP", c.GearStep, &errs)
	c.Dwell = envDuration("DWELL", c.Dwell, &errs)

	c.FeedBaseURL = getEnv("FEED_BASE_URL", c.FeedBaseURL)
	c.TickerA = getEnv("TICKER_A", c.TickerA)
	c.TickerB = getEnv("TICKER_B", c.TickerB)
	c.QuoteBucket = getEnv("QUOTE_BUCKET", c.QuoteBucket)
	c.FeedTTL = envDuration("FEED_TTL", c.FeedTTL, &errs)
	c.FeedTimeout = envDuration("FEED_TIMEOUT", c.FeedTimeout, &errs)
	c.BreakerFailures = envInt("BREAKER_FAILURES", c.BreakerFailures, &errs)
	c.BreakerCooldown = envDuration("BREAKER_COOLDOWN", c.BreakerCooldown, &errs)

	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)
	c.StatePath = getEnv("STATE_PATH", c.StatePath)
	c.SQLitePath = getEnv("SQLITE_PATH", c.SQLitePath)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisKey = getEnv("REDIS_KEY", c.RedisKey)
	c.BadgerPath = getEnv("BADGER_PATH", c.BadgerPath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)

	c.BotToken = getEnv("BOT_TOKEN", c.BotToken)
	c.ChatID = getEnv("CHAT_ID", c.ChatID)
	c.WebhookURL = getEnv("WEBHOOK_URL", c.WebhookURL)

	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)

	return errors.Join(errs...)
}

// Gear returns the engine configuration.
func (c *Config) Gear() gear.Config {
	return gear.Config{
		UpperThreshold: c.UpperThreshold,
		LowerThreshold: c.LowerThreshold,
		GearStep:       c.GearStep,
		Dwell:          c.Dwell,
		TickerA:        c.TickerA,
		TickerB:        c.TickerB,
	}
}

// Store returns the persistence configuration. The Redis breaker is left
// for the caller to attach.
func (c *Config) Store() store.Config {
	return store.Config{
		Backend:       c.StoreBackend,
		StatePath:     c.StatePath,
		SQLitePath:    c.SQLitePath,
		BadgerPath:    c.BadgerPath,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisKey:      c.RedisKey,
		DatabaseURL:   c.DatabaseURL,
	}
}

// TelegramEnabled reports whether both Telegram settings are present.
func (c *Config) TelegramEnabled() bool {
	return c.BotToken != "" && c.ChatID != ""
}

// Validate returns every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Gear().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Store().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be > 0, got %s", c.PollInterval))
	}
	if c.MaxChecks < 0 {
		errs = append(errs, fmt.Errorf("MAX_CHECKS must be >= 0, got %d", c.MaxChecks))
	}
	// the cache treats a zero TTL as unset, so caching cannot be switched off
	if c.FeedTTL <= 0 {
		errs = append(errs, fmt.Errorf("FEED_TTL must be > 0, got %s", c.FeedTTL))
	}
	if c.FeedTimeout <= 0 {
		errs = append(errs, fmt.Errorf("FEED_TIMEOUT must be > 0, got %s", c.FeedTimeout))
	}
	if c.FeedBaseURL == "" {
		errs = append(errs, errors.New("FEED_BASE_URL is required"))
	}
	if c.TickerA == "" || c.TickerB == "" {
		errs = append(errs, errors.New("TICKER_A and TICKER_B are required"))
	} else if strings.EqualFold(c.TickerA, c.TickerB) {
		errs = append(errs, fmt.Errorf("TICKER_A and TICKER_B must differ, both are %q", c.TickerA))
	}
	if (c.BotToken == "") != (c.ChatID == "") {
		errs = append(errs, errors.New("BOT_TOKEN and CHAT_ID must be set together"))
	}
	if c.BotToken != "" && !strings.Contains(c.BotToken, ":") {
		errs = append(errs, errors.New("BOT_TOKEN looks malformed (expected '<id>:<secret>')"))
	}
	return errors.Join(errs...)
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envFloat(key string, fallback float64, errs *[]error) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*errs = append(*errs, fmt.Errorf("%s: invalid number %q", key, v))
		return fallback
	}
	return f
}

func envInt(key string, fallback int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return fallback
	}
	return n
}

// envDuration accepts Go durations ("1.5s") or bare seconds ("10").
func envDuration(key string, fallback time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}
