package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"tradesignal/internal/indicator"
	"tradesignal/internal/portfolio"
	"tradesignal/internal/strategy"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Engine struct {
		Symbols         []string `yaml:"symbols"`
		Schedule        string   `yaml:"schedule"`
		BarLimit        int      `yaml:"bar_limit"`
		MarketHoursOnly bool     `yaml:"market_hours_only"`
	} `yaml:"engine"`

	Indicators indicator.Config     `yaml:"indicators"`
	Signal     strategy.Config      `yaml:"signal"`
	Risk       portfolio.RiskParams `yaml:"risk"`

	Store struct {
		Driver string `yaml:"driver"` // sqlite3 | postgres
		DSN    string `yaml:"dsn"`
	} `yaml:"store"`
	Redis struct {
		Addr      string        `yaml:"addr"` // empty disables the Redis sink
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		LatestTTL time.Duration `yaml:"latest_ttl"`
	} `yaml:"redis"`
	NATS struct {
		URL       string `yaml:"url"` // empty disables the NATS sink
		Prefix    string `yaml:"prefix"`
		JetStream bool   `yaml:"jetstream"`
	} `yaml:"nats"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Fallback struct {
		Enabled bool  `yaml:"enabled"`
		Seed    int64 `yaml:"seed"`
	} `yaml:"fallback"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Indicators: indicator.DefaultConfig(),
		Signal:     strategy.DefaultConfig(),
		Risk:       portfolio.DefaultRiskParams(),
	}
	cfg.Engine.Symbols = []string{"NIFTY", "BANKNIFTY", "RELIANCE", "TCS", "HDFC", "ICICIBANK", "INFY", "ITC"}
	cfg.Engine.Schedule = "@every 2s"
	cfg.Engine.BarLimit = 300
	cfg.Store.Driver = "sqlite3"
	cfg.Store.DSN = "data/bars.db"
	cfg.Redis.LatestTTL = 30 * time.Minute
	cfg.NATS.Prefix = "signals"
	cfg.HTTP.Addr = ":8080"
	cfg.Metrics.Addr = ":9090"
	cfg.Log.Level = "info"
	cfg.Fallback.Enabled = true
	cfg.Fallback.Seed = 1
	return cfg
}

// Load builds the configuration: built-in defaults, then .env (if present),
// then the YAML file at path (if present), then environment overrides.
// The result is validated.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := getEnv("SYMBOLS", ""); v != "" {
		c.Engine.Symbols = ParseSymbols(v)
	}
	c.Engine.Schedule = getEnv("SCHEDULE", c.Engine.Schedule)
	c.Engine.BarLimit = getEnvInt("BAR_LIMIT", c.Engine.BarLimit)
	c.Engine.MarketHoursOnly = getEnvBool("MARKET_HOURS_ONLY", c.Engine.MarketHoursOnly)

	c.Store.Driver = getEnv("STORE_DRIVER", c.Store.Driver)
	c.Store.DSN = getEnv("STORE_DSN", c.Store.DSN)

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)

	c.NATS.URL = getEnv("NATS_URL", c.NATS.URL)

	c.HTTP.Addr = getEnv("HTTP_ADDR", c.HTTP.Addr)
	c.Metrics.Addr = getEnv("METRICS_ADDR", c.Metrics.Addr)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Fallback.Enabled = getEnvBool("FALLBACK_ENABLED", c.Fallback.Enabled)
}

// Validate checks engine, indicator, signal and risk parameters.
func (c *Config) Validate() error {
	if len(c.Engine.Symbols) == 0 {
		return errors.New("config: engine.symbols must not be empty")
	}
	if c.Engine.BarLimit <= 0 {
		return fmt.Errorf("config: engine.bar_limit must be positive, got %d", c.Engine.BarLimit)
	}
	if c.Engine.Schedule == "" {
		return errors.New("config: engine.schedule is required")
	}
	switch c.Store.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("config: store.driver must be sqlite3 or postgres, got %q", c.Store.Driver)
	}
	if err := c.Indicators.Validate(); err != nil {
		return fmt.Errorf("config: indicators: %w", err)
	}
	if err := c.Signal.Validate(); err != nil {
		return fmt.Errorf("config: signal: %w", err)
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("config: risk: %w", err)
	}
	return nil
}

// ParseSymbols splits a comma-separated symbol list, upper-casing and
// dropping blanks.
func ParseSymbols(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q: %v", key, v, err)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] ignoring invalid %s=%q: %v", key, v, err)
		return fallback
	}
	return b
}
