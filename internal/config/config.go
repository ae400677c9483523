// Package config loads txwatch settings from flags, environment and an
// optional YAML file through viper.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const EnvPrefix = "TXWATCH"

type Config struct {
	Poll          PollConfig
	API           APIConfig
	Server        ServerConfig
	Notifications NotificationsConfig
	Sandbox       SandboxConfig
	Logging       LoggingConfig
}

type PollConfig struct {
	Interval     time.Duration
	FetchTimeout time.Duration
}

// APIConfig points at the fraud-scoring service.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

type ServerConfig struct {
	Addr string
}

type NotificationsConfig struct {
	// Limit caps retained notifications; 0 keeps everything.
	Limit int
}

type SandboxConfig struct {
	Addr            string
	DBPath          string
	AmountThreshold decimal.Decimal
	SeedFile        string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// SetDefaults registers every key so AutomaticEnv can resolve it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("poll.interval", "10s")
	v.SetDefault("poll.fetch_timeout", "5s")
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", "10s")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("notifications.limit", 100)
	v.SetDefault("sandbox.addr", ":8000")
	v.SetDefault("sandbox.db_path", "sandbox.db")
	v.SetDefault("sandbox.amount_threshold", "1500")
	v.SetDefault("sandbox.seed_file", "testdata/transactions.json")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// BindEnv makes TXWATCH_POLL_INTERVAL and friends override file values.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the resolved settings out of v and validates them.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	var err error

	if cfg.Poll.Interval, err = ParseInterval(v.GetString("poll.interval")); err != nil {
		return Config{}, fmt.Errorf("poll.interval: %w", err)
	}
	if cfg.Poll.FetchTimeout, err = ParseInterval(v.GetString("poll.fetch_timeout")); err != nil {
		return Config{}, fmt.Errorf("poll.fetch_timeout: %w", err)
	}
	if cfg.API.Timeout, err = ParseInterval(v.GetString("api.timeout")); err != nil {
		return Config{}, fmt.Errorf("api.timeout: %w", err)
	}
	if cfg.Sandbox.AmountThreshold, err = decimal.NewFromString(v.GetString("sandbox.amount_threshold")); err != nil {
		return Config{}, fmt.Errorf("sandbox.amount_threshold: %w", err)
	}

	cfg.API.BaseURL = strings.TrimRight(v.GetString("api.base_url"), "/")
	cfg.Server.Addr = v.GetString("server.addr")
	cfg.Notifications.Limit = v.GetInt("notifications.limit")
	cfg.Sandbox.Addr = v.GetString("sandbox.addr")
	cfg.Sandbox.DBPath = v.GetString("sandbox.db_path")
	cfg.Sandbox.SeedFile = v.GetString("sandbox.seed_file")
	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.Format = v.GetString("logging.format")

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks invariants that parsing alone does not catch.
func (c Config) Validate() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.Notifications.Limit < 0 {
		errs = append(errs, fmt.Errorf("notifications.limit must not be negative, got %d", c.Notifications.Limit))
	}
	if !c.Sandbox.AmountThreshold.IsPositive() {
		errs = append(errs, fmt.Errorf("sandbox.amount_threshold must be positive, got %s", c.Sandbox.AmountThreshold))
	}
	if c.Poll.FetchTimeout > c.Poll.Interval {
		errs = append(errs, fmt.Errorf("poll.fetch_timeout (%s) exceeds poll.interval (%s)", c.Poll.FetchTimeout, c.Poll.Interval))
	}
	return errors.Join(errs...)
}

// ParseInterval accepts a bare integer as seconds or a Go duration string.
// Results are truncated to whole milliseconds and must be positive.
func ParseInterval(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}

	var d time.Duration
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		d = time.Duration(n) * time.Second
	} else {
		d, err = time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
	}

	d = d.Truncate(time.Millisecond)
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be at least 1ms", s)
	}
	return d, nil
}
