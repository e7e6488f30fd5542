// Package config loads resolver and tool configuration from defaults, an
// optional config file, and AIRCRAFTDB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment variable names, e.g.
// AIRCRAFTDB_BASE_URL or AIRCRAFTDB_REDIS_ADDR.
const EnvPrefix = "AIRCRAFTDB"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete configuration.
type Config struct {
	BaseURL              string        `mapstructure:"base_url"`
	MaxConcurrentFetches int           `mapstructure:"max_concurrent_fetches"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	UserAgent            string        `mapstructure:"user_agent"`
	RateLimit            float64       `mapstructure:"rate_limit"`
	RetryAttempts        int           `mapstructure:"retry_attempts"`
	ListenAddr           string        `mapstructure:"listen_addr"`

	Redis RedisConfig `mapstructure:"redis"`
	Log   LogConfig   `mapstructure:"log"`
	Feed  FeedConfig  `mapstructure:"feed"`
}

// RedisConfig configures the optional shared document store. An empty Addr
// disables it.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// FeedConfig configures nearest aircraft selection.
type FeedConfig struct {
	Radius      float64 `mapstructure:"radius"`       // metres
	MaxAltitude float64 `mapstructure:"max_altitude"` // feet
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", "")
	v.SetDefault("max_concurrent_fetches", 2)
	v.SetDefault("request_timeout", 30*time.Second)
	v.SetDefault("user_agent", "aircraftdb/0.1.0")
	v.SetDefault("rate_limit", 0) // unlimited
	v.SetDefault("retry_attempts", 1)
	v.SetDefault("listen_addr", ":8080")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "aircraftdb")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("feed.radius", 5000)
	v.SetDefault("feed.max_altitude", 10000)
}

// Default returns the configuration with only defaults applied.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := unmarshal(v)
	if err != nil {
		// Defaults always decode.
		panic(err)
	}
	return cfg
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply. The result is validated.
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewViper returns a viper instance with defaults and environment binding.
// Callers may bind command line flags to it before calling LoadWithViper.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// LoadWithViper decodes and validates configuration from v.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base_url is required", ErrInvalidConfig)
	case !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://"):
		return fmt.Errorf("%w: base_url must be http or https (got %q)", ErrInvalidConfig, c.BaseURL)
	case c.MaxConcurrentFetches < 1:
		return fmt.Errorf("%w: max_concurrent_fetches must be at least 1", ErrInvalidConfig)
	case c.RetryAttempts < 1:
		return fmt.Errorf("%w: retry_attempts must be at least 1", ErrInvalidConfig)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: rate_limit must not be negative", ErrInvalidConfig)
	case c.Feed.Radius <= 0:
		return fmt.Errorf("%w: feed.radius must be positive", ErrInvalidConfig)
	}
	return nil
}
