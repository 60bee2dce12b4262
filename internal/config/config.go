// Package config provides Viper-based configuration for pixconv
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/AnyUserName/pixconv/internal/decoder"
	"github.com/AnyUserName/pixconv/internal/encoder"
	"github.com/AnyUserName/pixconv/internal/ratelimit"
	"github.com/spf13/viper"
)

// Config represents the complete pixconv configuration
type Config struct {
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Decoder   DecoderConfig   `mapstructure:"decoder"`
	Encoder   EncoderConfig   `mapstructure:"encoder"`
	Probe     ProbeConfig     `mapstructure:"probe"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Output    OutputConfig    `mapstructure:"output"`
}

// RateLimitConfig controls the conversion quota
type RateLimitConfig struct {
	Window time.Duration `mapstructure:"window"`
	Max    int           `mapstructure:"max"`
	Store  string        `mapstructure:"store"` // file, redis, memory
	Key    string        `mapstructure:"key"`
	Dir    string        `mapstructure:"dir"` // file store directory
}

// RedisConfig is used when ratelimit.store is redis
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DecoderConfig selects the decode strategy
type DecoderConfig struct {
	Strategy string `mapstructure:"strategy"`
}

// EncoderConfig contains encoder settings
type EncoderConfig struct {
	CWebPPath string `mapstructure:"cwebp_path"`
	MaxPixels int    `mapstructure:"max_pixels"`
}

// ProbeConfig contains probing settings
type ProbeConfig struct {
	Workers int `mapstructure:"workers"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// OutputConfig contains output formatting settings
type OutputConfig struct {
	Colors bool `mapstructure:"colors"`
}

var envReplacer = strings.NewReplacer(".", "_")

// Rate limiter store kinds
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Load reads configuration from file and environment variables
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".pixconv")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/pixconv")
	}

	// PIXCONV_RATELIMIT_MAX etc.
	v.SetEnvPrefix("PIXCONV")
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values
func setDefaults(v *viper.Viper) {
	v.SetDefault("ratelimit.window", ratelimit.DefaultWindow)
	v.SetDefault("ratelimit.max", ratelimit.DefaultMax)
	v.SetDefault("ratelimit.store", StoreFile)
	v.SetDefault("ratelimit.key", ratelimit.DefaultKey)
	v.SetDefault("ratelimit.dir", defaultStateDir())

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("decoder.strategy", string(decoder.StrategyEager))

	v.SetDefault("encoder.cwebp_path", "")
	v.SetDefault("encoder.max_pixels", encoder.MaxSurfacePixels)

	v.SetDefault("probe.workers", 2)

	v.SetDefault("logging.level", "info")

	v.SetDefault("output.colors", true)
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pixconv"
	}
	return filepath.Join(home, ".config", "pixconv")
}

// validate checks the configuration for errors
func validate(cfg *Config) error {
	if cfg.RateLimit.Window <= 0 {
		return fmt.Errorf("invalid ratelimit.window: %s (must be positive)", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.Max <= 0 {
		return fmt.Errorf("invalid ratelimit.max: %d (must be positive)", cfg.RateLimit.Max)
	}
	if cfg.RateLimit.Key == "" {
		return fmt.Errorf("ratelimit.key must not be empty")
	}

	switch cfg.RateLimit.Store {
	case StoreFile:
		if cfg.RateLimit.Dir == "" {
			return fmt.Errorf("ratelimit.dir must be set for the file store")
		}
	case StoreRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr must be set for the redis store")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("invalid ratelimit.store: %s (must be file, redis, or memory)", cfg.RateLimit.Store)
	}

	if _, err := decoder.ParseStrategy(cfg.Decoder.Strategy); err != nil {
		return err
	}

	if cfg.Encoder.MaxPixels <= 0 {
		return fmt.Errorf("invalid encoder.max_pixels: %d", cfg.Encoder.MaxPixels)
	}

	if cfg.Probe.Workers <= 0 {
		return fmt.Errorf("invalid probe.workers: %d", cfg.Probe.Workers)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", cfg.Logging.Level)
	}

	return nil
}
