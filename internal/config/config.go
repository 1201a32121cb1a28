// Package config loads yomiwake settings from defaults, an optional TOML file,
// a .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/japaniel/yomiwake/pkg/knowledge"
	"github.com/japaniel/yomiwake/pkg/wanikani"
)

// DefaultPath is read when no config file is named and it exists.
const DefaultPath = "yomiwake.toml"

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)

// ErrNoProvider is returned by Validate when neither an API token nor a
// snapshot file is configured.
var ErrNoProvider = errors.New("no provider configured: set WANIKANI_API_TOKEN or a snapshot file")

// Config is the full runtime configuration.
type Config struct {
	WaniKani WaniKaniConfig `toml:"wanikani"`
	// Snapshot, when set, replaces the API with a local export.
	Snapshot string      `toml:"snapshot"`
	Store    StoreConfig `toml:"store"`
	Scan     ScanConfig  `toml:"scan"`
	Log      LogConfig   `toml:"log"`
}

// WaniKaniConfig holds API client settings.
type WaniKaniConfig struct {
	Token   string        `toml:"token"`
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"timeout"`
}

// StoreConfig selects where the knowledge cache lives.
type StoreConfig struct {
	Driver      string `toml:"driver"`
	SQLitePath  string `toml:"sqlite_path"`
	RedisURL    string `toml:"redis_url"`
	RedisPrefix string `toml:"redis_prefix"`
	CacheKey    string `toml:"cache_key"`
}

// ScanConfig tunes the article scanner.
type ScanConfig struct {
	Workers int `toml:"workers"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		WaniKani: WaniKaniConfig{
			BaseURL: wanikani.DefaultBaseURL,
			Timeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver:      DriverSQLite,
			SQLitePath:  "yomiwake.db",
			RedisPrefix: "yomiwake:",
			CacheKey:    knowledge.DefaultKey,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds a Config. path names a TOML file that must exist; an empty path
// reads DefaultPath if present. envFile names a dotenv file; an empty envFile
// reads .env if present. Variables already in the environment win over the
// dotenv file.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if envFile == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read .env: %w", err)
		}
	} else if err := godotenv.Load(envFile); err != nil {
		return nil, fmt.Errorf("read %s: %w", envFile, err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from YOMIWAKE_* variables and WANIKANI_API_TOKEN.
func (c *Config) ApplyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	str("WANIKANI_API_TOKEN", &c.WaniKani.Token)
	str("YOMIWAKE_API_TOKEN", &c.WaniKani.Token)
	str("YOMIWAKE_API_URL", &c.WaniKani.BaseURL)
	str("YOMIWAKE_SNAPSHOT", &c.Snapshot)
	str("YOMIWAKE_STORE", &c.Store.Driver)
	str("YOMIWAKE_SQLITE_PATH", &c.Store.SQLitePath)
	str("YOMIWAKE_REDIS_URL", &c.Store.RedisURL)
	str("YOMIWAKE_REDIS_PREFIX", &c.Store.RedisPrefix)
	str("YOMIWAKE_CACHE_KEY", &c.Store.CacheKey)
	str("YOMIWAKE_LOG_LEVEL", &c.Log.Level)
	str("YOMIWAKE_LOG_FORMAT", &c.Log.Format)

	if v := os.Getenv("YOMIWAKE_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("YOMIWAKE_HTTP_TIMEOUT: %w", err)
		}
		c.WaniKani.Timeout = d
	}
	if v := os.Getenv("YOMIWAKE_SCAN_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("YOMIWAKE_SCAN_WORKERS: %w", err)
		}
		c.Scan.Workers = n
	}
	return nil
}

// ValidateStore checks the store and logging settings.
func (c *Config) ValidateStore() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite driver")
		}
	case DriverRedis:
		if c.Store.RedisURL == "" {
			return errors.New("store.redis_url is required for the redis driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.CacheKey == "" {
		return errors.New("store.cache_key must not be empty")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Scan.Workers < 0 {
		return fmt.Errorf("scan.workers must not be negative, got %d", c.Scan.Workers)
	}
	return nil
}

// Validate checks the whole configuration, including that a provider source
// is available.
func (c *Config) Validate() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if c.Snapshot == "" && c.WaniKani.Token == "" {
		return ErrNoProvider
	}
	if c.Snapshot == "" && c.WaniKani.Timeout <= 0 {
		return fmt.Errorf("wanikani.timeout must be positive, got %s", c.WaniKani.Timeout)
	}
	return nil
}
