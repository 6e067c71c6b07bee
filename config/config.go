package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/krisalay/query-cache/eviction"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// FileLog configures log rotation. An empty Filename logs to stderr.
type FileLog struct {
	Filename   string `yaml:"filename"`
	MaxSize    int    `yaml:"max_size"` // MB
	MaxDays    int    `yaml:"max_days"`
	MaxBackups int    `yaml:"max_backups"`
}

// Log holds logger settings.
type Log struct {
	Level  string  `yaml:"level"`  // debug, info, warn, error
	Format string  `yaml:"format"` // console or json
	File   FileLog `yaml:"file"`
}

// Cache holds the store settings shared by every capability of a client.
type Cache struct {
	// Shards is the number of independent entry tables per store.
	Shards int `yaml:"shards"`

	// MaxEntries bounds the number of entries per store, 0 means unbounded.
	MaxEntries int `yaml:"max_entries"`

	// Eviction is LRU, LFU or FIFO. Only used with MaxEntries.
	Eviction string `yaml:"eviction"`

	// StaleTime is how long a settled result stays fresh, 0 means until invalidated.
	StaleTime time.Duration `yaml:"stale_time"`

	// CleanTime is how long an entry without subscribers is kept, 0 means forever.
	CleanTime time.Duration `yaml:"clean_time"`

	// RefreshInterval re-fetches subscribed entries periodically, 0 disables it.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// Metrics holds the Prometheus settings.
type Metrics struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// Config holds the complete configuration.
type Config struct {
	Log     Log     `yaml:"log"`
	Cache   Cache   `yaml:"cache"`
	Metrics Metrics `yaml:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: Log{
			Level:  "info",
			Format: "console",
		},
		Cache: Cache{
			Shards:   16,
			Eviction: string(eviction.LRU),
		},
		Metrics: Metrics{
			Namespace: "querycache",
		},
	}
}

// Load reads a YAML file on top of Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	var problems []string

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("log level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("log format %q is not one of console, json", c.Log.Format))
	}

	problems = append(problems, c.Cache.problems()...)

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		problems = append(problems, "metrics namespace is required when metrics are enabled")
	}

	if len(problems) > 0 {
		return errors.Wrap(ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// Validate checks the cache section alone.
func (c Cache) Validate() error {
	if problems := c.problems(); len(problems) > 0 {
		return errors.Wrap(ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func (c Cache) problems() []string {
	var problems []string
	if c.Shards <= 0 {
		problems = append(problems, "cache shards must be positive")
	}
	if c.MaxEntries < 0 {
		problems = append(problems, "cache max_entries must not be negative")
	}
	if c.MaxEntries > 0 {
		if err := eviction.PolicyType(c.Eviction).Validate(); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if c.StaleTime < 0 {
		problems = append(problems, "cache stale_time must not be negative")
	}
	if c.CleanTime < 0 {
		problems = append(problems, "cache clean_time must not be negative")
	}
	if c.RefreshInterval < 0 {
		problems = append(problems, "cache refresh_interval must not be negative")
	}
	return problems
}
