package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JaINTP/vdl/internal/progress"
)

// Config defines configuration for the vdl CLI.
type Config struct {
	Bucket      string        `yaml:"bucket"`
	PageSize    int           `yaml:"page_size"`
	ByPublisher bool          `yaml:"by_publisher"`
	Timeout     time.Duration `yaml:"timeout"`
	ChunkSize   int           `yaml:"chunk_size"`
	RateLimit   int64         `yaml:"rate_limit"`
	Retry       RetryConfig   `yaml:"retry"`
}

// RetryConfig defines search retry behavior.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Bucket:    DefaultBucketURL(),
		PageSize:  10,
		Timeout:   10 * time.Second,
		ChunkSize: 1024,
		Retry: RetryConfig{
			Attempts:   2,
			Backoff:    500 * time.Millisecond,
			MaxBackoff: 5 * time.Second,
		},
	}
}

// DefaultBucketURL returns a file:// bucket URL rooted at the user's
// Downloads folder. The create_dir parameter makes the driver create the
// directory on first use.
func DefaultBucketURL() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return "file://" + filepath.ToSlash(filepath.Join(home, "Downloads")) + "?create_dir=true"
}

// yamlConfig is used for YAML unmarshaling with string sizes and durations.
type yamlConfig struct {
	Bucket      string          `yaml:"bucket"`
	PageSize    int             `yaml:"page_size"`
	ByPublisher bool            `yaml:"by_publisher"`
	Timeout     string          `yaml:"timeout"`
	ChunkSize   string          `yaml:"chunk_size"`
	RateLimit   string          `yaml:"rate_limit"`
	Retry       yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Bucket != "" {
		cfg.Bucket = yc.Bucket
	}
	if yc.PageSize != 0 {
		cfg.PageSize = yc.PageSize
	}
	cfg.ByPublisher = yc.ByPublisher
	if yc.Timeout != "" {
		d, err := time.ParseDuration(yc.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if yc.ChunkSize != "" {
		size, err := progress.ParseBytes(yc.ChunkSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse chunk_size: %w", err)
		}
		cfg.ChunkSize = int(size)
	}
	if yc.RateLimit != "" {
		size, err := progress.ParseBytes(yc.RateLimit)
		if err != nil {
			return Config{}, fmt.Errorf("parse rate_limit: %w", err)
		}
		cfg.RateLimit = size
	}
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the VDL_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("VDL_BUCKET"); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv("VDL_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse VDL_PAGE_SIZE: %w", err)
		}
		c.PageSize = n
	}
	if v := os.Getenv("VDL_BY_PUBLISHER"); v != "" {
		c.ByPublisher = v == "true" || v == "1"
	}
	if v := os.Getenv("VDL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse VDL_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("VDL_CHUNK_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse VDL_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = int(size)
	}
	if v := os.Getenv("VDL_RATE_LIMIT"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse VDL_RATE_LIMIT: %w", err)
		}
		c.RateLimit = size
	}
	if v := os.Getenv("VDL_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse VDL_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("VDL_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse VDL_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("VDL_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse VDL_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("config: bucket is required")
	}
	if c.PageSize <= 0 {
		return errors.New("config: page_size must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("config: timeout must be positive")
	}
	if c.RateLimit < 0 {
		return errors.New("config: rate_limit must not be negative")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Bucket != "" {
		c.Bucket = override.Bucket
	}
	if override.PageSize != 0 {
		c.PageSize = override.PageSize
	}
	if override.ByPublisher {
		c.ByPublisher = override.ByPublisher
	}
	if override.Timeout != 0 {
		c.Timeout = override.Timeout
	}
	if override.ChunkSize != 0 {
		c.ChunkSize = override.ChunkSize
	}
	if override.RateLimit != 0 {
		c.RateLimit = override.RateLimit
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	return c
}
