package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen" json:"listen" jsonschema:"default=:8080,description=HTTP server listen address"`
		Timeout time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=30s,description=HTTP server timeout"`
		BaseURL string        `yaml:"base_url" json:"base_url" jsonschema:"description=Public base URL used in returned feed references"`
	} `yaml:"server" json:"server" jsonschema:"description=Server configuration"`

	Storage struct {
		Dir             string        `yaml:"dir" json:"dir" jsonschema:"default=./generated_feeds,description=Directory for generated feed documents"`
		DSN             string        `yaml:"dsn" json:"dsn" jsonschema:"default=file:feedsmith.db?cache=shared&mode=rwc,description=Registry database connection string"`
		MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns" jsonschema:"default=10,description=Maximum number of open connections"`
		MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns" jsonschema:"default=5,description=Maximum number of idle connections"`
		ConnMaxLifetime int           `yaml:"conn_max_lifetime" json:"conn_max_lifetime" jsonschema:"default=3600,description=Connection maximum lifetime in seconds"`
		Retention       time.Duration `yaml:"retention" json:"retention" jsonschema:"description=Delete generated feeds older than this (0 keeps them forever)"`
	} `yaml:"storage" json:"storage" jsonschema:"description=Storage configuration"`

	Fetch struct {
		Timeout     time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=10s,description=Per-source fetch timeout"`
		UserAgent   string        `yaml:"user_agent" json:"user_agent" jsonschema:"description=User agent sent with source fetches"`
		MaxBodySize int64         `yaml:"max_body_size" json:"max_body_size" jsonschema:"default=10485760,description=Maximum response body size in bytes"`
	} `yaml:"fetch" json:"fetch" jsonschema:"description=Source fetching configuration"`

	Aggregate AggregateConfig `yaml:"aggregate" json:"aggregate" jsonschema:"description=Feed aggregation configuration"`

	Extraction ExtractionConfig `yaml:"extraction" json:"extraction" jsonschema:"description=Page excerpt extraction configuration"`
}

// AggregateConfig holds aggregation policy settings
type AggregateConfig struct {
	DefaultTitle string `yaml:"default_title" json:"default_title" jsonschema:"default=Generated RSS Feed,description=Channel title used when the request supplies none"`
	PageEntryCap int    `yaml:"page_entry_cap" json:"page_entry_cap" jsonschema:"default=5,minimum=1,description=Maximum entries taken from a non-feed page"`
	Language     string `yaml:"language" json:"language" jsonschema:"default=en-us,description=Channel language"`
	Creator      string `yaml:"creator" json:"creator" jsonschema:"default=system,description=Attribution label for generated items"`
}

// ExtractionConfig holds page excerpt extraction settings, used when a
// non-feed source exposes no discoverable feed at all
type ExtractionConfig struct {
	Enabled       bool `yaml:"enabled" json:"enabled" jsonschema:"default=false,description=Synthesize an excerpt entry for pages without a feed"`
	MinTextLength int  `yaml:"min_text_length" json:"min_text_length" jsonschema:"default=100,description=Minimum extracted text length to consider valid"`
	ExcerptLength int  `yaml:"excerpt_length" json:"excerpt_length" jsonschema:"default=500,description=Maximum excerpt length in characters"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	// validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, used when
// no config file is given
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults fills zero values with defaults
func (c *Config) setDefaults() {
	// set defaults for server
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Server.Timeout == 0 {
		c.Server.Timeout = 30 * time.Second
	}

	// set defaults for storage
	if c.Storage.Dir == "" {
		c.Storage.Dir = "./generated_feeds"
	}
	if c.Storage.DSN == "" {
		c.Storage.DSN = "file:feedsmith.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if c.Storage.MaxOpenConns == 0 {
		c.Storage.MaxOpenConns = 10
	}
	if c.Storage.MaxIdleConns == 0 {
		c.Storage.MaxIdleConns = 5
	}
	if c.Storage.ConnMaxLifetime == 0 {
		c.Storage.ConnMaxLifetime = 3600
	}

	// set defaults for fetch
	if c.Fetch.Timeout == 0 {
		c.Fetch.Timeout = 10 * time.Second
	}
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	}
	if c.Fetch.MaxBodySize == 0 {
		c.Fetch.MaxBodySize = 10 * 1024 * 1024
	}

	// set defaults for aggregation
	if c.Aggregate.DefaultTitle == "" {
		c.Aggregate.DefaultTitle = "Generated RSS Feed"
	}
	if c.Aggregate.PageEntryCap == 0 {
		c.Aggregate.PageEntryCap = 5
	}
	if c.Aggregate.Language == "" {
		c.Aggregate.Language = "en-us"
	}
	if c.Aggregate.Creator == "" {
		c.Aggregate.Creator = "system"
	}

	// set defaults for extraction
	if c.Extraction.MinTextLength == 0 {
		c.Extraction.MinTextLength = 100
	}
	if c.Extraction.ExcerptLength == 0 {
		c.Extraction.ExcerptLength = 500
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	// validate server config
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	// validate fetch config
	if cfg.Fetch.Timeout < time.Second {
		return fmt.Errorf("fetch timeout must be at least 1 second")
	}
	if cfg.Fetch.MaxBodySize < 1024 {
		return fmt.Errorf("fetch max_body_size must be at least 1KB")
	}

	// validate aggregate config
	if cfg.Aggregate.PageEntryCap < 1 {
		return fmt.Errorf("aggregate page_entry_cap must be at least 1")
	}

	// validate storage config
	if cfg.Storage.Retention < 0 {
		return fmt.Errorf("storage retention must be non-negative")
	}

	// validate extraction config
	if cfg.Extraction.Enabled {
		if cfg.Extraction.MinTextLength < 0 {
			return fmt.Errorf("extraction min_text_length must be non-negative")
		}
		if cfg.Extraction.ExcerptLength < 1 {
			return fmt.Errorf("extraction excerpt_length must be at least 1")
		}
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetBaseURL returns the public base URL used in returned feed references,
// empty when references should stay relative
func (c *Config) GetBaseURL() string {
	return c.Server.BaseURL
}

// GetAggregateConfig returns aggregation policy configuration
func (c *Config) GetAggregateConfig() AggregateConfig {
	return c.Aggregate
}

// GetExtractionConfig returns page excerpt extraction configuration
func (c *Config) GetExtractionConfig() ExtractionConfig {
	return c.Extraction
}

// GetFullConfig returns the full configuration
func (c *Config) GetFullConfig() *Config {
	return c
}
