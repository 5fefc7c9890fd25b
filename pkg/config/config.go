// Package config loads service configuration from config.yaml with
// environment variable overrides.
package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ontologies-api.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"9393"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                     // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis statistics cache (optional)
	Redis RedisConfig `yaml:"redis"`

	// Mapping engine tunables
	Mappings MappingsConfig `yaml:"mappings"`

	// Slice-based ontology filtering
	Slices SlicesConfig `yaml:"slices"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ontoportal"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ontologies_api"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"./migrations"`
}

// RedisConfig holds the optional Redis cache used by the statistics
// endpoints. An empty host disables caching entirely.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// MappingsConfig holds tunables for the mapping query engine.
type MappingsConfig struct {
	// RecentDefaultSize is the number of recent mappings returned when the
	// caller does not ask for a specific size.
	RecentDefaultSize int `yaml:"recent_default_size" env:"MAPPINGS_RECENT_DEFAULT_SIZE" env-default:"5"`
	// RecentMaxSize caps the size parameter of the recent-mappings endpoint.
	RecentMaxSize int `yaml:"recent_max_size" env:"MAPPINGS_RECENT_MAX_SIZE" env-default:"50"`
	// RecentFetchSlack is how many extra rows the recent-mappings query
	// fetches to compensate for mappings dropped because their ontology was
	// deleted.
	RecentFetchSlack int `yaml:"recent_fetch_slack" env:"MAPPINGS_RECENT_FETCH_SLACK" env-default:"15"`
	// StatsCacheTTLSeconds is the lifetime of cached mapping statistics.
	StatsCacheTTLSeconds int `yaml:"stats_cache_ttl_seconds" env:"MAPPINGS_STATS_CACHE_TTL_SECONDS" env-default:"86400"`
}

// SlicesConfig controls the slice-based visibility filter over ontology
// listings.
type SlicesConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLE_SLICES" env-default:"false"`
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on the
// returned Config. A missing config.yaml is not an error; environment
// variables and defaults apply on their own.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
