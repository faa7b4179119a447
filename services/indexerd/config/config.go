// Package config loads indexerd's YAML configuration, mirroring the
// gateway's config package in structure and defaulting style.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseConfig configures the Postgres connection.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DedupeConfig configures the goleveldb-backed swap-signature cache that
// fronts Postgres to absorb replayed account-stream records cheaply.
type DedupeConfig struct {
	Path string `yaml:"path"`
}

// WebhookSubscription is one registered fan-out endpoint.
type WebhookSubscription struct {
	Name     string `yaml:"name"`
	Endpoint string `yaml:"endpoint"`
	Secret   string `yaml:"secret"`
}

// AuthConfig gates the authenticated /ingest/* routes.
type AuthConfig struct {
	Enabled    bool   `yaml:"enabled"`
	HMACSecret string `yaml:"hmacSecret"`
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
}

// RateLimitConfig bounds the public read API.
type RateLimitConfig struct {
	RatePerSecond float64 `yaml:"ratePerSecond"`
	Burst         int     `yaml:"burst"`
}

// ExportConfig configures the periodic parquet export job.
type ExportConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Directory string        `yaml:"directory"`
	Interval  time.Duration `yaml:"interval"`
}

// Config is indexerd's top-level configuration.
type Config struct {
	ListenAddress string                `yaml:"listen"`
	Database      DatabaseConfig        `yaml:"database"`
	Dedupe        DedupeConfig          `yaml:"dedupe"`
	Webhooks      []WebhookSubscription `yaml:"webhooks"`
	Auth          AuthConfig            `yaml:"auth"`
	RateLimit     RateLimitConfig       `yaml:"rateLimit"`
	Export        ExportConfig          `yaml:"export"`
}

// Load reads path and applies defaults for anything left unset. An empty
// path returns the defaults unmodified, matching the gateway config's
// standalone-test convenience.
func Load(path string) (Config, error) {
	cfg := Config{
		ListenAddress: ":8090",
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Dedupe: DedupeConfig{Path: "indexerd-dedupe.db"},
		RateLimit: RateLimitConfig{
			RatePerSecond: 50,
			Burst:         100,
		},
		Export: ExportConfig{
			Directory: "indexerd-export",
			Interval:  time.Hour,
		},
	}
	if path == "" {
		return cfg, cfg.Validate()
	}
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	if err := yaml.NewDecoder(file).Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks required fields are present.
func (cfg Config) Validate() error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	for i, wh := range cfg.Webhooks {
		if wh.Endpoint == "" {
			return fmt.Errorf("webhooks[%d].endpoint is required", i)
		}
		if wh.Secret == "" {
			return fmt.Errorf("webhooks[%d].secret is required", i)
		}
	}
	return nil
}
