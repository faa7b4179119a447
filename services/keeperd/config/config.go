// Package config loads keeperd's TOML configuration, mirroring the
// teacher's config/config.go load-then-validate shape but with BurntSushi/
// toml in place of the chain's native format.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// MarketConfig binds one market address to its own update cadence, per
// spec.md §6.3.
type MarketConfig struct {
	MarketAddress     string `toml:"market_address"`
	MinUpdateInterval int64  `toml:"min_update_interval_secs"`
}

// Config is keeperd's full runtime configuration.
type Config struct {
	Cluster           string         `toml:"cluster"`
	ProgramID         string         `toml:"program_id"`
	Markets           []MarketConfig `toml:"markets"`
	MinBalance        uint64         `toml:"min_balance_lamports"`
	PollIntervalSecs  int64          `toml:"poll_interval_secs"`
	DryRun            bool           `toml:"dry_run"`
	KeystorePath      string         `toml:"keystore_path"`
	BboltPath         string         `toml:"bbolt_path"`
	RequestTimeoutSec int            `toml:"request_timeout_seconds"`
	MetricsAddress    string         `toml:"metrics_address"`
}

// RequestTimeout returns the configured per-RPC-call deadline, defaulting
// to 15 seconds when unset, matching the oracle-attesterd default.
func (c Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// Load reads a TOML file and applies defaults, same two-phase pattern as
// the teacher's gateway config loader but for the keeper's env-override
// surface (spec.md §6.3's `TEST_<NAME>` variants).
func Load(path string) (Config, error) {
	cfg := Config{
		Cluster:          "mainnet",
		MinBalance:       1_000_000,
		PollIntervalSecs: 30,
		BboltPath:        "keeperd.db",
		MetricsAddress:   "127.0.0.1:9464",
	}
	if strings.TrimSpace(path) == "" {
		return Config{}, fmt.Errorf("config path required")
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets integration tests pin cluster/program_id without
// editing the TOML file on disk.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("TEST_CLUSTER")); v != "" {
		cfg.Cluster = v
	}
	if v := strings.TrimSpace(os.Getenv("TEST_PROGRAM_ID")); v != "" {
		cfg.ProgramID = v
	}
	if v := strings.TrimSpace(os.Getenv("TEST_DRY_RUN")); v == "true" {
		cfg.DryRun = true
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Cluster) == "" {
		return fmt.Errorf("cluster required")
	}
	if strings.TrimSpace(c.ProgramID) == "" {
		return fmt.Errorf("program_id required")
	}
	if len(c.Markets) == 0 {
		return fmt.Errorf("at least one market must be configured")
	}
	for i, m := range c.Markets {
		if strings.TrimSpace(m.MarketAddress) == "" {
			return fmt.Errorf("markets[%d].market_address required", i)
		}
		if m.MinUpdateInterval <= 0 {
			return fmt.Errorf("markets[%d].min_update_interval_secs must be positive", i)
		}
	}
	if c.PollIntervalSecs <= 0 {
		return fmt.Errorf("poll_interval_secs must be positive")
	}
	return nil
}
