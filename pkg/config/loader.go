package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/convoyops/convoy/pkg/inventory"
	"github.com/convoyops/convoy/pkg/modexec"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "CONVOY_"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Modules: ModulesConfig{
			ArgsVar:        modexec.DefaultArgsVar,
			DefaultTimeout: Duration(5 * time.Minute),
			KillGrace:      Duration(modexec.DefaultKillGrace),
			MaxParallel:    10,
		},
		Inventory: InventoryConfig{
			RootGroup:      inventory.DefaultRootGroup,
			UngroupedGroup: inventory.DefaultUngroupedGroup,
		},
		Cache: CacheConfig{
			Path: "convoy-cache.db",
			TTL:  Duration(10 * time.Minute),
		},
		Policy: PolicyConfig{
			Mode: "enforcing",
		},
		Telemetry: TelemetryConfig{
			LogLevel:    "info",
			LogFormat:   "console",
			MetricsAddr: ":9632",
		},
	}
}

// Load reads the configuration file at path, overlays environment variable
// overrides, and validates the result. An empty path yields the defaults with
// environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration against its struct constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if cfg.Modules.ArgsVar == "" {
		return fmt.Errorf("configuration validation failed: modules.args_var must not be empty")
	}
	if cfg.Inventory.RootGroup == cfg.Inventory.UngroupedGroup {
		return fmt.Errorf("configuration validation failed: root and ungrouped group names must differ")
	}
	return nil
}

// applyEnvOverrides overlays CONVOY_* environment variables onto the
// configuration. Only scalar knobs useful for one-off runs are exposed.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvPrefix + "ARGS_VAR"); v != "" {
		cfg.Modules.ArgsVar = v
	}
	if v := os.Getenv(EnvPrefix + "MAX_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Modules.MaxParallel = n
		}
	}
	if v := os.Getenv(EnvPrefix + "MODULE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Modules.DefaultTimeout = Duration(d)
		}
	}
	if v := os.Getenv(EnvPrefix + "ROOT_GROUP"); v != "" {
		cfg.Inventory.RootGroup = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Telemetry.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "CACHE_PATH"); v != "" {
		cfg.Cache.Path = v
	}
}
