package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/convoyops/convoy/pkg/inventory"
	"github.com/convoyops/convoy/pkg/modexec"
)

// Duration wraps time.Duration so YAML values like "30s" parse directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the top-level engine configuration.
type Config struct {
	// Modules configures module invocation.
	Modules ModulesConfig `yaml:"modules" json:"modules"`

	// Inventory configures inventory resolution.
	Inventory InventoryConfig `yaml:"inventory" json:"inventory"`

	// Cache configures the local result cache.
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Policy configures policy enforcement.
	Policy PolicyConfig `yaml:"policy" json:"policy"`

	// Telemetry configures logging, metrics, and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// ModulesConfig configures how module executables are invoked.
type ModulesConfig struct {
	// ArgsVar is the environment variable carrying encoded module arguments.
	ArgsVar string `yaml:"args_var" json:"args_var"`

	// DefaultTimeout bounds a single module invocation. Zero means no limit.
	DefaultTimeout Duration `yaml:"default_timeout" json:"default_timeout"`

	// KillGrace is how long a timed-out module gets before a hard kill.
	KillGrace Duration `yaml:"kill_grace" json:"kill_grace"`

	// MaxParallel bounds concurrent module invocations.
	MaxParallel int `yaml:"max_parallel" json:"max_parallel" validate:"omitempty,min=1,max=256"`

	// Paths lists directories searched for module executables.
	Paths []string `yaml:"paths" json:"paths,omitempty"`
}

// InventoryConfig configures inventory sources and group layout.
type InventoryConfig struct {
	// RootGroup is the group every host belongs to.
	RootGroup string `yaml:"root_group" json:"root_group"`

	// UngroupedGroup collects hosts that belong to no other group.
	UngroupedGroup string `yaml:"ungrouped_group" json:"ungrouped_group"`

	// Sources lists inventory sources, applied in order.
	Sources []SourceConfig `yaml:"sources" json:"sources,omitempty" validate:"omitempty,dive"`

	// ContinueOnSourceError skips failing sources instead of aborting the pass.
	ContinueOnSourceError bool `yaml:"continue_on_source_error" json:"continue_on_source_error"`
}

// SourceConfig declares one inventory source in the configuration file.
type SourceConfig struct {
	// Name labels the source in errors and logs.
	Name string `yaml:"name" json:"name,omitempty"`

	// Type selects the source implementation (static, exec, starlark).
	Type string `yaml:"type" json:"type" validate:"required,oneof=static exec starlark"`

	// Path is the file or executable path.
	Path string `yaml:"path" json:"path" validate:"required"`

	// Timeout bounds dynamic source invocations.
	Timeout Duration `yaml:"timeout" json:"timeout,omitempty"`
}

// CacheConfig configures the local invocation and host-vars cache.
type CacheConfig struct {
	// Enabled turns the cache on.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Path is the SQLite database path.
	Path string `yaml:"path" json:"path,omitempty"`

	// TTL is how long cached entries stay valid.
	TTL Duration `yaml:"ttl" json:"ttl"`
}

// PolicyConfig configures policy enforcement.
type PolicyConfig struct {
	// Enabled indicates if policy enforcement is enabled.
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Paths lists policy file paths.
	Paths []string `yaml:"paths" json:"paths,omitempty"`

	// Mode is the enforcement mode (advisory, enforcing).
	Mode string `yaml:"mode" json:"mode,omitempty" validate:"omitempty,oneof=advisory enforcing"`
}

// TelemetryConfig configures logging, metrics, and tracing.
type TelemetryConfig struct {
	// LogLevel is the minimum log level.
	LogLevel string `yaml:"log_level" json:"log_level" validate:"omitempty,oneof=trace debug info warn error"`

	// LogFormat selects console or JSON log output.
	LogFormat string `yaml:"log_format" json:"log_format" validate:"omitempty,oneof=console json"`

	// MetricsEnabled turns the Prometheus endpoint on.
	MetricsEnabled bool `yaml:"metrics_enabled" json:"metrics_enabled"`

	// MetricsAddr is the listen address for the metrics endpoint.
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr,omitempty"`

	// TracingEnabled turns OpenTelemetry tracing on.
	TracingEnabled bool `yaml:"tracing_enabled" json:"tracing_enabled"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint.
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint,omitempty"`
}

// ModexecConfig converts the modules section to a channel configuration.
func (c *Config) ModexecConfig() modexec.Config {
	return modexec.Config{
		ArgsVar:   c.Modules.ArgsVar,
		KillGrace: c.Modules.KillGrace.Std(),
	}
}

// InventoryResolverConfig converts the inventory section to a resolver configuration.
func (c *Config) InventoryResolverConfig() inventory.Config {
	return inventory.Config{
		RootGroup:             c.Inventory.RootGroup,
		UngroupedGroup:        c.Inventory.UngroupedGroup,
		ContinueOnSourceError: c.Inventory.ContinueOnSourceError,
	}
}

// InventorySources converts the declared sources to resolver sources.
func (c *Config) InventorySources() []inventory.Source {
	sources := make([]inventory.Source, len(c.Inventory.Sources))
	for i, sc := range c.Inventory.Sources {
		sources[i] = inventory.Source{
			Name:    sc.Name,
			Type:    inventory.SourceType(sc.Type),
			Path:    sc.Path,
			Timeout: sc.Timeout.Std(),
		}
	}
	return sources
}
