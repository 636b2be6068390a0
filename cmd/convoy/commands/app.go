package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/convoyops/convoy/pkg/config"
	"github.com/convoyops/convoy/pkg/inventory"
	"github.com/convoyops/convoy/pkg/modexec"
	"github.com/convoyops/convoy/pkg/policy"
	"github.com/convoyops/convoy/pkg/stores"
	"github.com/convoyops/convoy/pkg/telemetry"
)

// app bundles the wired components a command needs. Components are
// constructed lazily so a command only pays for what it uses.
type app struct {
	cfg    *config.Config
	tel    *telemetry.Telemetry
	logger zerolog.Logger

	channel  *modexec.Channel
	resolver *inventory.Resolver
	inv      *inventory.Inventory

	store  *stores.SQLiteStore
	engine *policy.Engine
}

// newApp loads configuration and builds the shared components.
func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	tel, err := telemetry.New(telemetryConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry: %w", err)
	}
	if err := tel.Metrics.StartMetricsServer(); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	channel := modexec.NewChannel(cfg.ModexecConfig(), tel.Logger)
	loader := inventory.NewLoader(channel, tel.Logger)
	resolver := inventory.NewResolver(loader, cfg.InventoryResolverConfig(), tel.Logger)

	return &app{
		cfg:      cfg,
		tel:      tel,
		logger:   tel.Logger,
		channel:  channel,
		resolver: resolver,
	}, nil
}

// telemetryConfig maps the operator configuration onto the telemetry
// bundle. Telemetry is wired only here, at the command layer.
func telemetryConfig(cfg *config.Config) *telemetry.Config {
	tc := telemetry.DefaultConfig()

	if cfg.Telemetry.LogLevel != "" {
		tc.Logging.Level = cfg.Telemetry.LogLevel
	}
	if verbose {
		tc.Logging.Level = "debug"
	}
	if cfg.Telemetry.LogFormat != "" {
		tc.Logging.Format = cfg.Telemetry.LogFormat
	}

	tc.Metrics.Enabled = cfg.Telemetry.MetricsEnabled
	if cfg.Telemetry.MetricsAddr != "" {
		tc.Metrics.ListenAddress = cfg.Telemetry.MetricsAddr
	}

	tc.Tracing.Enabled = cfg.Telemetry.TracingEnabled
	if cfg.Telemetry.OTLPEndpoint != "" {
		tc.Tracing.Exporter = "otlp"
		tc.Tracing.Endpoint = cfg.Telemetry.OTLPEndpoint
	}

	return tc
}

// resolveInventory runs one resolution pass over the configured
// sources. The result is memoized for the lifetime of the command so
// dynamic sources execute at most once.
func (a *app) resolveInventory(ctx context.Context) (*inventory.Inventory, error) {
	if a.inv != nil {
		return a.inv, nil
	}

	sources := a.cfg.InventorySources()
	if len(sources) == 0 {
		return nil, fmt.Errorf("no inventory sources configured")
	}

	inv, err := a.resolver.Resolve(ctx, sources)
	if err != nil {
		a.tel.Metrics.RecordResolution(telemetry.StatusFailed)
		return nil, err
	}

	hosts := len(inv.Hosts())
	groups := len(inv.Groups())
	a.tel.Metrics.RecordResolution(telemetry.StatusOK)
	a.tel.Metrics.SetInventorySize(hosts, groups)
	_ = a.tel.Events.PublishInventoryResolved(hosts, groups)

	a.inv = inv
	return inv, nil
}

// openStore opens the result cache if enabled in the configuration.
// Returns nil without error when the cache is disabled.
func (a *app) openStore(ctx context.Context) (*stores.SQLiteStore, error) {
	if !a.cfg.Cache.Enabled {
		return nil, nil
	}
	if a.store != nil {
		return a.store, nil
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: a.cfg.Cache.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open cache store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate cache store: %w", err)
	}

	a.store = store
	return store, nil
}

// requireStore is openStore for commands that cannot run without the cache.
func (a *app) requireStore(ctx context.Context) (*stores.SQLiteStore, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("cache is disabled in configuration")
	}
	return store, nil
}

// policyEngine builds the policy engine with built-in and configured
// policies loaded. Returns nil without error when policy is disabled.
func (a *app) policyEngine(ctx context.Context) (*policy.Engine, error) {
	if !a.cfg.Policy.Enabled {
		return nil, nil
	}
	if a.engine != nil {
		return a.engine, nil
	}

	engine, err := policy.NewEngine(a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy engine: %w", err)
	}
	if len(a.cfg.Policy.Paths) > 0 {
		if err := engine.LoadPolicies(ctx, a.cfg.Policy.Paths); err != nil {
			return nil, fmt.Errorf("failed to load policies: %w", err)
		}
	}

	a.engine = engine
	return engine, nil
}

// close releases any components holding resources.
func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.tel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.tel.Shutdown(ctx)
	}
}
