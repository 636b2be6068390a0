// Package telemetry provides observability instrumentation for Convoy.
//
// The telemetry package integrates structured logging (zerolog), distributed
// tracing (OpenTelemetry), metrics (Prometheus), and event publishing into a
// unified system for monitoring module invocations and inventory resolution.
//
// # Architecture
//
// The telemetry system is built on four pillars:
//
//  1. Structured Logging - zerolog loggers handed to engine components
//  2. Distributed Tracing - OpenTelemetry traces with OTLP and stdout exporters
//  3. Metrics Collection - Prometheus metrics for invocations, inventory, cache
//  4. Event Publishing - Async event stream for audit and notifications
//
// # Usage
//
// Initialize telemetry at application startup:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tel.Shutdown(context.Background())
//
//	if err := tel.Metrics.StartMetricsServer(); err != nil {
//	    log.Fatal(err)
//	}
//
// Engine components take a zerolog.Logger and derive component children:
//
//	channel := modexec.NewChannel(cfg.ModexecConfig(), tel.Logger)
//
// Tracing installs a global provider, so components acquire their tracer with
// otel.Tracer and spans nest automatically across subsystem boundaries.
//
// # Metrics
//
// All record methods are safe no-ops when metrics are disabled, so callers
// never need to branch on configuration.
package telemetry
