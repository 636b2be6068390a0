package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/convoyops/convoy/cmd/convoy/commands"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Build metadata, injected via -ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	bootstrapLogger()

	// SIGINT/SIGTERM cancel the command context so in-flight
	// invocations get a chance to wind down.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Execute(ctx, Version, Commit, BuildDate); err != nil {
		log.Error().Err(err).Msg("convoy exited with error")
		os.Exit(1)
	}
}

// bootstrapLogger sets up the process-global logger used before the
// configured telemetry stack takes over. LOG_LEVEL overrides the
// default info level.
func bootstrapLogger() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	level := zerolog.InfoLevel
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		if parsed, err := zerolog.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
}
