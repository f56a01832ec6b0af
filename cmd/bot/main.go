// Command bot runs the chat moderation bot and its admin API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chatwarden/internal/bootstrap"
	"chatwarden/internal/config"
	"chatwarden/internal/observability"

	_ "github.com/joho/godotenv/autoload"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	closeLog, err := observability.Setup(observability.LogConfig{
		Level: cfg.LogLevel,
		JSON:  cfg.IsProduction(),
		File:  cfg.LogFile,
	})
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{RequireDatabase: cfg.IsProduction()})
	if err != nil {
		observability.Logger.Error("Failed to initialize runtime", "error", err)
		os.Exit(1)
	}

	runErr := rt.Run(ctx)
	if err := rt.Close(context.Background()); err != nil {
		observability.Logger.Error("Error releasing resources", "error", err)
	}
	if runErr != nil {
		observability.Logger.Error("Stopped with error", "error", runErr)
		os.Exit(1)
	}
	observability.Logger.Info("Shutdown complete")
}
