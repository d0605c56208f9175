package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"schoolpulse/internal/app"
	"schoolpulse/internal/config"
	"schoolpulse/internal/infrastructure"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to initialize logger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application error", slog.String("error", err.Error()))
		stop()
		infrastructure.CloseLogFile()
		os.Exit(1)
	}
}
