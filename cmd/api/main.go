package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tippy/internal/app/bootstrap"
	"tippy/internal/platform/logging"
)

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (ports + adapters + use cases).
// 3) Start HTTP server.
func main() {
	logging.Setup()

	app, err := bootstrap.BuildAPI()
	if err != nil {
		slog.Error("api bootstrap failed", "error", err.Error())
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("api shutdown cleanup failed", "error", err.Error())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		slog.Error("api run failed", "error", err.Error())
		os.Exit(1)
	}
}
