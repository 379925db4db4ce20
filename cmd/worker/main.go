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

// Worker process entrypoint: outbox relays, the stale-disbursement
// sweep, the upcoming-notice sweep, and the disbursement event consumer.
func main() {
	logging.Setup()

	app, err := bootstrap.BuildWorker()
	if err != nil {
		slog.Error("worker bootstrap failed", "error", err.Error())
		os.Exit(1)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("worker shutdown cleanup failed", "error", err.Error())
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		slog.Error("worker run failed", "error", err.Error())
		os.Exit(1)
	}
}
