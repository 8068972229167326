package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Start returns a channel closed once a termination signal arrives.
// Consumers are already running on the goroutine manager at this point.
func (a *App) Start() <-chan struct{} {
	terminateChan := make(chan struct{})

	slog.Info("mailing consumers started", "consumers", a.config.GetArray("modules.mailing.consumer_names"))

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sigint)

		select {
		case <-sigint:
		case <-a.ctx.Done():
		}

		if a.cancel != nil {
			a.cancel()
		}

		close(terminateChan)

		slog.Info("application gracefully shutdown")
	}()

	return terminateChan
}

// Stop cancels consumers, drains the worker pool and closes resources.
func (a *App) Stop(ctx context.Context) {
	if a.cancel != nil {
		a.cancel()
	}

	slog.InfoContext(ctx, "waiting for all goroutine to finish")
	if err := a.goroutine.Wait(); err != nil {
		slog.ErrorContext(ctx, "error from goroutines executions", "error", err)
	}
	slog.InfoContext(ctx, "all goroutines have finished successfully")

	for _, closer := range a.closers {
		if err := closer.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resources", "name", closer.name, "error", err)
		}
	}

	stats := a.pool.Stats()
	slog.InfoContext(ctx, "worker pool stopped",
		"submitted", stats.Submitted,
		"completed", stats.Completed,
		"rejected", stats.Rejected,
		"dropped", stats.Dropped,
	)
}
