// Package shutdown runs a blocking component under SIGINT/SIGTERM handling
// with a bounded stop sequence.
package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Run starts the runner and blocks until it returns or a termination signal
// arrives. On a signal the runner's context is canceled and stop is called
// with a timeout-bound context; a stop sequence that overruns the timeout is
// abandoned with a warning.
func Run(
	ctx context.Context,
	logger *slog.Logger,
	timeout time.Duration,
	runner func(ctx context.Context) error,
	stop func(ctx context.Context) error,
) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	runDone := make(chan error, 1)
	go func() {
		runDone <- runner(runCtx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received signal, stopping", "signal", sig)
		cancel()

		stopCtx, stopCancel := context.WithTimeout(context.Background(), timeout)
		defer stopCancel()

		if err := stop(stopCtx); err != nil {
			logger.Error("stop sequence failed", "error", err)
		}

		select {
		case err := <-runDone:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		case <-stopCtx.Done():
			logger.Warn("stop timeout exceeded")
		}
		logger.Info("shutdown complete")
		return nil

	case err := <-runDone:
		return err
	}
}
