package engine

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const defaultShutdownTimeout = 30 * time.Second

// ErrShutdownTimeout is returned when a cancelled run does not stop in time.
var ErrShutdownTimeout = errors.New("shutdown timeout expired")

// RunWithGracefulShutdown runs the orchestrator and cancels it on SIGTERM/SIGINT.
// Cancellation reaches the engine through the context; the run then aborts
// between steps. If it has not returned within timeout, ErrShutdownTimeout is
// returned and the caller is expected to exit.
func RunWithGracefulShutdown(ctx context.Context, o *Orchestrator, timeout time.Duration) (*Summary, error) {
	if timeout == 0 {
		timeout = defaultShutdownTimeout
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Listen for OS signals.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	type result struct {
		sum *Summary
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		sum, err := o.Run(ctx)
		resCh <- result{sum, err}
	}()

	select {
	case sig := <-sigCh:
		o.rc.Logger.Warn("received shutdown signal; cancelling run", "signal", sig)
		cancel()

		select {
		case r := <-resCh:
			return r.sum, r.err
		case <-time.After(timeout):
			o.rc.Logger.Error("shutdown timeout expired, forcing exit", "timeout", timeout)
			return nil, ErrShutdownTimeout
		}

	case r := <-resCh:
		return r.sum, r.err
	}
}
