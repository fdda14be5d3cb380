package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/sudo-init-do/lexhub/internal/logging"
)

type Stoppable interface {
	Shutdown(ctx context.Context) error
}

// Func adapts a plain function to Stoppable.
type Func func(ctx context.Context) error

func (f Func) Shutdown(ctx context.Context) error { return f(ctx) }

// Graceful blocks until one of signals arrives, then stops each component in
// order within one shared timeout.
func Graceful(signals []os.Signal, timeout time.Duration, log *logging.Logger, stop ...Stoppable) {
	sigCtx, cancelSignals := signal.NotifyContext(context.Background(), signals...)
	defer cancelSignals()

	<-sigCtx.Done()
	log.Info("shutdown signal received")

	if err := Stop(timeout, stop...); err != nil {
		log.Warn("graceful shutdown completed with error", "err", err)
	} else {
		log.Info("graceful shutdown completed successfully")
	}
}

// Stop shuts the components down in order and joins their errors.
func Stop(timeout time.Duration, stop ...Stoppable) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	for _, s := range stop {
		if err := s.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
