package bootstrap

import (
	"context"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chiro/erp/internal/platform/messaging"
)

// DefaultShutdownTimeout bounds the drain of servers, relay and consumers.
const DefaultShutdownTimeout = 30 * time.Second

const idempotencyCleanupInterval = 10 * time.Minute

// Run starts every configured component and blocks until ctx is cancelled,
// SIGINT or SIGTERM arrives, or a component fails. It then drains and
// releases everything and returns the first component error, if any.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() { firstErr = err })
		cancel()
	}
	spawn := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				a.Logger.Error("Component failed", zap.String("component", name), zap.Error(err))
				fail(err)
			}
		}()
	}

	for _, srv := range a.servers {
		spawn("http", srv.Run)
	}
	for _, c := range a.consumers {
		spawn("consumer", c.Run)
	}
	if a.relay != nil {
		a.relay.Start(ctx)
	}
	if store, ok := a.idempotency.(*messaging.InMemoryIdempotencyStore); ok && a.publisher != nil {
		spawn("idempotency-cleanup", func(ctx context.Context) error {
			ticker := time.NewTicker(idempotencyCleanupInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					store.Cleanup()
				}
			}
		})
	}

	a.Logger.Info("Service started")
	<-ctx.Done()
	a.Logger.Info("Shutting down service")

	timeout := a.Config.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if a.relay != nil {
		if err := a.relay.Stop(shutdownCtx); err != nil {
			a.Logger.Warn("Outbox relay did not stop in time", zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		a.Logger.Warn("Components did not stop within the shutdown timeout", zap.Duration("timeout", timeout))
	}

	if err := a.closeAll(); err != nil {
		a.Logger.Warn("Error releasing resources", zap.Error(err))
	}
	a.Logger.Info("Service exited gracefully")
	_ = a.Logger.Sync()
	return firstErr
}
