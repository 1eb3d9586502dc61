package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// DefaultShutdownTimeout bounds how long a drain may take. In-flight
// analytics queries finish quickly; anything slower is stuck.
const DefaultShutdownTimeout = 30 * time.Second

// ShutdownFunc releases one resource during shutdown. The context
// carries the drain deadline.
type ShutdownFunc func(context.Context) error

// ShutdownManager drains the telemetry service on SIGINT/SIGTERM: it
// stops the API server first so no new queries arrive, then runs the
// registered cleanup functions concurrently under one deadline.
type ShutdownManager struct {
	logger  *Logger
	server  *http.Server
	cleanup []ShutdownFunc
	timeout time.Duration
	mu      sync.Mutex
}

// NewShutdownManager builds a manager for a server. A zero timeout
// uses DefaultShutdownTimeout.
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = DefaultShutdownTimeout
	}
	return &ShutdownManager{
		logger:  logger,
		server:  server,
		timeout: timeout,
	}
}

// RegisterShutdownFunc adds a cleanup step: closing the Redis client,
// flushing the tracer provider, stopping the health server.
func (sm *ShutdownManager) RegisterShutdownFunc(fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.cleanup = append(sm.cleanup, fn)
}

// WaitForShutdown blocks until a termination signal arrives, then
// drains. Returns an error when the drain times out or any cleanup
// step fails.
func (sm *ShutdownManager) WaitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	sm.logger.WithField("signal", sig.String()).Info("starting graceful shutdown")

	ctx, cancel := context.WithTimeout(context.Background(), sm.timeout)
	defer cancel()

	if sm.server != nil {
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("API server shutdown failed")
			return fmt.Errorf("server shutdown: %w", err)
		}
		sm.logger.Info("API server drained")
	}

	sm.mu.Lock()
	funcs := sm.cleanup
	sm.mu.Unlock()

	var wg sync.WaitGroup
	errChan := make(chan error, len(funcs))
	for _, fn := range funcs {
		wg.Add(1)
		go func(fn ShutdownFunc) {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				errChan <- err
			}
		}(fn)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sm.logger.Warn("shutdown deadline reached before cleanup finished")
		return fmt.Errorf("shutdown timeout after %s", sm.timeout)
	}

	close(errChan)
	var failed int
	for err := range errChan {
		sm.logger.WithError(err).Error("cleanup step failed")
		failed++
	}
	if failed > 0 {
		return fmt.Errorf("shutdown completed with %d failed cleanup steps", failed)
	}

	sm.logger.Info("graceful shutdown complete")
	return nil
}

// GracefulShutdown is the one-call form: register the cleanup steps
// and wait with the default timeout.
func GracefulShutdown(logger *Logger, server *http.Server, cleanup ...ShutdownFunc) error {
	manager := NewShutdownManager(logger, server, DefaultShutdownTimeout)
	for _, fn := range cleanup {
		manager.RegisterShutdownFunc(fn)
	}
	return manager.WaitForShutdown()
}
