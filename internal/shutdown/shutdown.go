package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmmcquay/gammon-mcp/internal/logging"
)

// DefaultTimeout bounds the whole shutdown sequence.
const DefaultTimeout = 30 * time.Second

type component struct {
	name string
	fn   func(context.Context) error
}

// Manager stops registered components in reverse registration order, one at
// a time, so the match store closes only after the servers using it.
type Manager struct {
	logger       logging.ContextLogger
	components   []component
	mu           sync.Mutex
	done         chan struct{}
	shutdownOnce sync.Once
	err          error
}

func NewManager(logger logging.ContextLogger) *Manager {
	return &Manager{
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components = append(m.components, component{name: name, fn: fn})
}

// HandleSignals shuts down on SIGINT or SIGTERM, or when ctx ends.
func (m *Manager) HandleSignals(ctx context.Context) {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer stop()
		select {
		case <-sigCtx.Done():
			m.logger.Info("Received shutdown signal", "cause", context.Cause(sigCtx).Error())
			m.Shutdown(DefaultTimeout)
		case <-m.done:
		}
	}()
}

// Shutdown runs at most once. A component that exceeds the remaining time
// is abandoned; the rest are then called directly with the expired context
// and must return promptly.
func (m *Manager) Shutdown(timeout time.Duration) error {
	m.shutdownOnce.Do(func() {
		m.logger.Info("Starting graceful shutdown", "timeout", timeout.String())
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		m.mu.Lock()
		components := make([]component, len(m.components))
		copy(components, m.components)
		m.mu.Unlock()

		var errs []error
		for i := len(components) - 1; i >= 0; i-- {
			if err := m.stop(ctx, components[i]); err != nil {
				errs = append(errs, err)
			}
		}
		m.err = errors.Join(errs...)

		if m.err != nil {
			m.logger.Error("Graceful shutdown completed with errors", "errors", len(errs))
		} else {
			m.logger.Info("Graceful shutdown completed successfully")
		}
		close(m.done)
	})
	<-m.done
	return m.err
}

func (m *Manager) stop(ctx context.Context, c component) error {
	m.logger.Info("Shutting down component", "component", c.name)
	start := time.Now()

	var err error
	if ctx.Err() != nil {
		err = c.fn(ctx)
	} else {
		result := make(chan error, 1)
		go func() { result <- c.fn(ctx) }()

		select {
		case err = <-result:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	elapsed := time.Since(start).String()
	if err != nil {
		m.logger.Error("Failed to shutdown component", "component", c.name, "error", err.Error(), "elapsed", elapsed)
		return fmt.Errorf("%s: %w", c.name, err)
	}
	m.logger.Info("Component shutdown complete", "component", c.name, "elapsed", elapsed)
	return nil
}

func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// WaitForShutdown blocks until shutdown completes and returns its error.
func (m *Manager) WaitForShutdown() error {
	<-m.done
	return m.err
}
