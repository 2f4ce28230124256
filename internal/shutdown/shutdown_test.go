package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmmcquay/gammon-mcp/internal/logging"
)

func TestShutdownReverseOrder(t *testing.T) {
	m := NewManager(logging.Discard())

	var mu sync.Mutex
	var order []string
	for _, name := range []string{"store", "health", "mcp"} {
		name := name
		m.Register(name, func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, m.Shutdown(time.Second))
	assert.Equal(t, []string{"mcp", "health", "store"}, order)
}

func TestShutdownCollectsErrors(t *testing.T) {
	m := NewManager(logging.Discard())
	boom := errors.New("boom")
	called := 0
	m.Register("a", func(ctx context.Context) error { called++; return boom })
	m.Register("b", func(ctx context.Context) error { called++; return nil })
	m.Register("c", func(ctx context.Context) error { called++; return fmt.Errorf("wrapped: %w", boom) })

	err := m.Shutdown(time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "a: boom")
	assert.Contains(t, err.Error(), "c: wrapped: boom")
	assert.Equal(t, 3, called)
}

func TestShutdownOnce(t *testing.T) {
	m := NewManager(logging.Discard())
	calls := 0
	m.Register("x", func(ctx context.Context) error { calls++; return nil })

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Shutdown(time.Second)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, calls)

	select {
	case <-m.Done():
	default:
		t.Fatal("Expected Done to be closed")
	}
	assert.NoError(t, m.WaitForShutdown())
}

func TestShutdownTimeout(t *testing.T) {
	m := NewManager(logging.Discard())
	ranAfter := false
	m.Register("after", func(ctx context.Context) error { ranAfter = true; return nil })
	m.Register("stuck", func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	start := time.Now()
	err := m.Shutdown(50 * time.Millisecond)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, ranAfter)
}

func TestHandleSignalsContextCancel(t *testing.T) {
	m := NewManager(logging.Discard())
	stopped := make(chan struct{})
	m.Register("x", func(ctx context.Context) error { close(stopped); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	m.HandleSignals(ctx)
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected shutdown after context cancel")
	}
	assert.NoError(t, m.WaitForShutdown())
}

func TestNoComponents(t *testing.T) {
	assert.NoError(t, NewManager(logging.Discard()).Shutdown(time.Second))
}
