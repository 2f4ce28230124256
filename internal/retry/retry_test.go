package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestRunSucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := NewManager(fastConfig()).Run(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("busy")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunStopsAtMaxAttempts(t *testing.T) {
	busy := errors.New("busy")
	calls := 0
	err := NewManager(fastConfig()).Run(context.Background(), func(ctx context.Context) error {
		calls++
		return busy
	})
	assert.ErrorIs(t, err, busy)
	assert.Equal(t, 3, calls)
}

func TestRunNonRetryable(t *testing.T) {
	cfg := fastConfig()
	cfg.Retryable = func(err error) bool { return err.Error() == "busy" }

	calls := 0
	err := NewManager(cfg).Run(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("constraint failed")
	})
	assert.EqualError(t, err, "constraint failed")
	assert.Equal(t, 1, calls)
}

func TestRunPermanent(t *testing.T) {
	inner := errors.New("bad input")
	calls := 0
	err := NewManager(fastConfig()).Run(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(inner)
	})
	assert.Same(t, inner, err)
	assert.Equal(t, 1, calls)
	assert.Nil(t, Permanent(nil))
}

func TestRunContextCancelled(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 0
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := NewManager(cfg).Run(ctx, func(ctx context.Context) error { return errors.New("busy") })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	calls := 0
	err = NewManager(cfg).Run(ctx, func(ctx context.Context) error { calls++; return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, calls)
}

func TestNextDelay(t *testing.T) {
	m := NewManager(Config{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2})
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{3, 40 * time.Millisecond},
		{4, 50 * time.Millisecond},
		{10, 50 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.NextDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestNextDelayJitterBounds(t *testing.T) {
	m := NewManager(Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, Jitter: 0.1})
	for i := 0; i < 50; i++ {
		d := m.NextDelay(1)
		assert.GreaterOrEqual(t, d, 90*time.Millisecond)
		assert.LessOrEqual(t, d, 110*time.Millisecond)
	}
}

func TestDefaultConfigIsFinite(t *testing.T) {
	cfg := DefaultConfig()
	assert.Greater(t, cfg.MaxAttempts, 0)
	assert.LessOrEqual(t, cfg.MaxDelay, time.Second)
}
