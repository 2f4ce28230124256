package retry

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// Config controls backoff between attempts.
type Config struct {
	// MaxAttempts caps the number of calls; 0 retries until ctx ends.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
	// Retryable decides whether an error is worth another attempt. Nil
	// retries every error.
	Retryable func(error) bool
}

// DefaultConfig suits short, contended operations such as SQLite writes.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 25 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
	}
}

// Permanent wraps an error so Run returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

type Manager struct {
	config Config
}

func NewManager(config Config) *Manager {
	return &Manager{config: config}
}

// Run calls fn until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx ends. The last error from fn is returned; a Permanent
// wrapper is removed first.
func (m *Manager) Run(ctx context.Context, fn func(context.Context) error) error {
	attempt := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if m.config.Retryable != nil && !m.config.Retryable(err) {
			return err
		}

		attempt++
		if m.config.MaxAttempts > 0 && attempt >= m.config.MaxAttempts {
			return err
		}

		timer := time.NewTimer(m.calculateDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (m *Manager) calculateDelay(attempt int) time.Duration {
	delay := float64(m.config.InitialDelay) * math.Pow(m.config.Multiplier, float64(attempt-1))
	if delay > float64(m.config.MaxDelay) {
		delay = float64(m.config.MaxDelay)
	}

	if m.config.Jitter > 0 {
		jitter := delay * m.config.Jitter
		if span := int64(jitter * 2); span > 0 {
			if n, err := rand.Int(rand.Reader, big.NewInt(span)); err == nil {
				delay += float64(n.Int64()) - jitter
			}
		}
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// NextDelay exposes the backoff schedule for logging.
func (m *Manager) NextDelay(attempt int) time.Duration {
	return m.calculateDelay(attempt)
}
