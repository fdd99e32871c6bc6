package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// RetryConfig defines configuration for connection retry logic
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries" yaml:"max_retries"`
	RetryInterval time.Duration `json:"retry_interval" yaml:"retry_interval"`
	BackoffFactor float64       `json:"backoff_factor" yaml:"backoff_factor"`
	MaxInterval   time.Duration `json:"max_interval" yaml:"max_interval"`
}

// DefaultRetryConfig returns a default retry configuration. MaxRetries is
// zero: a lost connection stays lost unless the user asks for retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    0,
		RetryInterval: time.Second,
		BackoffFactor: 2.0,
		MaxInterval:   time.Second * 10,
	}
}

// Validate checks if the retry configuration is valid
func (r RetryConfig) Validate() error {
	if r.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}

	if r.RetryInterval < 0 {
		return fmt.Errorf("retry interval cannot be negative")
	}

	if r.BackoffFactor < 1.0 {
		return fmt.Errorf("backoff factor must be >= 1.0")
	}

	if r.MaxInterval < r.RetryInterval {
		return fmt.Errorf("max interval cannot be less than retry interval")
	}

	return nil
}

// Enabled reports whether any retry will be attempted.
func (r RetryConfig) Enabled() bool {
	return r.MaxRetries > 0
}

// next applies exponential backoff to interval
func (r RetryConfig) next(interval time.Duration) time.Duration {
	interval = time.Duration(float64(interval) * r.BackoffFactor)
	if interval > r.MaxInterval {
		interval = r.MaxInterval
	}
	return interval
}

// Reconnector reopens a Manager with exponential backoff. The Manager itself
// never reconnects; the application decides when to call Reconnect.
type Reconnector struct {
	manager *Manager
	config  RetryConfig
	logger  *slog.Logger

	// sleep waits between attempts; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewReconnector creates a reconnector for manager. A nil logger uses
// slog.Default().
func NewReconnector(manager *Manager, config RetryConfig, logger *slog.Logger) *Reconnector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconnector{
		manager: manager,
		config:  config,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Config returns the retry policy.
func (r *Reconnector) Config() RetryConfig {
	return r.config
}

// Reconnect tries to open the Manager: one immediate attempt, then up to
// MaxRetries more with growing delays. An already open Manager counts as
// success.
func (r *Reconnector) Reconnect(ctx context.Context) error {
	if err := r.config.Validate(); err != nil {
		return fmt.Errorf("invalid retry configuration: %w", err)
	}

	var lastErr error
	interval := r.config.RetryInterval

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, interval); err != nil {
				return err
			}
			interval = r.config.next(interval)
		}

		err := r.manager.Connect(ctx)
		if err == nil || errors.Is(err, ErrAlreadyOpen) {
			if attempt > 0 {
				r.logger.Info("reconnected", "attempts", attempt+1)
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		lastErr = err
		r.logger.Warn("connect attempt failed", "attempt", attempt+1, "error", err)
	}

	return fmt.Errorf("failed to connect after %d attempts: %w", r.config.MaxRetries+1, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
