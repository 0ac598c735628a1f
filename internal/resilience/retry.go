package resilience

import (
	"context"
	"math"
	"time"

	vbErrors "vbackup/internal/errors"
)

// RetryConfig defines exponential backoff retry behavior.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns a sensible default for a controller wake-up
// or a remote sync upload attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryableOperation is an operation that may be retried.
type RetryableOperation func() error

// RetryExecutor drives retry logic with exponential backoff.
type RetryExecutor struct {
	name   string
	config RetryConfig
}

// NewRetryExecutor creates a retry executor named for the operation it wraps.
func NewRetryExecutor(name string, config RetryConfig) *RetryExecutor {
	if config.Multiplier <= 1.0 {
		config.Multiplier = 2.0
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	return &RetryExecutor{name: name, config: config}
}

// Execute runs operation with retry, no deadline beyond the attempt count.
func (r *RetryExecutor) Execute(operation RetryableOperation) error {
	return r.ExecuteWithContext(context.Background(), operation)
}

// ExecuteWithContext runs operation with retry, honoring ctx cancellation
// between attempts — this is the elapsed-time pattern spec §5 describes
// for a controller's bounded wait, generalized to any retried call.
func (r *RetryExecutor) ExecuteWithContext(ctx context.Context, operation RetryableOperation) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == r.config.MaxAttempts {
			break
		}

		delay := r.calculateDelay(attempt)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return vbErrors.NewRetryExhaustedError(r.name, r.config.MaxAttempts, lastErr)
}

func (r *RetryExecutor) calculateDelay(attempt int) time.Duration {
	multiplier := math.Pow(r.config.Multiplier, float64(attempt-1))
	delay := time.Duration(float64(r.config.InitialDelay) * multiplier)
	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	return delay
}

// IsRetryExhaustedError checks if an error came from a retry executor
// giving up.
func IsRetryExhaustedError(err error) bool {
	return vbErrors.IsCode(err, vbErrors.ErrCodeRetryExhausted)
}
