package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestRetryExecutor_SucceedsOnFirstAttempt(t *testing.T) {
	r := NewRetryExecutor("test", RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})
	calls := 0
	err := r.Execute(func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call, got: %d", calls)
	}
}

func TestRetryExecutor_RetriesThenSucceeds(t *testing.T) {
	r := NewRetryExecutor("test", RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})
	calls := 0
	err := r.Execute(func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got: %d", calls)
	}
}

func TestRetryExecutor_ExhaustsAndWrapsLastError(t *testing.T) {
	r := NewRetryExecutor("test", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond})
	calls := 0
	err := r.Execute(func() error {
		calls++
		return errors.New("permanent")
	})
	if err == nil {
		t.Fatal("expected a retry-exhausted error, got nil")
	}
	if !IsRetryExhaustedError(err) {
		t.Errorf("expected a retry-exhausted error, got: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected exactly MaxAttempts calls, got: %d", calls)
	}
}

func TestNewRetryExecutor_AppliesDefaultsForInvalidConfig(t *testing.T) {
	r := NewRetryExecutor("test", RetryConfig{})
	if r.config.MaxAttempts != 1 {
		t.Errorf("expected default MaxAttempts of 1, got: %d", r.config.MaxAttempts)
	}
	if r.config.Multiplier != 2.0 {
		t.Errorf("expected default multiplier of 2.0, got: %v", r.config.Multiplier)
	}
}
