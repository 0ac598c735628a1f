// Package resilience provides the circuit breaker and retry helpers
// for module operations reaching outside the process. In this tree the
// minio sync module's uploads are the only operations wrapped by them.
package resilience

import (
	"sync"
	"time"

	vbErrors "vbackup/internal/errors"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker implements the circuit breaker pattern around any
// operation that can fail transiently: a sync module's remote upload,
// a controller's wake-up request.
type CircuitBreaker struct {
	name          string
	maxFailures   int
	resetTimeout  time.Duration
	state         CircuitState
	failures      int
	lastFailTime  time.Time
	mutex         sync.RWMutex
	successCount  int
	halfOpenLimit int
}

// NewCircuitBreaker creates a circuit breaker named for the module or
// controller it protects.
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:          name,
		maxFailures:   maxFailures,
		resetTimeout:  resetTimeout,
		state:         CircuitClosed,
		halfOpenLimit: 3,
	}
}

// Execute runs operation with circuit breaker protection.
func (cb *CircuitBreaker) Execute(operation func() error) error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == CircuitOpen && time.Since(cb.lastFailTime) > cb.resetTimeout {
		cb.state = CircuitHalfOpen
		cb.successCount = 0
	}

	if cb.state == CircuitOpen {
		return cb.openError()
	}

	err := operation()
	if err != nil {
		cb.recordFailure()
	} else {
		cb.recordSuccess()
	}
	return err
}

func (cb *CircuitBreaker) openError() *vbErrors.StandardError {
	return vbErrors.NewCircuitBreakerError(cb.name, "circuit breaker is open due to repeated failures").
		WithContext("state", cb.state.String()).
		WithContext("failures", cb.failures).
		WithContext("last_fail_time", cb.lastFailTime).
		WithUserMessage("remote target temporarily unavailable due to repeated failures, try again later")
}

func (cb *CircuitBreaker) recordFailure() {
	cb.failures++
	cb.lastFailTime = time.Now()
	if cb.state == CircuitHalfOpen || cb.failures >= cb.maxFailures {
		cb.state = CircuitOpen
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	if cb.state == CircuitClosed {
		cb.failures = 0
		return
	}
	if cb.state == CircuitHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.halfOpenLimit {
			cb.state = CircuitClosed
			cb.failures = 0
			cb.successCount = 0
		}
	}
}

// GetState returns the current state and failure metrics.
func (cb *CircuitBreaker) GetState() (CircuitState, int, time.Time) {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return cb.state, cb.failures, cb.lastFailTime
}

// Reset forces the circuit breaker back to closed, used between runs.
func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.state = CircuitClosed
	cb.failures = 0
	cb.successCount = 0
	cb.lastFailTime = time.Time{}
}

// IsCircuitBreakerError checks if an error was produced by an open circuit.
func IsCircuitBreakerError(err error) bool {
	return vbErrors.IsCode(err, vbErrors.ErrCodeCircuitBreaker)
}
