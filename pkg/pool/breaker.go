package pool

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int32

const (
	// StateClosed allows all connection attempts to pass through
	StateClosed CircuitState = iota
	// StateOpen blocks all connection attempts
	StateOpen
	// StateHalfOpen allows a probe attempt to test if the server has recovered
	StateHalfOpen
)

// CircuitBreaker guards the connect path against a down or flapping
// server: after a run of consecutive failures it stops workers from
// dialing for a cooldown period, then lets a single probe through.
type CircuitBreaker struct {
	threshold int
	cooldown  time.Duration
	logger    *zap.Logger

	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	openedAt            time.Time
}

// NewCircuitBreaker creates a circuit breaker that opens after
// threshold consecutive failures and stays open for cooldown.
func NewCircuitBreaker(threshold int, cooldown time.Duration, logger *zap.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		logger:    logger.With(zap.String("component", "circuit_breaker")),
		state:     StateClosed,
	}
}

// Allow determines if a connection attempt should proceed based on the
// current circuit state.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.cooldown {
			cb.state = StateHalfOpen
			cb.logger.Info("circuit breaker half-open, allowing probe")
			return true
		}
		return false
	}
	return true
}

// RecordSuccess closes the circuit after a successful attempt.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateClosed {
		cb.logger.Info("circuit breaker closed after successful probe")
	}
	cb.state = StateClosed
	cb.consecutiveFailures = 0
}

// RecordFailure counts a failed attempt and opens the circuit once the
// failure threshold is reached. A failed half-open probe reopens it
// immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++

	if cb.state == StateHalfOpen {
		cb.state = StateOpen
		cb.openedAt = time.Now()
		cb.logger.Warn("circuit breaker reopened after failed probe")
		return
	}

	if cb.state == StateClosed && cb.consecutiveFailures >= cb.threshold {
		cb.state = StateOpen
		cb.openedAt = time.Now()
		cb.logger.Warn("circuit breaker opened",
			zap.Int("consecutive_failures", cb.consecutiveFailures),
			zap.Duration("cooldown", cb.cooldown))
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
