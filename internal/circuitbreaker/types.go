// Package circuitbreaker isolates failing calendar providers behind
// sony/gobreaker so a dead upstream gets recovery time instead of a
// retry storm.
package circuitbreaker

import (
	"time"

	"github.com/sony/gobreaker"
)

// Manager manages one circuit breaker per protected call path.
type Manager interface {
	// GetOrCreate returns the existing breaker for name or creates one.
	GetOrCreate(name string, config Config) CircuitBreaker

	// Execute runs fn through the named breaker.
	Execute(name string, fn func() (any, error)) (any, error)

	// GetState returns the current state.
	GetState(name string) State

	// GetCounts returns the breaker's current counters.
	GetCounts(name string) Counts

	// IsHealthy reports whether the breaker is closed.
	IsHealthy(name string) bool

	// Reset recreates the breaker in the closed state.
	Reset(name string)
}

// CircuitBreaker wraps a single gobreaker instance.
type CircuitBreaker interface {
	Execute(fn func() (any, error)) (any, error)
	State() State
	Counts() Counts
}

// Config holds breaker thresholds.
type Config struct {
	FailureThreshold uint32        // consecutive failures that trip the breaker
	ResetTimeout     time.Duration // open-state duration before half-open probing
	HalfOpenMaxCalls uint32        // trial calls permitted while half-open
}

// State represents breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
	StateUnknown  State = "unknown"
)

// Counts mirrors the breaker's internal counters.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

type circuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
}

func (cb *circuitBreaker) Execute(fn func() (any, error)) (any, error) {
	return cb.breaker.Execute(fn)
}

func (cb *circuitBreaker) State() State {
	return fromGobreakerState(cb.breaker.State())
}

func (cb *circuitBreaker) Counts() Counts {
	return fromGobreakerCounts(cb.breaker.Counts())
}

func fromGobreakerState(s gobreaker.State) State {
	switch s {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateUnknown
	}
}

func fromGobreakerCounts(c gobreaker.Counts) Counts {
	return Counts{
		Requests:             c.Requests,
		TotalSuccesses:       c.TotalSuccesses,
		TotalFailures:        c.TotalFailures,
		ConsecutiveSuccesses: c.ConsecutiveSuccesses,
		ConsecutiveFailures:  c.ConsecutiveFailures,
	}
}
