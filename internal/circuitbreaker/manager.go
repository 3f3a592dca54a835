package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/gugamistri/meetingmind-sub001/internal/domain"
)

type manager struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
	configs  map[string]Config
	log      *zap.SugaredLogger
}

// NewManager creates a circuit breaker manager.
func NewManager(log *zap.SugaredLogger) Manager {
	return &manager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		configs:  make(map[string]Config),
		log:      log,
	}
}

func (m *manager) GetOrCreate(name string, config Config) CircuitBreaker {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()

	if exists {
		return &circuitBreaker{breaker: breaker}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring the write lock.
	if breaker, exists = m.breakers[name]; exists {
		return &circuitBreaker{breaker: breaker}
	}

	breaker = gobreaker.NewCircuitBreaker(m.settings(name, config))
	m.breakers[name] = breaker
	m.configs[name] = config

	m.log.Infow("created circuit breaker", "name", name,
		"failure_threshold", config.FailureThreshold,
		"reset_timeout", config.ResetTimeout,
		"half_open_max_calls", config.HalfOpenMaxCalls)

	return &circuitBreaker{breaker: breaker}
}

func (m *manager) settings(name string, config Config) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: config.HalfOpenMaxCalls,
		Timeout:     config.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			m.log.Infow("circuit breaker state change", "name", name,
				"from", fromGobreakerState(from), "to", fromGobreakerState(to))
		},
	}
}

// Execute runs fn through the named breaker, mapping open-state and
// half-open-saturation rejections to ErrServiceUnavailable.
func (m *manager) Execute(name string, fn func() (any, error)) (any, error) {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("circuit breaker not found: %s (call GetOrCreate first)", name)
	}

	result, err := breaker.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			m.log.Warnw("circuit breaker open, call rejected", "name", name)
			return nil, fmt.Errorf("%w: %s circuit open", domain.ErrServiceUnavailable, name)
		}
		if errors.Is(err, gobreaker.ErrTooManyRequests) {
			m.log.Warnw("circuit breaker half-open, probe budget exhausted", "name", name)
			return nil, fmt.Errorf("%w: %s recovering", domain.ErrServiceUnavailable, name)
		}
	}

	return result, err
}

func (m *manager) GetState(name string) State {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()

	if !exists {
		return StateUnknown
	}
	return fromGobreakerState(breaker.State())
}

func (m *manager) GetCounts(name string) Counts {
	m.mu.RLock()
	breaker, exists := m.breakers[name]
	m.mu.RUnlock()

	if !exists {
		return Counts{}
	}
	return fromGobreakerCounts(breaker.Counts())
}

func (m *manager) IsHealthy(name string) bool {
	return m.GetState(name) == StateClosed
}

// Reset recreates the named breaker with its stored config, returning it
// to the closed state with zeroed counters.
func (m *manager) Reset(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	config, exists := m.configs[name]
	if !exists {
		delete(m.breakers, name)
		return
	}

	m.log.Infow("resetting circuit breaker", "name", name)
	m.breakers[name] = gobreaker.NewCircuitBreaker(m.settings(name, config))
}
