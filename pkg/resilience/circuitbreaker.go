// Package resilience provides fault-tolerance primitives for calls to
// optional dependencies: a circuit breaker, exponential-backoff retry, and a
// context-based timeout wrapper.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/search-core/pkg/errors"
)

// ErrCircuitOpen is returned without calling the protected function while
// the breaker is open. It matches apperrors.ErrUnavailable.
var ErrCircuitOpen = fmt.Errorf("circuit breaker is open: %w", apperrors.ErrUnavailable)

// State represents the current phase of a circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig controls when the breaker trips and how it recovers.
// Zero values select the defaults.
type CircuitBreakerConfig struct {
	// FailureThreshold consecutive failures open a closed breaker.
	FailureThreshold int
	// SuccessThreshold consecutive successful probes close a half-open one.
	SuccessThreshold int
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenMaxRequests bounds the probes in flight while half-open.
	HalfOpenMaxRequests int
	// OnStateChange is called, with the breaker lock held, on every
	// transition.
	OnStateChange func(name string, from, to State)
}

func defaultCBConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    5,
		SuccessThreshold:    1,
		OpenTimeout:         30 * time.Second,
		HalfOpenMaxRequests: 1,
	}
}

// CircuitBreaker tracks consecutive failures and trips open when the
// threshold is reached. After OpenTimeout it lets probes through; enough
// successful probes close it again and any failed probe reopens it.
type CircuitBreaker struct {
	name      string
	cfg       CircuitBreakerConfig
	now       func() time.Time
	mu        sync.Mutex
	state     State
	logger    *slog.Logger
	failures  int
	successes int
	openedAt  time.Time
	inFlight  int
}

// NewCircuitBreaker creates a CircuitBreaker with the given config, filling
// in defaults for zero values.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	defaults := defaultCBConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = defaults.SuccessThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaults.OpenTimeout
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = defaults.HalfOpenMaxRequests
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		state:  StateClosed,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute runs fn if the circuit allows it, recording success or failure.
// Errors matching any of ignore count as successes: they describe the
// request, not the health of the dependency.
func (cb *CircuitBreaker) Execute(fn func() error, ignore ...error) error {
	probe, err := cb.beforeRequest()
	if err != nil {
		return err
	}
	err = fn()
	failed := err != nil
	for _, e := range ignore {
		if errors.Is(err, e) {
			failed = false
			break
		}
	}
	cb.afterRequest(probe, failed)
	return err
}

// State returns the current State of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Name() string { return cb.name }

func (cb *CircuitBreaker) beforeRequest() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateOpen:
		wait := cb.cfg.OpenTimeout - cb.now().Sub(cb.openedAt)
		if wait > 0 {
			return false, fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
		}
		cb.transition(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if cb.inFlight >= cb.cfg.HalfOpenMaxRequests {
			return false, fmt.Errorf("%w: %s (half-open probe limit reached)", ErrCircuitOpen, cb.name)
		}
		cb.inFlight++
		return true, nil
	}
	return false, nil
}

func (cb *CircuitBreaker) afterRequest(probe, failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if probe {
		cb.inFlight--
	}
	if failed {
		cb.onFailure(probe)
		return
	}
	cb.onSuccess(probe)
}

func (cb *CircuitBreaker) onSuccess(probe bool) {
	switch {
	case cb.state == StateClosed:
		cb.failures = 0
	case cb.state == StateHalfOpen && probe:
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.transition(StateClosed)
			cb.logger.Info("circuit closed (recovered)")
		}
	}
}

func (cb *CircuitBreaker) onFailure(probe bool) {
	switch {
	case cb.state == StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.logger.Warn("circuit opened", "consecutive_failures", cb.failures, "threshold", cb.cfg.FailureThreshold)
			cb.transition(StateOpen)
		}
	case cb.state == StateHalfOpen && probe:
		cb.logger.Warn("circuit re-opened (half-open probe failed)")
		cb.transition(StateOpen)
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
	case StateHalfOpen:
		cb.inFlight = 0
		cb.logger.Info("circuit half-open", "after", cb.cfg.OpenTimeout)
	}
	if cb.cfg.OnStateChange != nil && from != to {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}

// Reset forces the circuit breaker back to the Closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.inFlight = 0
	cb.logger.Info("circuit manually reset")
}
