// Package resilience carries the failure-handling primitives shared by the
// fetcher, the enrichment providers, and the dead letter queue: error
// classification, retry with backoff, and per-service circuit breakers.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// CircuitState is the observable state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed admits every call.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects calls until the reset timeout elapses.
	CircuitOpen
	// CircuitHalfOpen admits probe calls after the reset timeout. The next
	// success closes the circuit, the next fault reopens it.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned instead of calling the wrapped function while
// the circuit is open. Callers treat it like any other provider failure and
// move on to their fallback.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig tunes a breaker. Zero values fall back to the
// defaults from DefaultCircuitBreakerConfig.
type CircuitBreakerConfig struct {
	// FailureThreshold is the consecutive-fault count that opens the circuit.
	FailureThreshold int

	// ResetTimeout is the cooldown before an open circuit admits a probe.
	ResetTimeout time.Duration
}

// DefaultCircuitBreakerConfig suits the enrichment providers: five straight
// faults take a provider out of rotation for half a minute.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// CircuitBreaker guards calls to one external service. It stores only the
// closed and open states; half-open is derived from the time elapsed since
// the circuit opened, so an idle breaker needs no timer goroutine.
type CircuitBreaker struct {
	name string
	cfg  CircuitBreakerConfig

	mu       sync.Mutex
	state    CircuitState
	failures int
	openedAt time.Time

	now func() time.Time
}

// NewCircuitBreaker builds a breaker for the named service. The name only
// appears in transition logs.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	return &CircuitBreaker{
		name:  name,
		cfg:   cfg,
		state: CircuitClosed,
		now:   time.Now,
	}
}

// Execute runs fn unless the circuit is open, in which case it returns
// ErrCircuitOpen without calling fn. fn's result feeds the fault counter:
// a success closes a probing circuit and clears the count, a fault may open
// it. Context cancellation does not count as a fault; an aborted batch says
// nothing about the service's health.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

// ExecuteVal is Execute for functions that return a value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.admit(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	cb.record(err)
	return val, err
}

// State reports closed, open, or half-open once the cooldown has passed.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != CircuitOpen {
		return nil
	}
	if cb.now().Sub(cb.openedAt) < cb.cfg.ResetTimeout {
		return ErrCircuitOpen
	}
	// Cooldown elapsed, let the probe through.
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	fault := err != nil && !errors.Is(err, context.Canceled)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !fault {
		if cb.state == CircuitOpen {
			cb.state = CircuitClosed
			zap.L().Info("resilience: circuit closed after successful probe",
				zap.String("service", cb.name),
			)
		}
		cb.failures = 0
		return
	}

	cb.failures++
	if cb.state == CircuitOpen {
		// A failed probe restarts the cooldown.
		cb.openedAt = cb.now()
		return
	}
	if cb.failures >= cb.cfg.FailureThreshold {
		cb.state = CircuitOpen
		cb.openedAt = cb.now()
		zap.L().Warn("resilience: circuit opened",
			zap.String("service", cb.name),
			zap.Int("failures", cb.failures),
			zap.Duration("reset_timeout", cb.cfg.ResetTimeout),
		)
	}
}

// ServiceBreakers hands out one breaker per named service so the deepseek,
// anthropic, and reader circuits trip independently.
type ServiceBreakers struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
	cfg      CircuitBreakerConfig
}

// NewServiceBreakers builds a registry that applies cfg to every breaker it
// creates.
func NewServiceBreakers(cfg CircuitBreakerConfig) *ServiceBreakers {
	return &ServiceBreakers{
		breakers: make(map[string]*CircuitBreaker),
		cfg:      cfg,
	}
}

// Get returns the breaker for service, creating it on first use.
func (sb *ServiceBreakers) Get(service string) *CircuitBreaker {
	sb.mu.RLock()
	cb, ok := sb.breakers[service]
	sb.mu.RUnlock()
	if ok {
		return cb
	}

	sb.mu.Lock()
	defer sb.mu.Unlock()
	if cb, ok = sb.breakers[service]; ok {
		return cb
	}
	cb = NewCircuitBreaker(service, sb.cfg)
	sb.breakers[service] = cb
	return cb
}

// States snapshots every known breaker, keyed by service name.
func (sb *ServiceBreakers) States() map[string]CircuitState {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	states := make(map[string]CircuitState, len(sb.breakers))
	for name, cb := range sb.breakers {
		states[name] = cb.State()
	}
	return states
}
