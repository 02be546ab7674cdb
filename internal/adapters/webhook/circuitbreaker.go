package webhook

import (
	"sync"
	"time"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed is the normal operating state. Deliveries are allowed through.
	StateClosed State = iota

	// StateOpen is the failing state. Deliveries are blocked to protect the
	// downstream endpoints.
	StateOpen

	// StateHalfOpen is the recovery testing state. Limited deliveries are
	// allowed to probe recovery.
	StateHalfOpen
)

// String returns a human-readable name for the state.
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

// BreakerConfig configures the circuit breaker behavior.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures int

	// Cooldown is how long to wait in open state before transitioning to half-open.
	Cooldown time.Duration

	// HalfOpenLimit is the number of consecutive successes in half-open state
	// required to close the circuit.
	HalfOpenLimit int
}

// Breaker implements the circuit breaker pattern for webhook delivery.
//
// State transitions:
//   - Closed → Open: After MaxFailures consecutive failures
//   - Open → HalfOpen: After Cooldown has passed
//   - HalfOpen → Closed: After HalfOpenLimit consecutive successes
//   - HalfOpen → Open: On any failure
type Breaker struct {
	mu               sync.RWMutex
	state            State
	failures         int       // consecutive failures in closed state
	successes        int       // consecutive successes in half-open state
	halfOpenRequests int       // current deliveries in flight during half-open state
	lastFailure      time.Time // time of last failure (for cooldown calculation)
	cfg              BreakerConfig

	// onStateChange is called when the state changes. Used for logging.
	onStateChange func(from, to State)

	// now is overridable for testing.
	now func() time.Time
}

// NewBreaker creates a circuit breaker with the given configuration.
func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{
		state: StateClosed,
		cfg:   cfg,
		now:   time.Now,
	}
}

// OnStateChange sets a callback invoked when the circuit state changes.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Allow checks if a delivery should be allowed through.
//
// This method may trigger a state transition from Open to HalfOpen once the
// cooldown has passed. In half-open state, only HalfOpenLimit concurrent
// deliveries are allowed to probe recovery.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true

	case StateOpen:
		if b.now().Sub(b.lastFailure) >= b.cfg.Cooldown {
			b.transitionTo(StateHalfOpen)
			b.halfOpenRequests = 1
			return true // Allow one delivery through to probe
		}
		return false

	case StateHalfOpen:
		if b.halfOpenRequests >= b.cfg.HalfOpenLimit {
			return false
		}
		b.halfOpenRequests++
		return true

	default:
		return false
	}
}

// RecordSuccess records a successful delivery.
// In half-open state, this may transition to closed after enough successes.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0

	case StateHalfOpen:
		b.halfOpenRequests--
		b.successes++
		if b.successes >= b.cfg.HalfOpenLimit {
			b.transitionTo(StateClosed)
		}
	}
}

// RecordFailure records a failed delivery.
// In closed state, this may trigger transition to open after enough failures.
// In half-open state, any failure immediately reopens the circuit.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.MaxFailures {
			b.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		b.halfOpenRequests--
		b.transitionTo(StateOpen)
	}
}

// State returns the current state of the circuit breaker.
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// transitionTo changes the circuit breaker state.
// Must be called with lock held.
func (b *Breaker) transitionTo(newState State) {
	if b.state == newState {
		return
	}

	oldState := b.state
	b.state = newState

	b.failures = 0
	b.successes = 0

	if b.onStateChange != nil {
		// Call in goroutine to avoid blocking while holding lock
		go b.onStateChange(oldState, newState)
	}
}
