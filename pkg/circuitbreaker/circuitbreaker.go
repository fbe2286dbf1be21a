package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker rejects a call without running it.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // Normal operation, calls pass through
	StateOpen                  // Calls fail immediately
	StateHalfOpen              // Probing whether the dependency recovered
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

// Config holds circuit breaker configuration
type Config struct {
	FailureThreshold int           // Consecutive failures before opening
	SuccessThreshold int           // Successes in half-open before closing
	OpenTimeout      time.Duration // Time in open before probing again
	HalfOpenMax      int           // Calls admitted while half-open

	// IsFailure decides whether an error counts against the breaker.
	// Nil means every non-nil error counts.
	IsFailure func(error) bool
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		OpenTimeout:      30 * time.Second,
		HalfOpenMax:      3,
	}
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	cfg Config

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	inFlight  int
	changedAt time.Time

	onStateChange func(from, to State)
}

// New creates a circuit breaker with the given configuration.
func New(cfg Config) *Breaker {
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	return &Breaker{
		cfg:       cfg,
		state:     StateClosed,
		changedAt: time.Now(),
	}
}

// OnStateChange sets a callback invoked on every state transition.
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Execute runs fn if the breaker admits the call.
func (b *Breaker) Execute(fn func() error) error {
	if !b.admit() {
		return ErrOpen
	}
	err := fn()
	b.record(err)
	return err
}

// Do runs fn through the breaker and returns its result.
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if !b.admit() {
		return zero, ErrOpen
	}
	v, err := fn()
	b.record(err)
	return v, err
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.changedAt) < b.cfg.OpenTimeout {
			return false
		}
		b.transition(StateHalfOpen)
		b.inFlight++
		return true
	case StateHalfOpen:
		if b.inFlight >= b.cfg.HalfOpenMax {
			return false
		}
		b.inFlight++
		return true
	default:
		return true
	}
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.inFlight > 0 {
		b.inFlight--
	}

	if b.cfg.IsFailure(err) {
		b.failures++
		b.successes = 0
		switch {
		case b.state == StateHalfOpen:
			b.transition(StateOpen)
		case b.state == StateClosed && b.failures >= b.cfg.FailureThreshold:
			b.transition(StateOpen)
		}
		return
	}

	b.successes++
	b.failures = 0
	if b.state == StateHalfOpen && b.successes >= b.cfg.SuccessThreshold {
		b.transition(StateClosed)
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}

	from := b.state
	b.state = to
	b.changedAt = time.Now()
	b.failures = 0
	b.successes = 0
	b.inFlight = 0

	if b.onStateChange != nil {
		go b.onStateChange(from, to)
	}
}
