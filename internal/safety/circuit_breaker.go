package safety

import (
	"fmt"
	"sync"
	"time"
)

// BreakerState is the circuit breaker state.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "CLOSED"
	case BreakerOpen:
		return "OPEN"
	case BreakerHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig tunes a circuit breaker. Zero fields get sane defaults.
type BreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // successes to close from half-open
	OpenTimeout      time.Duration // how long the breaker stays open
}

// Breaker protects the trade venue from being hammered while it is
// failing: after FailureThreshold consecutive errors it rejects calls
// outright for OpenTimeout, then lets a probe through.
type Breaker struct {
	mu        sync.Mutex
	name      string
	config    BreakerConfig
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time

	onStateChange func(from, to BreakerState)
}

// ErrBreakerOpen is returned by Do while the breaker rejects calls.
type ErrBreakerOpen struct{ Name string }

func (e *ErrBreakerOpen) Error() string {
	return fmt.Sprintf("circuit breaker %s is open", e.Name)
}

// NewBreaker creates a closed circuit breaker.
func NewBreaker(name string, config BreakerConfig) *Breaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold == 0 {
		config.SuccessThreshold = 2
	}
	if config.OpenTimeout == 0 {
		config.OpenTimeout = 30 * time.Second
	}
	return &Breaker{name: name, config: config, state: BreakerClosed}
}

// SetStateChangeCallback registers a hook for state transitions. It is
// invoked on its own goroutine so callers cannot deadlock the breaker.
func (b *Breaker) SetStateChangeCallback(fn func(from, to BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Do executes fn under breaker protection.
func (b *Breaker) Do(fn func() error) error {
	if !b.allow() {
		return &ErrBreakerOpen{Name: b.name}
	}

	if err := fn(); err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transition(BreakerClosed)
	b.failures = 0
	b.successes = 0
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if time.Since(b.openedAt) >= b.config.OpenTimeout {
			b.transition(BreakerHalfOpen)
			b.successes = 0
			return true
		}
		return false
	default:
		return false
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == BreakerHalfOpen {
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transition(BreakerClosed)
		}
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch b.state {
	case BreakerClosed:
		if b.failures >= b.config.FailureThreshold {
			b.open()
		}
	case BreakerHalfOpen:
		// The probe failed.
		b.open()
	}
}

func (b *Breaker) open() {
	b.transition(BreakerOpen)
	b.openedAt = time.Now()
	b.successes = 0
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		go b.onStateChange(from, to)
	}
}
