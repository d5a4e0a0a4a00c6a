// Package resilience guards calls to upstream dependencies. The dialogue
// layer degrades gracefully when the core banking side is down; the breaker
// makes that degradation fast instead of timeout-bound.
package resilience

import (
	"errors"
	"sync"
	"time"

	"banking-chatbot/engine/pkg/logger"
)

// ErrOpen is returned when the breaker short-circuits a call.
var ErrOpen = errors.New("circuit open")

// State of the breaker.
type State string

const (
	// StateClosed allows all calls.
	StateClosed State = "closed"
	// StateOpen short-circuits all calls until the retry window elapses.
	StateOpen State = "open"
	// StateHalfOpen probes the upstream with live traffic.
	StateHalfOpen State = "half-open"
)

// Breaker is a classic three-state circuit breaker. Consecutive failures
// open it; after RetryAfter a probe is let through, and enough probe
// successes close it again.
type Breaker struct {
	name             string
	failureThreshold uint
	successThreshold uint
	retryAfter       time.Duration
	log              *logger.Logger

	mu          sync.Mutex
	state       State
	failures    uint
	successes   uint
	nextAttempt time.Time
}

// Config tunes a breaker.
type Config struct {
	Name             string
	FailureThreshold uint
	SuccessThreshold uint
	RetryAfter       time.Duration
}

// DefaultConfig returns sensible defaults for an HTTP upstream.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		RetryAfter:       30 * time.Second,
	}
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg Config, log *logger.Logger) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.RetryAfter == 0 {
		cfg.RetryAfter = 30 * time.Second
	}
	return &Breaker{
		name:             cfg.Name,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		retryAfter:       cfg.RetryAfter,
		state:            StateClosed,
		log:              log,
	}
}

// Execute runs fn unless the breaker is open, and records the result.
func (b *Breaker) Execute(fn func() error) error {
	if !b.allow() {
		return ErrOpen
	}

	err := fn()
	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// State reports the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	default:
		if time.Now().After(b.nextAttempt) {
			b.state = StateHalfOpen
			b.successes = 0
			b.log.Info("circuit half-open", "name", b.name)
			return true
		}
		return false
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = StateClosed
			b.failures = 0
			b.log.Info("circuit closed", "name", b.name)
		}
	case StateClosed:
		b.failures = 0
	}
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.open()
	case StateClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.open()
		}
	}
}

// open must be called with the lock held.
func (b *Breaker) open() {
	b.state = StateOpen
	b.failures = 0
	b.nextAttempt = time.Now().Add(b.retryAfter)
	b.log.Warn("circuit opened", "name", b.name, "retry_after", b.retryAfter.String())
}
