package resilience

import (
	"errors"
	"testing"
	"time"

	"banking-chatbot/engine/pkg/logger"

	"github.com/stretchr/testify/assert"
)

var errUpstream = errors.New("upstream failed")

func newTestBreaker(retryAfter time.Duration) *Breaker {
	return NewBreaker(Config{
		Name:             "test",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		RetryAfter:       retryAfter,
	}, logger.GetGlobal())
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	b := newTestBreaker(time.Minute)

	for i := 0; i < 10; i++ {
		assert.NoError(t, b.Execute(func() error { return nil }))
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := newTestBreaker(time.Minute)

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, b.Execute(func() error { return errUpstream }), errUpstream)
	}
	assert.Equal(t, StateOpen, b.State())

	err := b.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrOpen, "open circuit short-circuits without calling fn")
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := newTestBreaker(time.Minute)

	b.Execute(func() error { return errUpstream })
	b.Execute(func() error { return errUpstream })
	b.Execute(func() error { return nil })
	b.Execute(func() error { return errUpstream })
	b.Execute(func() error { return errUpstream })

	assert.Equal(t, StateClosed, b.State(), "non-consecutive failures never open the circuit")
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	b := newTestBreaker(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		b.Execute(func() error { return errUpstream })
	}
	assert.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)

	// Probes succeed twice, closing the circuit.
	assert.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, StateHalfOpen, b.State())
	assert.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReopensOnFailedProbe(t *testing.T) {
	b := newTestBreaker(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		b.Execute(func() error { return errUpstream })
	}

	time.Sleep(20 * time.Millisecond)

	assert.ErrorIs(t, b.Execute(func() error { return errUpstream }), errUpstream)
	assert.Equal(t, StateOpen, b.State())
}
