package notifier

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned when the breaker rejects a call without
// attempting the network. Callers distinguish "service down" from a failed
// request by checking for it.
var ErrBreakerOpen = errors.New("notifier: circuit breaker open")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// Breaker is a fail-fast guard around the notification transport. It opens
// after failMax consecutive failures, rejects calls for the reset window,
// then lets a single probe through. The mutex is never held across I/O;
// callers bracket the send with Allow and Success/Failure.
type Breaker struct {
	mu       sync.Mutex
	failMax  int
	reset    time.Duration
	state    breakerState
	failures int
	openedAt time.Time
	now      func() time.Time
}

func NewBreaker(failMax int, reset time.Duration) *Breaker {
	return &Breaker{
		failMax: failMax,
		reset:   reset,
		now:     time.Now,
	}
}

// Allow reports whether a call may proceed. While open it fails with
// ErrBreakerOpen until the reset window elapses, then admits exactly one
// half-open probe; further calls are rejected until that probe settles.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerClosed:
		return nil
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.reset {
			return ErrBreakerOpen
		}
		b.state = breakerHalfOpen
		return nil
	default: // probe in flight
		return ErrBreakerOpen
	}
}

// Success closes the breaker and clears the failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = breakerClosed
	b.failures = 0
}

// Failure counts one failed call. A failed half-open probe reopens
// immediately; otherwise the breaker opens at failMax consecutive failures.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.state == breakerHalfOpen || b.failures >= b.failMax {
		b.state = breakerOpen
		b.openedAt = b.now()
	}
}
