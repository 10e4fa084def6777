// Package circuit provides a consecutive-failure circuit breaker for optional
// dependencies such as caches.
package circuit

import (
	"sync"
	"time"
)

type State string

const (
	StateClosed State = "closed"
	StateOpen   State = "open"
)

const (
	defaultFailureThreshold = 5
	defaultCooldown         = 30 * time.Second
)

// Breaker opens after threshold consecutive failures and stays open for the
// cooldown. After the cooldown one call is let through; its outcome closes
// the breaker or opens it for another cooldown.
type Breaker struct {
	mu sync.Mutex

	name      string
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	failures  int
	open      bool
	openUntil time.Time
	probing   bool
}

type Option func(*Breaker)

func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		b.now = now
	}
}

func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:      name,
		threshold: defaultFailureThreshold,
		cooldown:  defaultCooldown,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Breaker) Name() string { return b.name }

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.open {
		return StateOpen
	}
	return StateClosed
}

func (b *Breaker) IsOpen() bool { return b.State() == StateOpen }

// Allow reports whether a call may go to the guarded dependency.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if b.probing || b.now().Before(b.openUntil) {
		return false
	}
	b.probing = true
	return true
}

// RecordSuccess resets the failure count. It returns true when this call
// closed an open breaker.
func (b *Breaker) RecordSuccess() (closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	closed = b.open
	b.failures = 0
	b.open = false
	b.probing = false
	return closed
}

// RecordFailure counts a failure. It returns true when this call opened the
// breaker; a failed probe re-opens it silently.
func (b *Breaker) RecordFailure() (opened bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.open {
		b.probing = false
		b.openUntil = b.now().Add(b.cooldown)
		return false
	}
	if b.failures >= b.threshold {
		b.open = true
		b.openUntil = b.now().Add(b.cooldown)
		return true
	}
	return false
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
	b.probing = false
}
