package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Breaker implements a circuit breaker for backend failures. After a
// threshold of failures, it enters a cooldown period where calls are
// blocked.
type Breaker struct {
	mu             sync.RWMutex
	threshold      int
	cooldownPeriod time.Duration
	failureCount   int
	cooldownUntil  time.Time
}

func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold:      threshold,
		cooldownPeriod: cooldown,
	}
}

// RecordFailure records a failure. Returns true if the breaker entered
// cooldown.
func (cb *Breaker) RecordFailure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++

	if cb.failureCount >= cb.threshold {
		cb.cooldownUntil = time.Now().Add(cb.cooldownPeriod)
		cb.failureCount = 0
		return true
	}

	return false
}

func (cb *Breaker) IsInCooldown() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return time.Now().Before(cb.cooldownUntil)
}

func (cb *Breaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	cb.cooldownUntil = time.Time{}
}

// BreakerBackend wraps a Backend so a flapping provider degrades to
// ErrUnavailable instead of stalling every fix request. Cancellation does
// not count as a backend failure.
type BreakerBackend struct {
	inner   Backend
	breaker *Breaker
}

func NewBreakerBackend(inner Backend, threshold int, cooldown time.Duration) *BreakerBackend {
	return &BreakerBackend{
		inner:   inner,
		breaker: NewBreaker(threshold, cooldown),
	}
}

func (b *BreakerBackend) Complete(ctx context.Context, prompt string) (string, error) {
	if b.breaker.IsInCooldown() {
		return "", fmt.Errorf("%w: in cooldown", ErrUnavailable)
	}

	out, err := b.inner.Complete(ctx, prompt)
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			b.breaker.RecordFailure()
		}
		return "", err
	}

	b.breaker.Reset()
	return out, nil
}
