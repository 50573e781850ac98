package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultQuotaBackoff is used when a provider rejects a call without
// saying when to retry.
const defaultQuotaBackoff = 30 * time.Second

// providerLimiter throttles calls to one web search provider.
// It uses a token bucket with an extra backoff window after quota errors.
type providerLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
}

func newProviderLimiter(requestsPerSecond float64) *providerLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &providerLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Wait blocks until a request may be made. During a backoff window it
// fails fast instead of sleeping past the caller's deadline.
func (r *providerLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if wait := time.Until(retryAt); wait > 0 {
		if deadline, ok := ctx.Deadline(); ok && deadline.Before(retryAt) {
			return context.DeadlineExceeded
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return r.limiter.Wait(ctx)
}

// Backoff blocks the provider until retryAfter has passed.
func (r *providerLimiter) Backoff(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = defaultQuotaBackoff
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryAt = time.Now().Add(retryAfter)
}
