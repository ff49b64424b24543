package microsoft

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/prdeepak/ms365-access/internal/core/domain"
)

// RateLimitConfig holds rate limiting configuration for a resource.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// defaultBackoff applies when a 429 carries no usable Retry-After.
const defaultBackoff = 60 * time.Second

// DefaultRateLimits provides conservative defaults for each resource.
// Microsoft Graph allows ~10,000 requests per 10 minutes (~16.67/sec) per app.
var DefaultRateLimits = map[domain.ResourceType]RateLimitConfig{
	domain.ResourceProfile:    {RequestsPerSecond: 2.0, BurstSize: 5},
	domain.ResourceMail:       {RequestsPerSecond: 10.0, BurstSize: 15},
	domain.ResourceCalendar:   {RequestsPerSecond: 10.0, BurstSize: 15},
	domain.ResourceFiles:      {RequestsPerSecond: 10.0, BurstSize: 15},
	domain.ResourceSharePoint: {RequestsPerSecond: 5.0, BurstSize: 10},
}

// RateLimiter provides rate limiting for Microsoft Graph API requests.
// It uses a token bucket algorithm with backoff after 429 responses.
type RateLimiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	retryAt  time.Time
	resource domain.ResourceType
}

// NewRateLimiter creates a new rate limiter for the specified resource.
func NewRateLimiter(resource domain.ResourceType) *RateLimiter {
	cfg, ok := DefaultRateLimits[resource]
	if !ok {
		cfg = RateLimitConfig{RequestsPerSecond: 10.0, BurstSize: 15}
	}
	rl := NewRateLimiterWithConfig(cfg)
	rl.resource = resource
	return rl
}

// NewRateLimiterWithConfig creates a rate limiter with custom configuration.
func NewRateLimiterWithConfig(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}
}

// Wait blocks until a request can be made without exceeding the rate limit.
// It also waits out any backoff set by RecordRateLimitError.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if backoff := r.Backoff(); backoff > 0 {
		timer := time.NewTimer(backoff)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return r.limiter.Wait(ctx)
}

// RecordRateLimitError sets a backoff period after a 429 response.
// retryAfterSeconds should come from the Retry-After header; zero or
// negative values fall back to 60 seconds.
func (r *RateLimiter) RecordRateLimitError(retryAfterSeconds int) {
	d := time.Duration(retryAfterSeconds) * time.Second
	if retryAfterSeconds <= 0 {
		d = defaultBackoff
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if at := time.Now().Add(d); at.After(r.retryAt) {
		r.retryAt = at
	}
}

// Backoff returns how long callers still have to wait after a 429.
func (r *RateLimiter) Backoff() time.Duration {
	r.mu.Lock()
	retryAt := r.retryAt
	r.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		return d
	}
	return 0
}

// ParseRetryAfter reads a Retry-After header given in seconds.
// HTTP-date values and garbage yield 0.
func ParseRetryAfter(header string) int {
	n, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
