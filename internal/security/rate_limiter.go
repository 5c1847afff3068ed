// Package security holds request guardrails for the HTTP API.
package security

import (
	"context"
	"sync"
	"time"

	"github.com/raaihank/codesense/internal/config"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP
type RateLimiter struct {
	enabled bool
	limit   rate.Limit
	burst   int
	buckets map[string]*bucket
	mu      sync.Mutex
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(cfg config.SecurityConfig) *RateLimiter {
	perMin := cfg.RateLimit.RequestsPerMin
	if perMin <= 0 {
		perMin = 60
	}
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 1
	}

	return &RateLimiter{
		enabled: cfg.RateLimit.Enabled,
		limit:   rate.Limit(float64(perMin) / 60.0),
		burst:   burst,
		buckets: make(map[string]*bucket),
	}
}

// Allow checks if a request from the given client IP is allowed
func (r *RateLimiter) Allow(clientIP string) bool {
	if !r.enabled {
		return true
	}
	return r.getBucket(clientIP).Allow()
}

// RetryAfter estimates how long clientIP must wait for the next token
func (r *RateLimiter) RetryAfter(clientIP string) time.Duration {
	res := r.getBucket(clientIP).Reserve()
	defer res.Cancel()
	return res.Delay()
}

func (r *RateLimiter) getBucket(clientIP string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[clientIP]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.buckets[clientIP] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

// CleanupOldBuckets removes buckets idle for longer than maxIdle
func (r *RateLimiter) CleanupOldBuckets(maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-maxIdle)
	removed := 0
	for ip, b := range r.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(r.buckets, ip)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine prunes idle buckets every interval until ctx is done
func (r *RateLimiter) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.CleanupOldBuckets(time.Hour)
			}
		}
	}()
}
