package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/mediastream/internal/logging"
	"golang.org/x/time/rate"
)

// ClientIDHeader identifies the remote client; the client IP is used when absent
const ClientIDHeader = "X-Client-ID"

// Limiter decides whether a request for key may proceed
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is an in-process token bucket per client
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	now      func() time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rps int, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow takes a token from key's bucket
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, error) {
	rl.mu.Lock()
	entry, exists := rl.limiters[key]
	if !exists {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = rl.now()
	rl.mu.Unlock()

	return entry.limiter.Allow(), nil
}

// Cleanup drops buckets unused for maxIdle and returns how many were dropped
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	cutoff := rl.now().Add(-maxIdle)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, key)
			removed++
		}
	}
	return removed
}

// Run calls Cleanup every interval until ctx is done
func (rl *RateLimiter) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup(maxIdle)
		}
	}
}

// WindowCounter counts requests per key in a fixed window
type WindowCounter interface {
	CheckRateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error)
}

// SharedLimiter enforces a fixed-window limit held in a store shared by
// every API instance
type SharedLimiter struct {
	counter WindowCounter
	limit   int64
	window  time.Duration
}

// NewSharedLimiter creates a limiter allowing limit requests per window
func NewSharedLimiter(counter WindowCounter, limit int64, window time.Duration) *SharedLimiter {
	return &SharedLimiter{counter: counter, limit: limit, window: window}
}

// Allow counts the request against key
func (s *SharedLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return s.counter.CheckRateLimit(ctx, key, s.limit, s.window)
}

// RateLimit middleware limits requests per client id or IP. Limiter
// failures let the request through.
func RateLimit(l Limiter, logger *logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if clientID := c.GetHeader(ClientIDHeader); clientID != "" {
			key = "client:" + clientID
		}

		allowed, err := l.Allow(c.Request.Context(), key)
		if err != nil {
			logger.WithField("key", key).WithError(err).Warn("rate limiter unavailable")
			c.Next()
			return
		}

		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
