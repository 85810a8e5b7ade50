package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"yeti/config"
	"yeti/metrics"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long an idle per-IP limiter is kept
const limiterIdleTTL = time.Hour

// WindowCounter counts hits per key in a shared fixed window
type WindowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// rateLimiterEntry holds a rate limiter with last seen time
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-IP token bucket and, when a WindowCounter is
// configured, a fixed window shared by every replica. Redis failures fall
// back to the local bucket.
type RateLimiter struct {
	rps    rate.Limit
	burst  int
	window time.Duration
	limit  int64

	counter WindowCounter
	logger  *zap.SugaredLogger

	mu       sync.Mutex
	limiters map[string]*rateLimiterEntry

	stopCh    chan struct{}
	stopOnce  sync.Once
	cleanupWg sync.WaitGroup
}

// NewRateLimiter creates a rate limiter from the api.rate_limit config
func NewRateLimiter(cfg *config.Config, counter WindowCounter, logger *zap.SugaredLogger) *RateLimiter {
	rl := &RateLimiter{
		rps:      rate.Limit(cfg.API.RateLimit.RequestsPerSecond),
		burst:    cfg.API.RateLimit.Burst,
		window:   cfg.API.RateLimit.Redis.Window,
		limit:    int64(cfg.API.RateLimit.Redis.Limit),
		counter:  counter,
		logger:   logger,
		limiters: make(map[string]*rateLimiterEntry),
		stopCh:   make(chan struct{}),
	}

	rl.cleanupWg.Add(1)
	go rl.cleanup()

	return rl
}

// Allow reports whether a request from key may proceed, and which backend decided
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, string) {
	if rl.counter != nil {
		count, err := rl.counter.IncrWindow(ctx, key, rl.window)
		if err == nil {
			return count <= rl.limit, "redis"
		}
		rl.logger.Warnw("Redis rate limit check failed, falling back to memory", "error", err)
	}
	return rl.allowMemory(key), "memory"
}

func (rl *RateLimiter) allowMemory(key string) bool {
	rl.mu.Lock()
	entry, exists := rl.limiters[key]
	if !exists {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.Allow()
}

// cleanup periodically removes idle per-IP limiters
func (rl *RateLimiter) cleanup() {
	defer rl.cleanupWg.Done()
	ticker := time.NewTicker(limiterIdleTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTTL {
			delete(rl.limiters, key)
		}
	}
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
	rl.cleanupWg.Wait()
}

// rateLimitMiddleware provides rate limiting per client IP
func (a *API) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getRealIP(r, a.config.API.TrustProxy)
		allowed, backend := a.limiter.Allow(r.Context(), ip)
		if !allowed {
			metrics.RateLimitExceeded.WithLabelValues(backend).Inc()
			a.writeRateLimitResponse(w, r, backend)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeRateLimitResponse writes a 429 with standard rate limit headers
func (a *API) writeRateLimitResponse(w http.ResponseWriter, r *http.Request, backend string) {
	limit := a.config.API.RateLimit.Burst
	reset := time.Now().Add(time.Second)
	if backend == "redis" {
		limit = a.config.API.RateLimit.Redis.Limit
		reset = time.Now().Add(a.config.API.RateLimit.Redis.Window)
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", reset.Unix()))
	w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(reset).Seconds())+1))

	writeError(w, r, http.StatusTooManyRequests, "Too many requests", nil, nil)
}
