package core

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"railrisk/internal/config"
	"railrisk/internal/types"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleThreshold   = 10 * time.Minute
)

type rateLimitClient struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanoseconds
}

// RateLimiter throttles requests per client IP with a token bucket. Idle
// clients are evicted by a background sweep until Stop is called.
type RateLimiter struct {
	limit  rate.Limit
	burst  int
	clock  types.Clock
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*rateLimitClient

	ticker   *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter builds a limiter from cfg. A non-positive rate disables
// limiting.
func NewRateLimiter(cfg config.RateLimitConfig, clock types.Clock, logger *slog.Logger) *RateLimiter {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = max(1, int(math.Ceil(cfg.RequestsPerSecond)))
	}

	rl := &RateLimiter{
		limit:   limit,
		burst:   burst,
		clock:   clock,
		logger:  logger,
		clients: make(map[string]*rateLimitClient),
		ticker:  time.NewTicker(limiterCleanupInterval),
		stopCh:  make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Handler is the chi middleware. Exhausted clients receive 429 with a
// Retry-After header.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.limit == rate.Inf {
			next.ServeHTTP(w, r)
			return
		}

		ip := extractClientIP(r)
		limiter := rl.limiterFor(ip)
		now := rl.clock.Now()

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		if !limiter.AllowN(now, 1) {
			rl.logger.WarnContext(r.Context(), "rate limit exceeded",
				slog.String("client_ip", ip),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfterSeconds()))
			Error(w, r, types.NewAppError(types.ErrCodeRateLimit, "rate limit exceeded, retry later", nil))
			return
		}

		remaining := max(0, int(limiter.TokensAt(now)))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		next.ServeHTTP(w, r)
	})
}

// retryAfterSeconds is the time for one token to refill, at least a second.
func (rl *RateLimiter) retryAfterSeconds() int {
	if rl.limit <= 0 {
		return 3600
	}
	return max(1, int(math.Ceil(1/float64(rl.limit))))
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.clock.Now().UnixNano()

	rl.mu.RLock()
	if c, ok := rl.clients[key]; ok {
		c.lastSeen.Store(now)
		rl.mu.RUnlock()
		return c.limiter
	}
	rl.mu.RUnlock()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if c, ok := rl.clients[key]; ok {
		c.lastSeen.Store(now)
		return c.limiter
	}
	c := &rateLimitClient{limiter: rate.NewLimiter(rl.limit, rl.burst)}
	c.lastSeen.Store(now)
	rl.clients[key] = c
	return c.limiter
}

// evictIdle drops clients not seen within limiterIdleThreshold.
func (rl *RateLimiter) evictIdle() {
	cutoff := rl.clock.Now().Add(-limiterIdleThreshold).UnixNano()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, c := range rl.clients {
		if c.lastSeen.Load() < cutoff {
			delete(rl.clients, key)
		}
	}
}

func (rl *RateLimiter) sweep() {
	for {
		select {
		case <-rl.ticker.C:
			rl.evictIdle()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop ends the eviction sweep. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
		rl.ticker.Stop()
	})
}

// extractClientIP prefers the first X-Forwarded-For entry set by the load
// balancer and falls back to the connection address.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
