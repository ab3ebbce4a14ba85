package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go-events-backend/internal/delivery/http/response"
	"go-events-backend/pkg/logger"
	"go-events-backend/pkg/security"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Requests per window
	Limit int
	// Time window duration
	Window time.Duration
	// Custom key extractor (default: IP-based)
	KeyFunc func(*gin.Context) string
	// Key prefix for Redis
	KeyPrefix string
	// Whether to reject when Redis errors instead of falling back to memory
	FailClosed bool
}

// Atomic increment with TTL on first set.
// KEYS[1] = counter key, ARGV[1] = TTL in seconds. Returns {count, ttl}.
var rateLimitScript = goredis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('TTL', KEYS[1])
return {count, ttl}
`)

func clientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// GlobalRateLimitConfig applies to every API route.
func GlobalRateLimitConfig(limit int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{
		Limit:     limit,
		Window:    window,
		KeyPrefix: "rl:ip:",
		KeyFunc:   clientIPKey,
	}
}

// OTPRateLimitConfig is the strict limit for code send/verify endpoints.
func OTPRateLimitConfig(limit int, window time.Duration) RateLimitConfig {
	return RateLimitConfig{
		Limit:      limit,
		Window:     window,
		KeyPrefix:  "rl:otp:",
		KeyFunc:    clientIPKey,
		FailClosed: true,
	}
}

type localLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter counts requests in Redis when it is available and otherwise per
// process with token buckets.
type RateLimiter struct {
	rdb goredis.Scripter
	sec *security.SecurityLogger

	mu    sync.Mutex
	local map[string]*localLimiter
	calls int
}

// NewRateLimiter accepts a nil rdb, in which case only the in-memory buckets are used.
func NewRateLimiter(rdb goredis.Scripter, sec *security.SecurityLogger) *RateLimiter {
	if sec == nil {
		sec = security.Nop()
	}
	return &RateLimiter{rdb: rdb, sec: sec, local: make(map[string]*localLimiter)}
}

func (rl *RateLimiter) Middleware(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = clientIPKey
	}

	return func(c *gin.Context) {
		key := cfg.KeyPrefix + cfg.KeyFunc(c)
		ctx := c.Request.Context()

		var (
			allowed   bool
			remaining int
			resetAt   time.Time
		)

		if rl.rdb != nil {
			count, ttl, err := rl.checkRedis(ctx, key, cfg)
			if err == nil {
				allowed = count <= cfg.Limit
				remaining = max(0, cfg.Limit-count)
				resetAt = time.Now().Add(ttl)
			} else if cfg.FailClosed {
				logger.Log.ErrorContext(ctx, "rate limit: redis unavailable, rejecting", "error", err)
				response.Error(c, http.StatusServiceUnavailable, "Service temporarily unavailable. Please try again.", nil)
				c.Abort()
				return
			} else {
				logger.Log.WarnContext(ctx, "rate limit: redis unavailable, using memory", "error", err)
				allowed, remaining, resetAt = rl.checkLocal(key, cfg)
			}
		} else {
			allowed, remaining, resetAt = rl.checkLocal(key, cfg)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", resetAt.UTC().Format(time.RFC3339))

		if !allowed {
			retryAfter := max(1, int(time.Until(resetAt).Seconds()))
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			rl.sec.LogRateLimitTriggered(ctx, c.ClientIP(), requestIDOf(c), c.FullPath())

			response.Error(c, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", gin.H{"retry_after": retryAfter})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) checkRedis(ctx context.Context, key string, cfg RateLimitConfig) (int, time.Duration, error) {
	result, err := rateLimitScript.Run(ctx, rl.rdb, []string{key}, int(cfg.Window.Seconds())).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis rate limit eval failed: %w", err)
	}

	arr, ok := result.([]interface{})
	if !ok || len(arr) < 2 {
		return 0, 0, fmt.Errorf("unexpected redis result format")
	}
	count, _ := arr[0].(int64)
	ttl, _ := arr[1].(int64)
	return int(count), time.Duration(ttl) * time.Second, nil
}

// checkLocal spreads Limit tokens over Window with a burst of Limit.
func (rl *RateLimiter) checkLocal(key string, cfg RateLimitConfig) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.calls++
	if rl.calls%1000 == 0 {
		rl.prune(now, cfg.Window)
	}

	entry, ok := rl.local[key]
	if !ok {
		every := cfg.Window / time.Duration(max(1, cfg.Limit))
		entry = &localLimiter{limiter: rate.NewLimiter(rate.Every(every), cfg.Limit)}
		rl.local[key] = entry
	}
	entry.lastSeen = now

	allowed := entry.limiter.AllowN(now, 1)
	tokens := entry.limiter.TokensAt(now)
	resetAt := now
	if missing := float64(cfg.Limit) - tokens; missing > 0 {
		resetAt = now.Add(time.Duration(missing / float64(entry.limiter.Limit()) * float64(time.Second)))
	}
	return allowed, max(0, int(tokens)), resetAt
}

func (rl *RateLimiter) prune(now time.Time, idle time.Duration) {
	for key, entry := range rl.local {
		if now.Sub(entry.lastSeen) > 2*idle {
			delete(rl.local, key)
		}
	}
}
