package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"namaste-icd-mapper/internal/config"
	"namaste-icd-mapper/internal/logger"
	"namaste-icd-mapper/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware limits requests per client IP and route using a Redis
// fixed window. It fails open when Redis errors.
func RateLimitMiddleware(rdb *redis.Client, cfg *config.Config) gin.HandlerFunc {
	window := time.Duration(cfg.RateLimitWindow) * time.Second

	return func(c *gin.Context) {
		if skipRateLimit(c) {
			c.Next()
			return
		}

		key := "ratelimit:" + utils.GetClientIP(c.Request) + ":" + c.FullPath()

		ctx, cancel := context.WithTimeout(c.Request.Context(), utils.ShortTimeout)
		count, err := rdb.Incr(ctx, key).Result()
		if err == nil && count == 1 {
			rdb.Expire(ctx, key, window)
		}
		cancel()
		if err != nil {
			logger.Warn("Rate limiter unavailable, allowing request", "error", err)
			c.Next()
			return
		}

		if count > int64(cfg.RateLimitReqs) {
			rejectRateLimited(c, cfg.RateLimitReqs, cfg.RateLimitWindow)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.RateLimitReqs))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(cfg.RateLimitReqs-int(count)))
		c.Next()
	}
}

// LocalRateLimitMiddleware is the in-process variant used when Redis is disabled:
// one token bucket per client IP refilling RateLimitReqs per window.
func LocalRateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	window := time.Duration(cfg.RateLimitWindow) * time.Second
	limiters := newIPLimiters(
		rate.Every(window/time.Duration(max(cfg.RateLimitReqs, 1))),
		cfg.RateLimitReqs,
		window,
	)

	return func(c *gin.Context) {
		if skipRateLimit(c) {
			c.Next()
			return
		}
		if !limiters.get(utils.GetClientIP(c.Request)).Allow() {
			rejectRateLimited(c, cfg.RateLimitReqs, cfg.RateLimitWindow)
			return
		}
		c.Next()
	}
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiters holds one limiter per client IP. Entries idle for longer than
// idle are dropped on the next sweep; by then their bucket has refilled, so
// a fresh limiter behaves the same.
type ipLimiters struct {
	mu        sync.Mutex
	entries   map[string]*ipLimiter
	every     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newIPLimiters(every rate.Limit, burst int, idle time.Duration) *ipLimiters {
	if idle <= 0 {
		idle = time.Minute
	}
	return &ipLimiters{
		entries:   make(map[string]*ipLimiter),
		every:     every,
		burst:     burst,
		idle:      idle,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *ipLimiters) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		l.sweep(now)
	}

	e, ok := l.entries[ip]
	if !ok {
		e = &ipLimiter{limiter: rate.NewLimiter(l.every, l.burst)}
		l.entries[ip] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (l *ipLimiters) sweep(now time.Time) {
	for ip, e := range l.entries {
		if now.Sub(e.lastSeen) >= l.idle {
			delete(l.entries, ip)
		}
	}
	l.lastSweep = now
}

func (l *ipLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func skipRateLimit(c *gin.Context) bool {
	path := c.FullPath()
	return strings.HasSuffix(path, "/health") || path == "/ping" || path == "/"
}

func rejectRateLimited(c *gin.Context, limit, windowSeconds int) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", "0")
	c.Header("Retry-After", strconv.Itoa(windowSeconds))
	utils.RespondWithError(c, http.StatusTooManyRequests,
		"rate_limit_exceeded",
		"Too many requests. Please try again later.",
		gin.H{
			"retry_after": windowSeconds,
			"limit":       limit,
		})
	c.Abort()
}
