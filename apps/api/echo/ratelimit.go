package echoapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

var errTooManyRequests = echo.NewHTTPError(http.StatusTooManyRequests, "too many requests")

// tokenBucket is an in-memory per-key rate limiter; for prod swap to Redis.
type tokenBucket struct {
	capacity int
	rate     int // tokens per minute
	mu       sync.Mutex
	state    map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

func newTokenBucket(capacity, perMinute int) *tokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &tokenBucket{
		capacity: capacity,
		rate:     perMinute,
		state:    make(map[string]*bucket),
	}
}

func (l *tokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true
	}
	refill := int(now.Sub(b.last).Minutes() * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// rateLimitMiddleware enforces a per-IP limit on the routes it wraps.
func rateLimitMiddleware(capacity, perMinute int) echo.MiddlewareFunc {
	limiter := newTokenBucket(capacity, perMinute)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ip := ctx.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			if !limiter.allow(ip) {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}
