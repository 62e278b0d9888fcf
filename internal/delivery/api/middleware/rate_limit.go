package middleware

import (
	"sync"
	"time"

	"archer/config"
	"archer/internal/delivery/api/response"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP. Buckets idle for longer
// than the configured expiry are dropped on the next sweep.
type RateLimiter struct {
	enabled   bool
	limit     rate.Limit
	burst     int
	expiresIn time.Duration
	now       func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

// NewRateLimiter builds the limiter from config; a missing or disabled
// section yields a pass-through middleware.
func NewRateLimiter(cfg *config.Config) *RateLimiter {
	rl := &RateLimiter{
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
	if cfg.RateLimit == nil || !cfg.RateLimit.Enabled {
		return rl
	}

	rl.enabled = true
	rl.limit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
	rl.burst = max(cfg.RateLimit.Burst, 1)
	rl.expiresIn = cfg.RateLimit.ExpiresIn
	if rl.expiresIn <= 0 {
		rl.expiresIn = 3 * time.Minute
	}

	return rl
}

// Limit rejects requests beyond the client's budget with 429.
func (rl *RateLimiter) Limit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !rl.enabled {
			return next(c)
		}
		if !rl.allow(c.RealIP()) {
			return response.TooManyRequests(c, "RATE_LIMITED", "Too many requests, please slow down")
		}

		return next(c)
	}
}

func (rl *RateLimiter) allow(key string) bool {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.expiresIn {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.expiresIn {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now

	return v.limiter.AllowN(now, 1)
}
