package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"archer/config"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func newLimitedConfig() *config.Config {
	return &config.Config{RateLimit: &config.RateLimitConfig{
		Enabled:           true,
		RequestsPerSecond: 1,
		Burst:             2,
		ExpiresIn:         time.Minute,
	}}
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	rl := NewRateLimiter(newLimitedConfig())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"), "burst exhausted")
	assert.True(t, rl.allow("10.0.0.2"), "other clients keep their own bucket")

	now = now.Add(time.Second)
	assert.True(t, rl.allow("10.0.0.1"), "one token refilled")
}

func TestRateLimiter_ForgetsIdleClients(t *testing.T) {
	rl := NewRateLimiter(newLimitedConfig())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.allow("10.0.0.1")
	assert.Len(t, rl.visitors, 1)

	now = now.Add(2 * time.Minute)
	rl.allow("10.0.0.2")
	assert.Len(t, rl.visitors, 1)
	assert.Contains(t, rl.visitors, "10.0.0.2")
}

func TestRateLimiter_Limit(t *testing.T) {
	rl := NewRateLimiter(newLimitedConfig())
	e := echo.New()
	handler := rl.Limit(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/auth/flows/advance", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		_ = handler(e.NewContext(req, rec))
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_DisabledPassesThrough(t *testing.T) {
	rl := NewRateLimiter(&config.Config{})
	assert.False(t, rl.enabled)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	_ = rl.Limit(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(e.NewContext(req, rec))
	assert.Equal(t, http.StatusOK, rec.Code)
}
