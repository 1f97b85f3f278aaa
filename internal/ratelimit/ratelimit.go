// Package ratelimit enforces the per-origin HTTP quota spec.md §6
// requires of the transport layer.
package ratelimit

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// DefaultPerMinute is the spec-mandated default quota.
const DefaultPerMinute = 10

// Limiter hands out one golang.org/x/time/rate.Limiter per origin key
// (client IP or bearer principal), created lazily and retained for
// the process lifetime.
type Limiter struct {
	mu         sync.Mutex
	perMinute  int
	byOrigin   map[string]*rate.Limiter
}

// New builds a Limiter allowing perMinute requests per origin, with a
// burst equal to perMinute.
func New(perMinute int) *Limiter {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	return &Limiter{perMinute: perMinute, byOrigin: make(map[string]*rate.Limiter)}
}

// Allow reports whether a request from origin may proceed right now.
func (l *Limiter) Allow(origin string) bool {
	return l.limiterFor(origin).Allow()
}

func (l *Limiter) limiterFor(origin string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.byOrigin[origin]; ok {
		return lim
	}
	lim := rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.perMinute)
	l.byOrigin[origin] = lim
	return lim
}

// Middleware enforces the quota per client IP (or, when present, the
// bearer token) with HTTP 429 on rejection.
func (l *Limiter) Middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		origin := originOf(c.Request())
		if !l.Allow(origin) {
			return c.JSON(http.StatusTooManyRequests, map[string]string{
				"error_code": "rate_limited",
				"message":    "too many requests",
			})
		}
		return next(c)
	}
}

func originOf(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return auth
	}
	return r.RemoteAddr
}
