package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAllowEnforcesPerOriginQuota(t *testing.T) {
	l := New(2)

	if !l.Allow("client-a") {
		t.Fatal("first request should be allowed")
	}
	if !l.Allow("client-a") {
		t.Fatal("second request within burst should be allowed")
	}
	if l.Allow("client-a") {
		t.Error("third immediate request should exceed the burst and be denied")
	}
}

func TestAllowTracksOriginsIndependently(t *testing.T) {
	l := New(1)
	if !l.Allow("client-a") {
		t.Fatal("client-a's first request should be allowed")
	}
	if !l.Allow("client-b") {
		t.Error("client-b should have its own independent quota")
	}
}

func TestNewDefaultsNonPositivePerMinute(t *testing.T) {
	l := New(0)
	if l.perMinute != DefaultPerMinute {
		t.Errorf("perMinute = %d, want default %d", l.perMinute, DefaultPerMinute)
	}
}

func TestMiddlewareRejectsOverQuota(t *testing.T) {
	l := New(1)
	e := echo.New()
	handlerCalls := 0
	next := func(c echo.Context) error {
		handlerCalls++
		return c.NoContent(http.StatusOK)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec1 := httptest.NewRecorder()
	c1 := e.NewContext(req, rec1)
	if err := l.Middleware(next)(c1); err != nil {
		t.Fatalf("first request: unexpected error %v", err)
	}
	if rec1.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec1.Code)
	}

	rec2 := httptest.NewRecorder()
	c2 := e.NewContext(req, rec2)
	if err := l.Middleware(next)(c2); err != nil {
		t.Fatalf("second request: unexpected error %v", err)
	}
	if rec2.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec2.Code)
	}
	if handlerCalls != 1 {
		t.Errorf("handler called %d times, want 1 (second request rejected before reaching it)", handlerCalls)
	}
}

func TestOriginOfPrefersAuthHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("Authorization", "Bearer abc123")

	if got := originOf(req); got != "Bearer abc123" {
		t.Errorf("originOf = %q, want the Authorization header value", got)
	}
}
