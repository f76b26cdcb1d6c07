package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, window time.Duration, limit int) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisLimiter(client, window, limit), mr
}

func TestLimiterAllowsWithinWindow(t *testing.T) {
	limiter, _ := newTestLimiter(t, time.Minute, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "/api/auth/login", "10.0.0.1")
		if err != nil {
			t.Fatalf("Allow: %v", err)
		}
		if !ok {
			t.Fatalf("request %d blocked under limit", i+1)
		}
	}
	ok, err := limiter.Allow(ctx, "/api/auth/login", "10.0.0.1")
	if err != nil {
		t.Fatalf("Allow: %v", err)
	}
	if ok {
		t.Fatal("request over limit allowed")
	}
}

func TestLimiterScopesByRouteAndIP(t *testing.T) {
	limiter, _ := newTestLimiter(t, time.Minute, 1)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "/api/auth/login", "10.0.0.1"); !ok {
		t.Fatal("first request blocked")
	}
	if ok, _ := limiter.Allow(ctx, "/api/auth/login", "10.0.0.1"); ok {
		t.Fatal("same route+ip not limited")
	}
	if ok, _ := limiter.Allow(ctx, "/api/auth/register", "10.0.0.1"); !ok {
		t.Fatal("other route shares the counter")
	}
	if ok, _ := limiter.Allow(ctx, "/api/auth/login", "10.0.0.2"); !ok {
		t.Fatal("other ip shares the counter")
	}
}

func TestLimiterWindowResets(t *testing.T) {
	limiter, mr := newTestLimiter(t, time.Minute, 1)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "/api/auth/login", "10.0.0.1"); !ok {
		t.Fatal("first request blocked")
	}
	if ok, _ := limiter.Allow(ctx, "/api/auth/login", "10.0.0.1"); ok {
		t.Fatal("second request allowed")
	}

	mr.FastForward(time.Minute + time.Second)

	if ok, _ := limiter.Allow(ctx, "/api/auth/login", "10.0.0.1"); !ok {
		t.Fatal("request blocked after window expiry")
	}
}

func TestLimiterMiddlewareBlocksOverLimit(t *testing.T) {
	limiter, _ := newTestLimiter(t, time.Minute, 1)
	handler := limiter.Middleware(testLogger())(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	c, rec := newContext(http.MethodPost, "/api/auth/login", "")
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}

	c, rec = newContext(http.MethodPost, "/api/auth/login", "")
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d", rec.Code)
	}
}

func TestLimiterMiddlewareFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	limiter := NewRedisLimiter(client, time.Minute, 1)
	mr.Close()

	handler := limiter.Middleware(testLogger())(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	c, rec := newContext(http.MethodPost, "/api/auth/login", "")
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want pass-through when redis is down", rec.Code)
	}
}

func TestLimiterMiddlewareNilLimiter(t *testing.T) {
	var limiter *RedisLimiter
	handler := limiter.Middleware(testLogger())(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	c, rec := newContext(http.MethodPost, "/api/auth/login", "")
	if err := handler(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
