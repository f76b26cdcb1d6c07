package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// RedisLimiter is a fixed-window request counter shared across instances.
// Keys are scoped by route and client IP and expire with the window.
type RedisLimiter struct {
	client *redis.Client
	window time.Duration
	limit  int
}

// NewRedisLimiter creates a limiter allowing limit requests per window.
func NewRedisLimiter(client *redis.Client, window time.Duration, limit int) *RedisLimiter {
	return &RedisLimiter{client: client, window: window, limit: limit}
}

func (r *RedisLimiter) key(route, ip string) string {
	return fmt.Sprintf("rl:%s:%s", route, ip)
}

// Allow counts one request and reports whether it stays within the window
// limit. The first hit in a window sets the expiry.
func (r *RedisLimiter) Allow(ctx context.Context, route, ip string) (bool, error) {
	key := r.key(route, ip)
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, r.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(r.limit), nil
}

// Middleware applies the limiter to a route group. Redis outages fail open.
func (r *RedisLimiter) Middleware(logger *log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if r == nil || r.client == nil {
				return next(c)
			}
			ok, err := r.Allow(c.Request().Context(), c.Path(), c.RealIP())
			if err != nil {
				logger.Warnf("rate limiter unavailable: %v", err)
				return next(c)
			}
			if !ok {
				return c.JSON(http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
			}
			return next(c)
		}
	}
}
