package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatwarden/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy defines the behavior when the rate limit store (Redis) is unavailable.
type FailPolicy int

const (
	// FailOpen allows the request to proceed if Redis is unavailable.
	FailOpen FailPolicy = iota
	// FailClosed blocks the request (503 Service Unavailable) if Redis is unavailable.
	FailClosed
)

var errNoRedis = errors.New("redis client is nil")

// CheckRateLimit reports whether id may make another request against
// resource. Limiting is disabled in the test and development environments.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, env, resource, id string, limit int, window time.Duration) (bool, error) {
	switch env {
	case "", "test", "development":
		return true, nil
	}

	if rdb == nil {
		return false, errNoRedis
	}

	key := fmt.Sprintf("rl:%s:%s", resource, id)

	cnt, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if cnt == 1 {
		rdb.Expire(ctx, key, window)
	}
	return cnt <= int64(limit), nil
}

// RateLimitConfig configures RateLimitWithPolicy.
type RateLimitConfig struct {
	Redis  *redis.Client
	Env    string
	Limit  int
	Window time.Duration
	Policy FailPolicy
	// Name is the resource key; the request path is used when empty.
	Name string
}

// RateLimit enforces limit requests per window, keyed by operator when
// authenticated and by remote IP otherwise. It fails open.
func RateLimit(rdb *redis.Client, env string, limit int, window time.Duration) fiber.Handler {
	return RateLimitWithPolicy(RateLimitConfig{Redis: rdb, Env: env, Limit: limit, Window: window})
}

// RateLimitWithPolicy is RateLimit with an explicit failure policy.
func RateLimitWithPolicy(cfg RateLimitConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var id string
		if aid, ok := c.Locals(AdminIDLocal).(string); ok {
			id = "admin:" + aid
		} else {
			id = "ip:" + c.IP()
		}

		resource := cfg.Name
		if resource == "" {
			resource = c.Path()
		}

		allowed, err := CheckRateLimit(c.UserContext(), cfg.Redis, cfg.Env, resource, id, cfg.Limit, cfg.Window)
		if err != nil {
			if cfg.Policy == FailClosed {
				observability.Logger.WarnContext(c.UserContext(), "rate limit unavailable, rejecting request",
					"path", c.Path(), "resource", resource, "error", err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": "rate limit unavailable",
				})
			}
			return c.Next()
		}

		if !allowed {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}
		return c.Next()
	}
}
