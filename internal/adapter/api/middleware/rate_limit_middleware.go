package middleware

import (
	"fmt"
	"math"

	"github.com/labstack/echo/v4"

	"mitcstore/internal/infrastructure/ratelimit"
	"mitcstore/pkg/errors"
	"mitcstore/pkg/logger"
	"mitcstore/pkg/response"
)

// RateLimit throttles requests per client IP under the given action's policy.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			allowed, wait := limiter.Allow(ip, action)
			if !allowed {
				retryAfter := int(math.Ceil(wait.Seconds()))
				logger.Warn("RATE LIMIT: %s blocked for %s (retry in %ds)", ip, action, retryAfter)
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded"))
			}

			return next(c)
		}
	}
}
