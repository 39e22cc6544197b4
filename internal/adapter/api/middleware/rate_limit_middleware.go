package middleware

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"brokerdesk/internal/infrastructure/ratelimit"
	"brokerdesk/pkg/errors"
	"brokerdesk/pkg/logger"
	"brokerdesk/pkg/response"
)

type RateLimitMiddleware struct {
	limiter *ratelimit.RateLimiter
}

func NewRateLimitMiddleware(limiter *ratelimit.RateLimiter) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter: limiter,
	}
}

// Limit budgets one action per authenticated user. It runs after
// Authenticate, keyed on the uid rather than the caller's IP, so brokers
// behind one office NAT don't eat each other's quota.
func (m *RateLimitMiddleware) Limit(action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			uid, ok := c.Get("uid").(string)
			if !ok || uid == "" {
				return response.Error(c, errors.Unauthorized("Authentication required", nil))
			}

			allowed, retryAfter := m.limiter.Allow(uid, action)
			if !allowed {
				logger.Warn("ratelimit: %s throttled on %s, retry in %s", uid, action, retryAfter)
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter.Seconds()))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded, slow down"))
			}

			return next(c)
		}
	}
}
