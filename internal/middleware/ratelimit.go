package middleware

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"fw-gateway/internal/apierror"
	"fw-gateway/internal/ratelimit"
)

// LivenessPath is the gateway-only health endpoint. It is polled by
// monitoring and never counted against any rate limit budget.
const LivenessPath = "/health"

// Combined rate status headers (draft-ietf-httpapi-ratelimit-headers form).
// The legacy X-RateLimit-* trio is intentionally never emitted.
const (
	HeaderRateLimit       = "RateLimit"
	HeaderRateLimitPolicy = "RateLimit-Policy"
)

// RateLimit returns a fixed-window per-client rate limiting middleware
// backed by the given store. Every response carries the combined RateLimit
// status header and the policy descriptor; rejections additionally carry
// Retry-After. The liveness path bypasses counting entirely.
func RateLimit(store ratelimit.Store, maxRequests int, window time.Duration) fiber.Handler {
	policy := fmt.Sprintf("%d;w=%d", maxRequests, int(window.Seconds()))

	return func(c *fiber.Ctx) error {
		c.Set(HeaderRateLimitPolicy, policy)

		key := ClientKey(c)

		if c.Path() == LivenessPath {
			count, reset := store.Peek(key)
			setRateStatus(c, maxRequests, count, reset)
			return c.Next()
		}

		count, reset := store.Increment(key)
		setRateStatus(c, maxRequests, count, reset)

		if count > maxRequests {
			retryAfter := int(math.Ceil(time.Until(reset).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
			return apierror.RateLimited()
		}

		return c.Next()
	}
}

// ClientKey derives the limiter key for a request: the first entry of a
// forwarded-for chain, else the direct peer address, else a fixed token.
// The HTTP method is deliberately not part of the key.
func ClientKey(c *fiber.Ctx) string {
	if forwarded := c.Get(fiber.HeaderXForwardedFor); forwarded != "" {
		first := strings.TrimSpace(strings.SplitN(forwarded, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	if ip := c.IP(); ip != "" {
		return ip
	}
	return "unknown"
}

func setRateStatus(c *fiber.Ctx, limit, count int, reset time.Time) {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	resetSeconds := int(math.Ceil(time.Until(reset).Seconds()))
	if resetSeconds < 0 {
		resetSeconds = 0
	}
	c.Set(HeaderRateLimit, fmt.Sprintf("limit=%d, remaining=%d, reset=%d", limit, remaining, resetSeconds))
}
