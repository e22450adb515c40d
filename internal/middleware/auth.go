package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"fw-gateway/internal/apierror"
)

// HeaderAPIKey is the shared-secret header protected routes require
const HeaderAPIKey = "X-API-Key"

// APIKey returns a middleware that validates the shared-secret header.
// An absent header, a repeated header, or a blank value are all treated as
// missing. A present value is compared against every configured key in
// constant time; the rejection message is identical for every mismatch.
func APIKey(validKeys []string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		values := c.Request().Header.PeekAll(HeaderAPIKey)
		if len(values) != 1 {
			return apierror.MissingAPIKey()
		}

		candidate := strings.TrimSpace(string(values[0]))
		if candidate == "" {
			return apierror.MissingAPIKey()
		}

		if !matchesAnyKey(candidate, validKeys) {
			return apierror.InvalidAPIKey()
		}

		return c.Next()
	}
}

// matchesAnyKey compares the candidate against every configured key without
// short-circuiting. Length mismatches still run a fixed-cost dummy compare
// so wall-clock time does not reveal key lengths.
func matchesAnyKey(candidate string, validKeys []string) bool {
	candidateBytes := []byte(candidate)
	matched := false

	for _, key := range validKeys {
		keyBytes := []byte(key)
		if len(keyBytes) == len(candidateBytes) {
			if subtle.ConstantTimeCompare(candidateBytes, keyBytes) == 1 {
				matched = true
			}
		} else {
			subtle.ConstantTimeCompare(candidateBytes, candidateBytes)
		}
	}

	return matched
}
