package middleware

import (
	"encoding/json"
	"strings"

	"github.com/gofiber/fiber/v2"

	"fw-gateway/internal/apierror"
)

// BodyGuard returns a middleware that rejects syntactically invalid JSON
// bodies before dispatch, so malformed payloads never reach an upstream.
// Only requests declaring a JSON content type with a non-empty body are
// checked; everything else passes through untouched.
func BodyGuard() fiber.Handler {
	return func(c *fiber.Ctx) error {
		contentType := c.Get(fiber.HeaderContentType)
		if strings.HasPrefix(contentType, fiber.MIMEApplicationJSON) {
			if body := c.Body(); len(body) > 0 && !json.Valid(body) {
				return apierror.InvalidJSON()
			}
		}
		return c.Next()
	}
}
