package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderRequestID carries the correlation id on requests and responses
const HeaderRequestID = "X-Request-ID"

// LocalRequestID is the fiber locals key holding the correlation id
const LocalRequestID = "requestid"

// RequestID returns a middleware that assigns a correlation id to each
// request: an inbound X-Request-ID is reused if non-empty, otherwise a
// fresh UUID is generated. The final id is echoed back as a response
// header so clients can correlate.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := strings.TrimSpace(c.Get(HeaderRequestID))
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Locals(LocalRequestID, requestID)
		c.Set(HeaderRequestID, requestID)

		return c.Next()
	}
}
