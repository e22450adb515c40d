// Package apierror defines the gateway's error envelope. Every failure,
// expected or not, is rendered as {"status":"error","code":...,"message":...}
// by the terminal handler; nothing reaches the client unformatted.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"fw-gateway/pkg/logging"
)

// Machine-readable error codes
const (
	CodeMissingAPIKey    = "MISSING_API_KEY"
	CodeInvalidAPIKey    = "INVALID_API_KEY"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInvalidJSON      = "INVALID_JSON"
	CodeNotFound         = "NOT_FOUND"
	CodeUpstreamError    = "UPSTREAM_ERROR"
	CodeTimeout          = "TIMEOUT"
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodeProxyError       = "PROXY_ERROR"
	CodeInternalError    = "INTERNAL_ERROR"
)

// genericInternalMessage replaces real error text in production responses
const genericInternalMessage = "An unexpected error occurred"

// Error is a typed, client-safe failure. Messages on Error values are
// written by the gateway itself and may be shown to callers verbatim.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// New creates a typed API error
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

// MissingAPIKey reports an absent or blank API key header
func MissingAPIKey() *Error {
	return New(fiber.StatusUnauthorized, CodeMissingAPIKey, "Missing API key")
}

// InvalidAPIKey reports a key that matched no configured value. The message
// is fixed so its content never hints how close the attempt was.
func InvalidAPIKey() *Error {
	return New(fiber.StatusUnauthorized, CodeInvalidAPIKey, "Invalid API key")
}

// RateLimited reports an exhausted fixed-window budget
func RateLimited() *Error {
	return New(fiber.StatusTooManyRequests, CodeRateLimited, "Too many requests, please try again later")
}

// InvalidJSON reports a malformed JSON request body
func InvalidJSON() *Error {
	return New(fiber.StatusBadRequest, CodeInvalidJSON, "Invalid JSON in request body")
}

// NotFound reports an unrouted method and path. Echoing the caller's own
// input back is safe.
func NotFound(method, path string) *Error {
	return New(fiber.StatusNotFound, CodeNotFound, fmt.Sprintf("Route %s %s not found", method, path))
}

// Timeout reports an upstream call that exceeded its deadline
func Timeout() *Error {
	return New(fiber.StatusGatewayTimeout, CodeTimeout, "Upstream request timed out")
}

// ConnectionFailed reports an unreachable upstream
func ConnectionFailed() *Error {
	return New(fiber.StatusBadGateway, CodeConnectionFailed, "Unable to reach upstream service")
}

// ProxyError reports any other forwarding failure
func ProxyError() *Error {
	return New(fiber.StatusBadGateway, CodeProxyError, "Upstream request failed")
}

// UpstreamUnavailable reports a tripped circuit breaker
func UpstreamUnavailable() *Error {
	return New(fiber.StatusServiceUnavailable, CodeUpstreamError, "Upstream service temporarily unavailable")
}

// StatusOf reports the HTTP status an error will be rendered with
func StatusOf(err error) int {
	if err == nil {
		return fiber.StatusOK
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}

// Handler returns the terminal fiber error handler. Typed errors keep their
// own status, code and message. Framework errors (body limit, bad requests)
// keep their status with a code derived from it. Anything else is an
// internal error: the real text is logged server-side and, in production,
// replaced by a fixed generic message.
func Handler(production bool, log *logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		code := CodeInternalError
		message := err.Error()

		var apiErr *Error
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &apiErr):
			status = apiErr.Status
			code = apiErr.Code
			message = apiErr.Message
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			code = codeForStatus(status)
			message = fiberErr.Message
		default:
			log.Error("Unhandled error",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			if production {
				message = genericInternalMessage
			}
		}

		return c.Status(status).JSON(fiber.Map{
			"status":  "error",
			"code":    code,
			"message": message,
		})
	}
}

// codeForStatus maps a framework-generated status to an envelope code,
// e.g. 413 -> REQUEST_ENTITY_TOO_LARGE.
func codeForStatus(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return CodeNotFound
	case fiber.StatusTooManyRequests:
		return CodeRateLimited
	case fiber.StatusInternalServerError:
		return CodeInternalError
	}
	text := http.StatusText(status)
	if text == "" {
		return CodeInternalError
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}
