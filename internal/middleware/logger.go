package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"fw-gateway/internal/apierror"
	"fw-gateway/pkg/logging"
)

// LocalLogger is the fiber locals key holding the per-request logger
const LocalLogger = "logger"

// RedactedValue replaces sensitive header values in log output
const RedactedValue = "[REDACTED]"

// sensitiveHeaders are never logged in the clear. The name still appears,
// masked, so a missing field is distinguishable from a hidden one.
var sensitiveHeaders = map[string]bool{
	"authorization": true,
	"x-api-key":     true,
	"cookie":        true,
	"set-cookie":    true,
}

// Logger returns a middleware that attaches a correlation-scoped logger to
// the request context and emits one structured record per request at
// completion. Level tracks the outcome: error for 5xx, warn for 4xx, info
// otherwise. The liveness path logs at debug to keep periodic monitoring
// polls out of the default output.
func Logger(log *logging.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID, _ := c.Locals(LocalRequestID).(string)
		reqLog := log.With(zap.String("request_id", requestID))
		c.Locals(LocalLogger, reqLog)

		if reqLog.Core().Enabled(zap.DebugLevel) {
			reqLog.Debug("Request received",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Any("headers", RedactHeaders(c.GetReqHeaders())),
			)
		}

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = apierror.StatusOf(err)
		}

		fields := []zap.Field{
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("ip", c.IP()),
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			reqLog.Error("Request completed with server error", append(fields, zap.Error(err))...)
		case status >= fiber.StatusBadRequest:
			reqLog.Warn("Request completed with client error", append(fields, zap.Error(err))...)
		case c.Path() == LivenessPath:
			reqLog.Debug("Request completed", fields...)
		default:
			reqLog.Info("Request completed", fields...)
		}

		return err
	}
}

// RedactHeaders flattens request headers for logging, masking sensitive
// values instead of dropping them.
func RedactHeaders(headers map[string][]string) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if sensitiveHeaders[strings.ToLower(name)] {
			out[name] = RedactedValue
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}
