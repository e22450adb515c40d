package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"fw-gateway/internal/apierror"
	"fw-gateway/pkg/logging"
)

func newObservedApp(level zapcore.Level) (*fiber.App, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	log := &logging.Logger{Logger: zap.New(core)}

	app := newTestApp()
	app.Use(RequestID())
	app.Use(Logger(log))
	app.Get("/ok", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get(LivenessPath, func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/denied", func(c *fiber.Ctx) error { return apierror.InvalidAPIKey() })
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.ErrInternalServerError })
	return app, logs
}

func entryField(t *testing.T, entry observer.LoggedEntry, key string) zap.Field {
	t.Helper()
	for _, f := range entry.Context {
		if f.Key == key {
			return f
		}
	}
	t.Fatalf("field %q not found in log entry", key)
	return zap.Field{}
}

func TestLoggerLevelsByStatus(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		wantLevel zapcore.Level
		wantCode  int64
	}{
		{"success logs at info", "/ok", zapcore.InfoLevel, http.StatusOK},
		{"client error logs at warn", "/denied", zapcore.WarnLevel, http.StatusUnauthorized},
		{"server error logs at error", "/boom", zapcore.ErrorLevel, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, logs := newObservedApp(zapcore.InfoLevel)
			_, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)

			entries := logs.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantLevel, entries[0].Level)
			assert.Equal(t, tt.wantCode, entryField(t, entries[0], "status").Integer)
		})
	}
}

func TestLoggerLivenessAtDebug(t *testing.T) {
	app, logs := newObservedApp(zapcore.InfoLevel)
	_, err := app.Test(httptest.NewRequest(http.MethodGet, LivenessPath, nil))
	require.NoError(t, err)
	assert.Empty(t, logs.All(), "liveness polls must stay out of info-level output")

	app, logs = newObservedApp(zapcore.DebugLevel)
	_, err = app.Test(httptest.NewRequest(http.MethodGet, LivenessPath, nil))
	require.NoError(t, err)
	completed := logs.FilterMessage("Request completed").All()
	require.Len(t, completed, 1)
	assert.Equal(t, zapcore.DebugLevel, completed[0].Level)
}

func TestLoggerCarriesRequestID(t *testing.T) {
	app, logs := newObservedApp(zapcore.InfoLevel)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(HeaderRequestID, "corr-123")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, "corr-123", resp.Header.Get(HeaderRequestID))
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "corr-123", entryField(t, entries[0], "request_id").String)
}

func TestLoggerGeneratesRequestID(t *testing.T) {
	app, logs := newObservedApp(zapcore.InfoLevel)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ok", nil))
	require.NoError(t, err)

	generated := resp.Header.Get(HeaderRequestID)
	assert.NotEmpty(t, generated)
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, generated, entryField(t, entries[0], "request_id").String)
}

func TestRedactHeaders(t *testing.T) {
	in := map[string][]string{
		"Authorization": {"Bearer secret"},
		"X-Api-Key":     {"sk-123"},
		"Cookie":        {"session=abc"},
		"Content-Type":  {"application/json"},
		"Accept":        {"application/json", "text/plain"},
	}

	out := RedactHeaders(in)

	assert.Equal(t, RedactedValue, out["Authorization"])
	assert.Equal(t, RedactedValue, out["X-Api-Key"])
	assert.Equal(t, RedactedValue, out["Cookie"])
	assert.Equal(t, "application/json", out["Content-Type"])
	assert.Equal(t, "application/json, text/plain", out["Accept"])
}

func TestLoggerRedactsDebugHeaderDump(t *testing.T) {
	app, logs := newObservedApp(zapcore.DebugLevel)

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(HeaderAPIKey, "sk-should-never-appear")
	_, err := app.Test(req)
	require.NoError(t, err)

	received := logs.FilterMessage("Request received").All()
	require.Len(t, received, 1)
	headers, ok := entryField(t, received[0], "headers").Interface.(map[string]string)
	require.True(t, ok)

	var sawKeyHeader bool
	for name, v := range headers {
		if strings.EqualFold(name, HeaderAPIKey) {
			sawKeyHeader = true
			assert.Equal(t, RedactedValue, v)
		}
		assert.NotContains(t, v, "sk-should-never-appear")
	}
	assert.True(t, sawKeyHeader, "redacted header name should still appear in the dump")
}
