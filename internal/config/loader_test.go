package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fw-gateway/pkg/logging"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(logging.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Server.Production)
	assert.Equal(t, 60000, cfg.RateLimit.WindowMs)
	assert.Equal(t, 100, cfg.RateLimit.MaxRequests)
	assert.Equal(t, []string{PlaceholderAPIKey}, cfg.Security.Keys)
	assert.Equal(t, "http://localhost:3001", cfg.Upstreams.Backend.URL)
	assert.Equal(t, "http://localhost:3002", cfg.Upstreams.Converter.URL)
	assert.Equal(t, "/api/backend", cfg.Upstreams.Backend.BasePath)
	assert.Equal(t, "/api/converter", cfg.Upstreams.Converter.BasePath)
	assert.Equal(t, "backend", cfg.Upstreams.Backend.Name)
	assert.Equal(t, "converter", cfg.Upstreams.Converter.Name)
	assert.Contains(t, cfg.Security.Origins, "http://localhost:3000")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GATEWAY_SERVER_PORT", "9090")
	t.Setenv("GATEWAY_SECURITY_API_KEYS", "k1, k2 ,")
	t.Setenv("GATEWAY_RATELIMIT_MAX_REQUESTS", "7")
	t.Setenv("GATEWAY_UPSTREAMS_BACKEND_URL", "https://backend.internal:8443")

	cfg, err := Load(logging.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Security.Keys)
	assert.Equal(t, 7, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "https://backend.internal:8443", cfg.Upstreams.Backend.URL)
}

func TestLoadProductionRejectsDefaults(t *testing.T) {
	t.Setenv("GATEWAY_SERVER_PRODUCTION", "true")

	_, err := Load(logging.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration invalid")
}

func TestLoadProductionRejectsPlaceholderKey(t *testing.T) {
	t.Setenv("GATEWAY_SERVER_PRODUCTION", "true")
	t.Setenv("GATEWAY_SECURITY_API_KEYS", "real-key,"+PlaceholderAPIKey)
	t.Setenv("GATEWAY_SECURITY_CORS_ALLOW_ORIGINS", "https://app.example.com")
	t.Setenv("GATEWAY_UPSTREAMS_BACKEND_URL", "https://backend.example.com")
	t.Setenv("GATEWAY_UPSTREAMS_CONVERTER_URL", "https://converter.example.com")

	_, err := Load(logging.NewNop())
	require.Error(t, err)
}

func TestLoadProductionExplicitConfigSucceeds(t *testing.T) {
	t.Setenv("GATEWAY_SERVER_PRODUCTION", "true")
	t.Setenv("GATEWAY_SECURITY_API_KEYS", "prod-key-1,prod-key-2")
	t.Setenv("GATEWAY_SECURITY_CORS_ALLOW_ORIGINS", "https://app.example.com")
	t.Setenv("GATEWAY_UPSTREAMS_BACKEND_URL", "https://backend.example.com")
	t.Setenv("GATEWAY_UPSTREAMS_CONVERTER_URL", "https://converter.example.com")

	cfg, err := Load(logging.NewNop())
	require.NoError(t, err)

	assert.True(t, cfg.Server.Production)
	assert.Equal(t, []string{"prod-key-1", "prod-key-2"}, cfg.Security.Keys)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Security.Origins)
}

func TestLoadDevelopmentFallbacks(t *testing.T) {
	t.Setenv("GATEWAY_SERVER_PORT", "99999")
	t.Setenv("GATEWAY_RATELIMIT_WINDOW_MS", "10")
	t.Setenv("GATEWAY_UPSTREAMS_CONVERTER_URL", "not-a-url")

	cfg, err := Load(logging.NewNop())
	require.NoError(t, err, "outside production invalid values degrade to fallbacks")

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60000, cfg.RateLimit.WindowMs)
	assert.Equal(t, "http://localhost:3002", cfg.Upstreams.Converter.URL)
}

func TestLoadDevelopmentEmptyKeysFallsBack(t *testing.T) {
	t.Setenv("GATEWAY_SECURITY_API_KEYS", " , ,")

	cfg, err := Load(logging.NewNop())
	require.NoError(t, err)

	assert.Equal(t, []string{PlaceholderAPIKey}, cfg.Security.Keys)
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple", "a,b,c", []string{"a", "b", "c"}},
		{"whitespace", " a , b ", []string{"a", "b"}},
		{"empty entries", "a,,b,", []string{"a", "b"}},
		{"empty string", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitList(tt.input))
		})
	}
}

func TestRateLimitWindow(t *testing.T) {
	cfg := RateLimitConfig{WindowMs: 1500}
	assert.Equal(t, "1.5s", cfg.Window().String())
}
