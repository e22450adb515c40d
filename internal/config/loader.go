package config

import (
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"fw-gateway/pkg/logging"
)

// PlaceholderAPIKey is the non-production fallback key. Production
// configurations are rejected if any configured key equals it.
const PlaceholderAPIKey = "dev-key-change-me"

// Non-production fallbacks. In production these values are treated as
// "not explicitly configured" and rejected.
const (
	defaultBackendURL   = "http://localhost:3001"
	defaultConverterURL = "http://localhost:3002"
	defaultCORSOrigins  = "http://localhost:3000,http://localhost:5173"
)

// Load builds the gateway configuration from the process environment
// (prefix GATEWAY_, dots become underscores) over documented defaults.
//
// Validation is strict in production: every violation is logged with its
// field path and the load fails, so the gateway never serves traffic with
// an invalid or insecure configuration. Outside production, violations are
// logged as warnings and replaced with safe local-development fallbacks.
func Load(log *logging.Logger) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Upstreams.Backend.Name = "backend"
	cfg.Upstreams.Converter.Name = "converter"
	cfg.Security.Keys = splitList(cfg.Security.APIKeys)
	cfg.Security.Origins = splitList(cfg.Security.CORSAllowOrigins)

	violations := validate(&cfg)
	if len(violations) > 0 {
		if cfg.Server.Production {
			for _, viol := range violations {
				log.Error("Invalid configuration",
					zap.String("field", viol.Field),
					zap.String("reason", viol.Reason),
				)
			}
			return nil, fmt.Errorf("configuration invalid: %d violation(s)", len(violations))
		}
		for _, viol := range violations {
			log.Warn("Configuration invalid, applying fallback",
				zap.String("field", viol.Field),
				zap.String("reason", viol.Reason),
			)
			applyFallback(&cfg, viol.Field)
		}
	}

	return &cfg, nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.production", false)
	v.SetDefault("server.body_limit", 10*1024*1024)
	v.SetDefault("server.read_timeout", 60)
	v.SetDefault("server.write_timeout", 660)
	v.SetDefault("server.shutdown_timeout", 10)

	// Security defaults
	v.SetDefault("security.api_keys", PlaceholderAPIKey)
	v.SetDefault("security.cors_allow_origins", defaultCORSOrigins)

	// Rate limit defaults
	v.SetDefault("ratelimit.window_ms", 60000)
	v.SetDefault("ratelimit.max_requests", 100)

	// Proxy defaults. The five-minute request timeout accommodates the
	// converter's long-running document jobs.
	v.SetDefault("proxy.timeout", 300)
	v.SetDefault("proxy.health_timeout", 5)
	v.SetDefault("proxy.max_idle_conns", 100)
	v.SetDefault("proxy.idle_conn_timeout", 90)

	// Upstream defaults
	v.SetDefault("upstreams.backend.url", defaultBackendURL)
	v.SetDefault("upstreams.backend.base_path", "/api/backend")
	v.SetDefault("upstreams.backend.enable_websocket", false)
	v.SetDefault("upstreams.converter.url", defaultConverterURL)
	v.SetDefault("upstreams.converter.base_path", "/api/converter")
	v.SetDefault("upstreams.converter.enable_websocket", false)

	// Resilience defaults
	v.SetDefault("resilience.enable_circuit_breaker", true)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout", 30)
	v.SetDefault("resilience.enable_retry", false)
	v.SetDefault("resilience.max_retries", 3)
	v.SetDefault("resilience.retry_interval", 100)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output_path", "stdout")

	// Metrics defaults
	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")

	// Tracing defaults
	v.SetDefault("tracing.enable", false)
	v.SetDefault("tracing.service_name", "fw-gateway")
	v.SetDefault("tracing.otlp_endpoint", "localhost:4317")
}

// violation records one failed validation rule
type violation struct {
	Field  string
	Reason string
}

func validate(cfg *Config) []violation {
	var violations []violation

	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})

	if err := v.Struct(cfg); err != nil {
		for _, fe := range err.(validator.ValidationErrors) {
			violations = append(violations, violation{
				Field:  strings.TrimPrefix(fe.Namespace(), "Config."),
				Reason: reasonForTag(fe),
			})
		}
	}

	if len(cfg.Security.Keys) == 0 {
		violations = append(violations, violation{
			Field:  "security.api_keys",
			Reason: "at least one API key is required",
		})
	}

	for i, up := range cfg.Upstreams.All() {
		field := fmt.Sprintf("upstreams.%s.url", up.Name)
		if !validUpstreamURL(up.URL) {
			violations = append(violations, violation{
				Field:  field,
				Reason: "must be an absolute http or https URL",
			})
		} else if cfg.Server.Production && up.URL == upstreamDefault(i) {
			violations = append(violations, violation{
				Field:  field,
				Reason: "must be explicitly configured in production",
			})
		}
	}

	if cfg.Server.Production {
		for _, key := range cfg.Security.Keys {
			if key == PlaceholderAPIKey {
				violations = append(violations, violation{
					Field:  "security.api_keys",
					Reason: "the development placeholder key is not allowed in production",
				})
				break
			}
		}
		if cfg.Security.CORSAllowOrigins == defaultCORSOrigins || len(cfg.Security.Origins) == 0 {
			violations = append(violations, violation{
				Field:  "security.cors_allow_origins",
				Reason: "allowed origins must be explicitly configured in production",
			})
		}
	}

	return violations
}

// applyFallback resets a single invalid field to its documented
// non-production default.
func applyFallback(cfg *Config, field string) {
	switch field {
	case "server.port":
		cfg.Server.Port = 8080
	case "server.body_limit":
		cfg.Server.BodyLimit = 10 * 1024 * 1024
	case "server.read_timeout":
		cfg.Server.ReadTimeout = 60
	case "server.write_timeout":
		cfg.Server.WriteTimeout = 660
	case "server.shutdown_timeout":
		cfg.Server.ShutdownTimeout = 10
	case "security.api_keys":
		cfg.Security.Keys = []string{PlaceholderAPIKey}
	case "security.cors_allow_origins":
		cfg.Security.Origins = splitList(defaultCORSOrigins)
	case "ratelimit.window_ms":
		cfg.RateLimit.WindowMs = 60000
	case "ratelimit.max_requests":
		cfg.RateLimit.MaxRequests = 100
	case "proxy.timeout":
		cfg.Proxy.Timeout = 300
	case "proxy.health_timeout":
		cfg.Proxy.HealthTimeout = 5
	case "upstreams.backend.url":
		cfg.Upstreams.Backend.URL = defaultBackendURL
	case "upstreams.converter.url":
		cfg.Upstreams.Converter.URL = defaultConverterURL
	}
}

func reasonForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed rule " + fe.Tag()
	}
}

func validUpstreamURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func upstreamDefault(i int) string {
	if i == 0 {
		return defaultBackendURL
	}
	return defaultConverterURL
}

// splitList splits a comma-separated value, trimming whitespace and
// dropping empty entries.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
