package config

import "time"

// Config represents the gateway configuration. It is built once at startup
// and treated as read-only afterwards; components receive it by injection
// and never read the environment themselves.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Security   SecurityConfig   `mapstructure:"security"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Proxy      ProxyConfig      `mapstructure:"proxy"`
	Upstreams  UpstreamsConfig  `mapstructure:"upstreams"`
	Resilience ResilienceConfig `mapstructure:"resilience"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port            int  `mapstructure:"port" validate:"gte=1,lte=65535"`
	Production      bool `mapstructure:"production"`
	BodyLimit       int  `mapstructure:"body_limit" validate:"gte=1"`
	ReadTimeout     int  `mapstructure:"read_timeout" validate:"gte=1"`
	WriteTimeout    int  `mapstructure:"write_timeout" validate:"gte=1"`
	ShutdownTimeout int  `mapstructure:"shutdown_timeout" validate:"gte=1"`
}

// SecurityConfig contains the API key set and CORS policy. APIKeys and
// CORSAllowOrigins arrive as comma-separated strings from the environment;
// the parsed forms are populated by Load.
type SecurityConfig struct {
	APIKeys          string `mapstructure:"api_keys"`
	CORSAllowOrigins string `mapstructure:"cors_allow_origins"`

	Keys    []string `mapstructure:"-"`
	Origins []string `mapstructure:"-"`
}

// RateLimitConfig contains the fixed-window rate limit policy
type RateLimitConfig struct {
	WindowMs    int `mapstructure:"window_ms" validate:"gte=1000"`
	MaxRequests int `mapstructure:"max_requests" validate:"gte=1"`
}

// Window returns the rate limit window as a duration
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowMs) * time.Millisecond
}

// ProxyConfig contains outbound HTTP client configuration. Timeout is
// deliberately generous: the converter upstream runs long document jobs.
type ProxyConfig struct {
	Timeout         int `mapstructure:"timeout" validate:"gte=1"`
	HealthTimeout   int `mapstructure:"health_timeout" validate:"gte=1"`
	MaxIdleConns    int `mapstructure:"max_idle_conns"`
	IdleConnTimeout int `mapstructure:"idle_conn_timeout"`
}

// RequestTimeout returns the per-request forwarding timeout
func (p ProxyConfig) RequestTimeout() time.Duration {
	return time.Duration(p.Timeout) * time.Second
}

// ProbeTimeout returns the per-probe health check timeout
func (p ProxyConfig) ProbeTimeout() time.Duration {
	return time.Duration(p.HealthTimeout) * time.Second
}

// Upstream describes one proxied backend service
type Upstream struct {
	Name            string `mapstructure:"-"`
	URL             string `mapstructure:"url"`
	BasePath        string `mapstructure:"base_path"`
	EnableWebSocket bool   `mapstructure:"enable_websocket"`
}

// UpstreamsConfig contains the two proxied backends
type UpstreamsConfig struct {
	Backend   Upstream `mapstructure:"backend"`
	Converter Upstream `mapstructure:"converter"`
}

// All returns the configured upstreams in a fixed order
func (u UpstreamsConfig) All() []Upstream {
	return []Upstream{u.Backend, u.Converter}
}

// ResilienceConfig contains circuit breaker and retry configuration
type ResilienceConfig struct {
	EnableCircuitBreaker bool `mapstructure:"enable_circuit_breaker"`
	FailureThreshold     int  `mapstructure:"failure_threshold"`
	ResetTimeout         int  `mapstructure:"reset_timeout"`
	EnableRetry          bool `mapstructure:"enable_retry"`
	MaxRetries           int  `mapstructure:"max_retries"`
	RetryInterval        int  `mapstructure:"retry_interval"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// MetricsConfig contains metrics-related configuration
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// TracingConfig contains tracing-related configuration
type TracingConfig struct {
	Enable       bool   `mapstructure:"enable"`
	ServiceName  string `mapstructure:"service_name"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}
