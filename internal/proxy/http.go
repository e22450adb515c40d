package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"fw-gateway/internal/apierror"
	"fw-gateway/internal/config"
	"fw-gateway/internal/middleware"
	"fw-gateway/pkg/logging"
)

// hopByHopHeaders are connection-scoped and must not be forwarded
var hopByHopHeaders = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

// HTTPProxy forwards requests to upstream services
type HTTPProxy struct {
	client  *http.Client
	timeout time.Duration
	logger  *logging.Logger
}

// NewHTTPProxy creates a new HTTP proxy. The client carries no timeout of
// its own; every forward runs under a per-request context so client
// disconnects propagate and cancel the upstream call.
func NewHTTPProxy(cfg *config.Config, logger *logging.Logger) *HTTPProxy {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Proxy.MaxIdleConns,
		IdleConnTimeout:     time.Duration(cfg.Proxy.IdleConnTimeout) * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return &HTTPProxy{
		client:  &http.Client{Transport: transport},
		timeout: cfg.Proxy.RequestTimeout(),
		logger:  logger,
	}
}

// Forward relays the request to the upstream and the upstream's response
// back to the caller, both verbatim apart from the gateway's own auth
// header and hop-by-hop headers. Transport failures map to gateway-level
// 502-class errors, never a 500: an unreachable upstream is their outage,
// not our bug.
func (p *HTTPProxy) Forward(c *fiber.Ctx, up config.Upstream, path string) error {
	targetURL, err := url.Parse(up.URL)
	if err != nil {
		return fmt.Errorf("invalid upstream URL for %s: %w", up.Name, err)
	}

	requestURL := buildRequestURL(targetURL, path, string(c.Request().URI().QueryString()))

	ctx, cancel := context.WithTimeout(c.UserContext(), p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, c.Method(), requestURL, bytes.NewReader(c.Body()))
	if err != nil {
		return fmt.Errorf("failed to build upstream request: %w", err)
	}

	copyRequestHeaders(c, req)
	req.Host = targetURL.Host

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return p.classify(c, up, err)
	}
	defer resp.Body.Close()

	p.logger.Debug("Proxied request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.String("target", requestURL),
		zap.Int("status", resp.StatusCode),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		zap.String("service", up.Name),
	)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logger.Error("Failed to read upstream response",
			zap.String("service", up.Name),
			zap.Error(err))
		return apierror.ProxyError()
	}

	c.Status(resp.StatusCode)
	for key, values := range resp.Header {
		if hopByHopHeaders[strings.ToLower(key)] {
			continue
		}
		for _, value := range values {
			c.Set(key, value)
		}
	}

	return c.Send(body)
}

// classify maps a transport error to the gateway error envelope. The raw
// error is logged server-side only.
func (p *HTTPProxy) classify(c *fiber.Ctx, up config.Upstream, err error) error {
	p.logger.Error("Upstream request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.String("service", up.Name),
		zap.Error(err),
	)

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return apierror.Timeout()
	case errors.As(err, &netErr) && netErr.Timeout():
		return apierror.Timeout()
	case errors.Is(err, context.Canceled):
		// Caller went away; nobody is waiting for this response.
		return apierror.ProxyError()
	default:
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return apierror.ConnectionFailed()
		}
		return apierror.ProxyError()
	}
}

// copyRequestHeaders forwards inbound headers minus the gateway's auth
// header and hop-by-hop headers, and extends the forwarded-for chain.
func copyRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		name := string(key)
		lower := strings.ToLower(name)
		if lower == strings.ToLower(middleware.HeaderAPIKey) || hopByHopHeaders[lower] {
			return
		}
		req.Header.Add(name, string(value))
	})

	if prior := req.Header.Get(fiber.HeaderXForwardedFor); prior != "" {
		req.Header.Set(fiber.HeaderXForwardedFor, prior+", "+c.IP())
	} else {
		req.Header.Set(fiber.HeaderXForwardedFor, c.IP())
	}
}

func buildRequestURL(target *url.URL, path, query string) string {
	requestURL := fmt.Sprintf("%s://%s", target.Scheme, target.Host)
	if target.Path != "" && target.Path != "/" {
		requestURL += target.Path
	}
	if path != "" {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		requestURL += path
	}
	if query != "" {
		requestURL += "?" + query
	}
	return requestURL
}
