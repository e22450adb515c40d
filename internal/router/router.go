package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"fw-gateway/internal/config"
	"fw-gateway/internal/middleware"
	"fw-gateway/internal/proxy"
	"fw-gateway/internal/resilience"
	"fw-gateway/pkg/logging"
)

// Router registers the protected proxy routes, one prefix per upstream,
// and wires the resilience layers around forwarding.
type Router struct {
	config    *config.Config
	logger    *logging.Logger
	httpProxy *proxy.HTTPProxy
	wsProxy   *proxy.WebSocketProxy
	breakers  map[string]*resilience.CircuitBreaker
	retrier   *resilience.Retrier
}

// New creates a new router instance
func New(cfg *config.Config, logger *logging.Logger) *Router {
	r := &Router{
		config:    cfg,
		logger:    logger,
		httpProxy: proxy.NewHTTPProxy(cfg, logger),
		wsProxy:   proxy.NewWebSocketProxy(logger),
		breakers:  make(map[string]*resilience.CircuitBreaker),
	}

	if cfg.Resilience.EnableCircuitBreaker {
		for _, up := range cfg.Upstreams.All() {
			r.breakers[up.Name] = resilience.NewCircuitBreaker(up.Name, cfg.Resilience, logger)
		}
	}
	if cfg.Resilience.EnableRetry {
		r.retrier = resilience.NewRetrier(cfg.Resilience, logger)
	}

	return r
}

// Register mounts every upstream's protected prefix on the app
func (r *Router) Register(app *fiber.App) {
	for _, up := range r.config.Upstreams.All() {
		r.registerUpstream(app, up)
		r.logger.Info("Registered upstream route",
			zap.String("service", up.Name),
			zap.String("base_path", up.BasePath),
			zap.Bool("websocket", up.EnableWebSocket),
		)
	}
}

func (r *Router) registerUpstream(app *fiber.App, up config.Upstream) {
	basePath := "/" + strings.Trim(up.BasePath, "/")
	group := app.Group(basePath, middleware.APIKey(r.config.Security.Keys))

	if up.EnableWebSocket {
		group.Get("/*", func(c *fiber.Ctx) error {
			if !fiberws.IsWebSocketUpgrade(c) {
				return c.Next()
			}

			path := "/" + c.Params("*")
			if query := string(c.Request().URI().QueryString()); query != "" {
				path += "?" + query
			}
			header := upgradeHeader(c)

			return fiberws.New(func(conn *fiberws.Conn) {
				if err := r.wsProxy.Proxy(conn, up.URL, path, header); err != nil {
					r.logger.Error("WebSocket proxy error",
						zap.String("service", up.Name),
						zap.String("path", path),
						zap.Error(err))
				}
			}, fiberws.Config{HandshakeTimeout: 10 * time.Second})(c)
		})
	}

	group.All("/*", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return r.forward(c, up, c.Params("*"))
	})
}

// forward runs one proxied request through the configured resilience
// layers: retry innermost, breaker outermost.
func (r *Router) forward(c *fiber.Ctx, up config.Upstream, path string) error {
	call := func() error {
		return r.httpProxy.Forward(c, up, path)
	}

	if r.retrier != nil {
		inner := call
		call = func() error {
			return r.retrier.Execute(inner)
		}
	}
	if breaker, ok := r.breakers[up.Name]; ok {
		inner := call
		call = func() error {
			return breaker.Execute(inner)
		}
	}

	return call()
}

// upgradeHeader collects the inbound headers worth forwarding on a
// WebSocket dial. Handshake-specific headers are regenerated by the dialer
// and the gateway's auth header stays private.
func upgradeHeader(c *fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		name := string(key)
		lower := strings.ToLower(name)
		if lower == "upgrade" || lower == "connection" ||
			strings.HasPrefix(lower, "sec-websocket-") ||
			strings.EqualFold(name, middleware.HeaderAPIKey) {
			return
		}
		header.Add(name, string(value))
	})
	header.Set("X-Forwarded-For", c.IP())
	return header
}
