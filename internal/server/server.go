package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"fw-gateway/internal/apierror"
	"fw-gateway/internal/config"
	"fw-gateway/internal/docs"
	"fw-gateway/internal/health"
	"fw-gateway/internal/middleware"
	"fw-gateway/internal/ratelimit"
	"fw-gateway/internal/router"
	"fw-gateway/pkg/logging"
	"fw-gateway/pkg/metrics"
	"fw-gateway/pkg/tracing"
)

// Version is reported on the liveness and status endpoints
const Version = "1.4.0"

// StatusPath serves the aggregated health verdict. Unlike the liveness
// path it is not exempt from rate limiting.
const StatusPath = "/status"

// Server represents the gateway server
type Server struct {
	app           *fiber.App
	config        *config.Config
	logger        *logging.Logger
	router        *router.Router
	health        *health.Aggregator
	limiter       ratelimit.Store
	tracerCleanup func(context.Context) error
}

// New assembles the gateway: the middleware pipeline in its fixed order
// (security headers, CORS, rate limiter, body guard, logger), then the
// public endpoints, then the authenticated proxy prefixes, then the
// not-found catch-all. Every failure funnels through the apierror handler.
func New(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	app := fiber.New(fiber.Config{
		AppName:               "FW Gateway",
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          apierror.Handler(cfg.Server.Production, logger),
	})

	var tracerCleanup func(context.Context) error
	if cfg.Tracing.Enable {
		tp, cleanup := tracing.InitTracer(context.Background(), cfg.Tracing.ServiceName, cfg.Tracing.OTLPEndpoint)
		if tp != nil {
			app.Use(otelfiber.Middleware(
				otelfiber.WithTracerProvider(tp),
				otelfiber.WithPropagators(propagation.NewCompositeTextMapPropagator(
					propagation.TraceContext{},
					propagation.Baggage{},
				)),
				otelfiber.WithServerName(cfg.Tracing.ServiceName),
			))
		}
		tracerCleanup = cleanup
	}

	app.Use(recover.New())
	app.Use(compress.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Security(cfg.Server.Production))

	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Security.Origins, ","),
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS,PATCH",
		AllowHeaders: strings.Join([]string{
			fiber.HeaderOrigin,
			fiber.HeaderContentType,
			fiber.HeaderAccept,
			middleware.HeaderAPIKey,
			middleware.HeaderRequestID,
		}, ","),
		ExposeHeaders: strings.Join([]string{
			middleware.HeaderRequestID,
			middleware.HeaderRateLimit,
			middleware.HeaderRateLimitPolicy,
			fiber.HeaderRetryAfter,
		}, ","),
	}))

	limiter := ratelimit.NewMemoryStore(cfg.RateLimit.Window())
	app.Use(middleware.RateLimit(limiter, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window()))
	app.Use(middleware.BodyGuard())
	app.Use(middleware.Logger(logger))

	if cfg.Metrics.Enable {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		requestsTotal := metrics.NewHTTPRequestsTotal()
		requestDuration := metrics.NewHTTPRequestDuration()
		registry.MustRegister(requestsTotal)
		registry.MustRegister(requestDuration)

		app.Use(middleware.Metrics(requestsTotal, requestDuration))

		app.Get(cfg.Metrics.Path, adaptor.HTTPHandler(promhttp.HandlerFor(
			registry,
			promhttp.HandlerOpts{
				Registry:          registry,
				EnableOpenMetrics: true,
			},
		)))
	}

	server := &Server{
		app:           app,
		config:        cfg,
		logger:        logger,
		router:        router.New(cfg, logger),
		health:        health.New(cfg, logger),
		limiter:       limiter,
		tracerCleanup: tracerCleanup,
	}

	server.registerRoutes()

	return server, nil
}

// Start starts the server
func (s *Server) Start() error {
	return s.app.Listen(fmt.Sprintf(":%d", s.config.Server.Port))
}

// Shutdown gracefully shuts down the server within the configured deadline
func (s *Server) Shutdown() error {
	timeout := time.Duration(s.config.Server.ShutdownTimeout) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.tracerCleanup != nil {
		if err := s.tracerCleanup(ctx); err != nil {
			s.logger.Error("Failed to shutdown tracer", zap.Error(err))
		}
	}
	s.limiter.Close()

	return s.app.ShutdownWithContext(ctx)
}

// registerRoutes mounts the public endpoints, the documentation subroute,
// the authenticated proxy prefixes and, last, the not-found catch-all.
func (s *Server) registerRoutes() {
	s.app.Get(middleware.LivenessPath, s.handleLiveness)
	s.app.Get(StatusPath, s.handleStatus)

	docs.Register(s.app)
	s.router.Register(s.app)

	s.app.Use(s.handleNotFound)
}

// handleLiveness reports the gateway's own liveness. If this handler runs
// at all, the gateway is up; upstreams are not consulted.
func (s *Server) handleLiveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// handleStatus probes every upstream concurrently and reports the
// composite verdict, computed fresh on each call.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	overall, services := s.health.Check(c.UserContext())

	return c.JSON(fiber.Map{
		"status":    overall,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"gateway": fiber.Map{
			"status":  health.StatusHealthy,
			"version": Version,
		},
		"services": services,
	})
}

func (s *Server) handleNotFound(c *fiber.Ctx) error {
	return apierror.NotFound(c.Method(), c.Path())
}
