// Package health probes the configured upstreams and derives a single
// gateway-wide verdict. Records are computed fresh on every call and never
// cached.
package health

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"fw-gateway/internal/config"
	"fw-gateway/pkg/logging"
)

// Health verdicts
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// ServiceHealth is one upstream's probe result
type ServiceHealth struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
}

// Aggregator probes upstream /health endpoints concurrently
type Aggregator struct {
	client    *http.Client
	timeout   time.Duration
	upstreams []config.Upstream
	logger    *logging.Logger
}

// New creates an aggregator for the configured upstreams
func New(cfg *config.Config, logger *logging.Logger) *Aggregator {
	return &Aggregator{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    cfg.Proxy.MaxIdleConns,
				IdleConnTimeout: time.Duration(cfg.Proxy.IdleConnTimeout) * time.Second,
			},
		},
		timeout:   cfg.Proxy.ProbeTimeout(),
		upstreams: cfg.Upstreams.All(),
		logger:    logger,
	}
}

// Check probes every upstream concurrently and returns the overall verdict
// plus the per-upstream records. The aggregate latency is bounded by the
// slowest single probe's timeout, not the sum. Probes never fail the call:
// any error is folded into an unhealthy record.
func (a *Aggregator) Check(ctx context.Context) (string, map[string]ServiceHealth) {
	results := make([]ServiceHealth, len(a.upstreams))

	var wg sync.WaitGroup
	for i, up := range a.upstreams {
		wg.Add(1)
		go func(i int, up config.Upstream) {
			defer wg.Done()
			results[i] = a.probe(ctx, up)
		}(i, up)
	}
	wg.Wait()

	overall := StatusHealthy
	services := make(map[string]ServiceHealth, len(results))
	for _, result := range results {
		if result.Status != StatusHealthy {
			overall = StatusDegraded
		}
		services[result.Name] = result
	}

	return overall, services
}

// probe issues a single GET to the upstream's health endpoint. Healthy
// means a 2xx status; the response body is not inspected.
func (a *Aggregator) probe(ctx context.Context, up config.Upstream) ServiceHealth {
	probeCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	result := ServiceHealth{Name: up.Name, Status: StatusUnhealthy}

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, up.URL+"/health", nil)
	if err != nil {
		a.logger.Debug("Health probe request invalid",
			zap.String("service", up.Name),
			zap.Error(err))
		return result
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	result.LatencyMs = time.Since(start).Milliseconds()
	if err != nil {
		a.logger.Debug("Health probe failed",
			zap.String("service", up.Name),
			zap.Int64("latency_ms", result.LatencyMs),
			zap.Error(err))
		return result
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		result.Status = StatusHealthy
	}

	return result
}
