package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fw-gateway/internal/config"
	"fw-gateway/pkg/logging"
)

func healthServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func newAggregator(t *testing.T, backendURL, converterURL string, probeTimeout int) *Aggregator {
	t.Helper()
	cfg := &config.Config{
		Proxy: config.ProxyConfig{
			Timeout:       300,
			HealthTimeout: probeTimeout,
		},
		Upstreams: config.UpstreamsConfig{
			Backend:   config.Upstream{Name: "backend", URL: backendURL},
			Converter: config.Upstream{Name: "converter", URL: converterURL},
		},
	}
	return New(cfg, logging.NewNop())
}

func TestCheckAllHealthy(t *testing.T) {
	backend := healthServer(t, okHandler)
	converter := healthServer(t, okHandler)

	agg := newAggregator(t, backend.URL, converter.URL, 2)
	overall, services := agg.Check(context.Background())

	assert.Equal(t, StatusHealthy, overall)
	require.Len(t, services, 2)
	assert.Equal(t, StatusHealthy, services["backend"].Status)
	assert.Equal(t, StatusHealthy, services["converter"].Status)
	assert.GreaterOrEqual(t, services["backend"].LatencyMs, int64(0))
}

func TestCheckOneUnreachableDegrades(t *testing.T) {
	backend := healthServer(t, okHandler)
	converter := httptest.NewServer(http.HandlerFunc(okHandler))
	converterURL := converter.URL
	converter.Close()

	agg := newAggregator(t, backend.URL, converterURL, 2)
	overall, services := agg.Check(context.Background())

	assert.Equal(t, StatusDegraded, overall)
	assert.Equal(t, StatusHealthy, services["backend"].Status,
		"one upstream's failure must not mark the other unhealthy")
	assert.Equal(t, StatusUnhealthy, services["converter"].Status)
}

func TestCheckNon2xxIsUnhealthy(t *testing.T) {
	backend := healthServer(t, okHandler)
	converter := healthServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	agg := newAggregator(t, backend.URL, converter.URL, 2)
	overall, services := agg.Check(context.Background())

	assert.Equal(t, StatusDegraded, overall)
	assert.Equal(t, StatusUnhealthy, services["converter"].Status)
}

func TestCheckHangingProbeIsBounded(t *testing.T) {
	backend := healthServer(t, okHandler)
	converter := healthServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(10 * time.Second):
		}
	})

	agg := newAggregator(t, backend.URL, converter.URL, 1)

	start := time.Now()
	overall, services := agg.Check(context.Background())
	elapsed := time.Since(start)

	assert.Equal(t, StatusDegraded, overall)
	assert.Equal(t, StatusUnhealthy, services["converter"].Status)
	assert.Equal(t, StatusHealthy, services["backend"].Status)
	assert.Less(t, elapsed, 3*time.Second,
		"aggregate latency is bounded by the slowest probe timeout, not the hang")
}

func TestCheckHitsHealthPath(t *testing.T) {
	var gotPath string
	backend := healthServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})
	converter := healthServer(t, okHandler)

	agg := newAggregator(t, backend.URL, converter.URL, 2)
	agg.Check(context.Background())

	assert.Equal(t, "/health", gotPath)
}
