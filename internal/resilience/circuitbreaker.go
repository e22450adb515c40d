package resilience

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"fw-gateway/internal/apierror"
	"fw-gateway/internal/config"
	"fw-gateway/pkg/logging"
)

// CircuitBreaker guards one upstream. Each upstream gets its own breaker so
// one backend's outage never blocks traffic to the other.
type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	logger *logging.Logger
}

// NewCircuitBreaker creates a circuit breaker for the named upstream
func NewCircuitBreaker(name string, cfg config.ResilienceConfig, logger *logging.Logger) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.FailureThreshold),
		Timeout:     time.Duration(cfg.ResetTimeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= uint32(cfg.FailureThreshold) && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("upstream", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &CircuitBreaker{
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

// Execute runs fn through the breaker, mapping an open circuit to the
// gateway's upstream-unavailable error.
func (c *CircuitBreaker) Execute(fn func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apierror.UpstreamUnavailable()
	}

	return err
}

// State returns the current breaker state
func (c *CircuitBreaker) State() gobreaker.State {
	return c.cb.State()
}
