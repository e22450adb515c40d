package resilience

import (
	"errors"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"go.uber.org/zap"

	"fw-gateway/internal/apierror"
	"fw-gateway/internal/config"
	"fw-gateway/pkg/logging"
)

// Retrier retries upstream forwards that failed before any bytes of a
// response were relayed. Only connection-level failures are retried;
// timeouts and auth or rate rejections are final.
type Retrier struct {
	retry  *retrier.Retrier
	logger *logging.Logger
}

// connectionFailures retries only errors worth a second attempt
type connectionFailures struct{}

func (connectionFailures) Classify(err error) retrier.Action {
	if err == nil {
		return retrier.Succeed
	}
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) && apiErr.Code == apierror.CodeConnectionFailed {
		return retrier.Retry
	}
	return retrier.Fail
}

// NewRetrier creates a retrier with exponential backoff
func NewRetrier(cfg config.ResilienceConfig, logger *logging.Logger) *Retrier {
	backoff := retrier.ExponentialBackoff(
		cfg.MaxRetries,
		time.Duration(cfg.RetryInterval)*time.Millisecond,
	)

	return &Retrier{
		retry:  retrier.New(backoff, connectionFailures{}),
		logger: logger,
	}
}

// Execute executes fn with retries
func (r *Retrier) Execute(fn func() error) error {
	var attempt int

	return r.retry.Run(func() error {
		attempt++
		err := fn()
		if err != nil {
			r.logger.Debug("Upstream attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	})
}
