package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"fw-gateway/internal/apierror"
)

// Metrics returns a middleware that records per-request Prometheus metrics
func Metrics(requestsTotal *prometheus.CounterVec, requestDuration *prometheus.HistogramVec) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = apierror.StatusOf(err)
		}

		labels := []string{c.Path(), c.Method(), strconv.Itoa(status)}
		requestsTotal.WithLabelValues(labels...).Inc()
		requestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())

		return err
	}
}
