package middleware

import (
	"context"
	"fmt"
	"time"

	awspkg "github.com/arrxxhh/Payment-gateway/pkg/aws"
	"github.com/gin-gonic/gin"
)

// MetricsMiddleware publishes one batch of request metrics per call, keyed by
// route template. A nil or disabled client makes it a pass-through.
func MetricsMiddleware(metricsClient *awspkg.MetricsClient, serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !metricsClient.IsEnabled() {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		samples := requestSamples(status, time.Since(start))
		dimensions := map[string]string{
			"Service": serviceName,
			"Method":  c.Request.Method,
			"Path":    routeOf(c),
			"Status":  statusClass(status),
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsClient.Put(ctx, dimensions, samples...)
		}()
	}
}

func requestSamples(status int, took time.Duration) []awspkg.Sample {
	samples := []awspkg.Sample{
		awspkg.Count(awspkg.MetricHTTPRequests),
		awspkg.Latency(awspkg.MetricHTTPLatency, took),
	}
	switch {
	case status >= 500:
		samples = append(samples, awspkg.Count(awspkg.MetricHTTPErrors), awspkg.Count(awspkg.MetricHTTP5xx))
	case status >= 400:
		samples = append(samples, awspkg.Count(awspkg.MetricHTTPErrors), awspkg.Count(awspkg.MetricHTTP4xx))
	}
	return samples
}

// routeOf keeps txn ids out of the Path dimension.
func routeOf(c *gin.Context) string {
	if full := c.FullPath(); full != "" {
		return full
	}
	return "unmatched"
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return fmt.Sprintf("%dxx", status/100)
}
