package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/richmond-dms/docflow/pkg/metrics"
	"go.uber.org/zap"
)

type LoggingMiddleware struct {
	logger  *zap.Logger
	metrics *metrics.MetricsCollector
}

func NewLoggingMiddleware(logger *zap.Logger, metrics *metrics.MetricsCollector) *LoggingMiddleware {
	return &LoggingMiddleware{
		logger:  logger,
		metrics: metrics,
	}
}

func (lm *LoggingMiddleware) LogRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		lm.metrics.IncrementCounter("http_requests", map[string]string{
			"method": c.Request.Method,
			"route":  route,
			"class":  statusClass(status),
		})
		lm.metrics.ObserveLatency("http_request_"+c.Request.Method+"_"+route, duration)

		if strings.HasPrefix(c.Request.URL.Path, "/health") {
			return
		}

		fields := []zap.Field{
			zap.String("request_id", RequestID(c.Request.Context())),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", duration),
			zap.Int("size", c.Writer.Size()),
			zap.String("client_ip", c.ClientIP()),
		}
		if actor := Actor(c); actor != nil {
			fields = append(fields, zap.String("user_id", actor.ID))
		}

		switch {
		case status >= 500:
			lm.logger.Error("HTTP Request", fields...)
		case status >= 400:
			lm.logger.Warn("HTTP Request", fields...)
		default:
			lm.logger.Info("HTTP Request", fields...)
		}
	}
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
