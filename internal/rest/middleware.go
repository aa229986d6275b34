package rest

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/godilite/cs-eval-dashboard/internal/metrics"
)

const (
	headerRequestID = "X-Request-ID"
	localRequestID  = "requestID"
)

// RequestID propagates an incoming X-Request-ID or assigns a new one.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(headerRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(headerRequestID, requestID)
		c.Locals(localRequestID, requestID)
		return c.Next()
	}
}

// NoStore marks every response uncacheable; dashboard clients poll for fresh data.
func NoStore() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate")
		return c.Next()
	}
}

// RequestLogger logs one line per request, at warn for 4xx and error for 5xx.
func RequestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if skipTelemetry(c) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		requestID, _ := c.Locals(localRequestID).(string)
		status := c.Response().StatusCode()
		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("query", string(c.Request().URI().QueryString())),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}

		switch {
		case status >= 500:
			logger.Error("request completed", fields...)
		case status >= 400:
			logger.Warn("request completed", fields...)
		default:
			logger.Info("request completed", fields...)
		}
		return err
	}
}

// Metrics records request counts and latency labelled by route pattern.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if skipTelemetry(c) {
			return c.Next()
		}

		done := metrics.TrackActiveRequest()
		defer done()

		start := time.Now()
		err := c.Next()

		path := c.Route().Path
		if path == "" || path == "/" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Method(), path, strconv.Itoa(c.Response().StatusCode()), time.Since(start))
		return err
	}
}

func skipTelemetry(c *fiber.Ctx) bool {
	path := c.Path()
	return path == "/healthz" || path == "/metrics"
}
