package middleware

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

const (
	SegmentName = "worker-proxy"

	xrayContextKey = "xray-ctx"
)

// XRayMiddleware wraps Fiber requests with AWS X-Ray tracing
func XRayMiddleware(logger zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip tracing for probes and scrapes to reduce noise
		switch c.Path() {
		case "/health", "/metrics":
			return c.Next()
		}

		ctx, seg := xray.BeginSegment(context.Background(), SegmentName)
		defer seg.Close(nil)

		if seg.GetHTTP() != nil {
			seg.GetHTTP().GetRequest().Method = c.Method()
			seg.GetHTTP().GetRequest().URL = c.OriginalURL()
			seg.GetHTTP().GetRequest().ClientIP = c.IP()
			seg.GetHTTP().GetRequest().UserAgent = c.Get(fiber.HeaderUserAgent)
		}
		seg.AddAnnotation("route", c.Path())
		seg.AddAnnotation("method", c.Method())

		// Store X-Ray context in Fiber locals for downstream use
		c.Locals(xrayContextKey, ctx)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			logger.Error().Err(err).Str("path", c.Path()).Msg("request error")
			seg.AddError(err)
			status = fiber.StatusInternalServerError
		}
		if seg.GetHTTP() != nil {
			seg.GetHTTP().GetResponse().Status = status
		}
		if status == fiber.StatusTooManyRequests {
			seg.Throttle = true
		}

		return err
	}
}

// GetXRayContext retrieves X-Ray context from Fiber locals. Without the
// middleware it returns a background context, so handlers never inherit
// client disconnects.
func GetXRayContext(c *fiber.Ctx) context.Context {
	if ctx, ok := c.Locals(xrayContextKey).(context.Context); ok {
		return ctx
	}
	return context.Background()
}
