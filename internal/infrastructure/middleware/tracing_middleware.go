package middleware

import (
	"net/http"

	"streamcast/pkg/logger"
	"streamcast/pkg/tracing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TracingMiddleware opens one span per HTTP request and threads its
// context through the handler chain. The request id minted by
// RequestIDMiddleware travels on the span, so a trace can be joined
// with the structured logs of the same request.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.TraceHTTPRequest(c.Request.Context(), c.Request.Method, c.FullPath())
		defer span.End()

		span.SetAttributes(
			attribute.String("http.client_ip", c.ClientIP()),
			attribute.String("http.host", c.Request.Host),
		)
		if id, ok := ctx.Value(logger.RequestIDKey).(string); ok && id != "" {
			span.SetAttributes(attribute.String("request.id", id))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		code := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.status_code", code),
			attribute.Int("http.response_size", c.Writer.Size()),
		)
		if code >= http.StatusBadRequest {
			span.SetStatus(codes.Error, c.Errors.String())
			return
		}
		span.SetStatus(codes.Ok, "")
	}
}
