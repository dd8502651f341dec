package middleware

import (
	"github.com/gin-gonic/gin"

	infralog "github.com/kart-io/tenant-kb/pkg/infra/logger"
	"github.com/kart-io/tenant-kb/pkg/utils/id"
	"github.com/kart-io/tenant-kb/pkg/utils/response"
)

// RequestIDConfig defines the config for RequestID middleware.
type RequestIDConfig struct {
	// Header is the header name to use for request ID.
	// Default: "X-Request-ID"
	Header string

	// Generator is the function to generate request IDs.
	// Default: ULID
	Generator func() string
}

// DefaultRequestIDConfig is the default RequestID middleware config.
var DefaultRequestIDConfig = RequestIDConfig{
	Header:    HeaderXRequestID,
	Generator: id.NewULID,
}

// RequestID returns a middleware that adds a unique request ID to each request.
// The request ID is added to:
//   - Response header (X-Request-ID)
//   - gin context and request context (retrieved with GetRequestID)
func RequestID() gin.HandlerFunc {
	return RequestIDWithConfig(DefaultRequestIDConfig)
}

// RequestIDWithConfig returns a RequestID middleware with custom config.
func RequestIDWithConfig(config RequestIDConfig) gin.HandlerFunc {
	if config.Header == "" {
		config.Header = DefaultRequestIDConfig.Header
	}
	if config.Generator == nil {
		config.Generator = DefaultRequestIDConfig.Generator
	}

	return func(c *gin.Context) {
		rid := c.GetHeader(config.Header)
		if rid == "" {
			rid = config.Generator()
		}

		c.Header(config.Header, rid)
		c.Set(response.RequestIDKey, rid)
		ctx := WithRequestID(c.Request.Context(), rid)
		ctx = infralog.WithTrace(infralog.WithRequestID(ctx, rid))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
