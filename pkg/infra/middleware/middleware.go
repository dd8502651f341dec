// Package middleware provides the gin middleware chain of the HTTP server.
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	infralog "github.com/kart-io/tenant-kb/pkg/infra/logger"
	"github.com/kart-io/tenant-kb/pkg/utils/response"
)

// HeaderXRequestID is the header carrying the request id.
const HeaderXRequestID = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID stores the request id in ctx.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID returns the request id stored in ctx, or "".
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Options selects the middlewares of the default chain.
type Options struct {
	RequestID RequestIDConfig
	Recovery  RecoveryConfig
	Logger    LoggerConfig
	Timeout   TimeoutConfig
	// CORS 为 nil 时不启用。
	CORS *CORSConfig
}

// Chain returns the middlewares in their application order.
func Chain(opts Options) []gin.HandlerFunc {
	chain := []gin.HandlerFunc{
		RequestIDWithConfig(opts.RequestID),
		RecoveryWithConfig(opts.Recovery),
		LoggerWithConfig(opts.Logger),
	}
	if opts.CORS != nil {
		chain = append(chain, CORSWithConfig(*opts.CORS))
	}
	if opts.Timeout.Timeout > 0 {
		chain = append(chain, TimeoutWithConfig(opts.Timeout))
	}
	return chain
}

func requestID(c *gin.Context) string {
	return c.GetString(response.RequestIDKey)
}

// TenantContext 将路由参数 param 写入请求 context 的日志字段。
// 只能挂在包含该参数的路由组上。
func TenantContext(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tenant := c.Param(param); tenant != "" {
			c.Request = c.Request.WithContext(infralog.WithTenantID(c.Request.Context(), tenant))
		}
		c.Next()
	}
}
