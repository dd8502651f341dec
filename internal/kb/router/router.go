// Package router provides knowledge base service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/tenant-kb/internal/kb/handler"
	"github.com/kart-io/tenant-kb/pkg/infra/middleware"
)

// StreamSuffix 流式路由的后缀，请求超时中间件跳过这些路由。
const StreamSuffix = "/chat/stream"

// Register registers the knowledge base routes.
func Register(engine *gin.Engine, h *handler.Handler) {
	logger.Info("Registering knowledge base routes...")

	engine.GET("/healthz", h.Healthz)
	engine.GET("/metrics", h.Metrics)

	v1 := engine.Group("/v1")
	{
		v1.GET("/stats", h.Stats)
		v1.POST("/collections/validate-all", h.ValidateAll)

		tenant := v1.Group("/tenants/:tenant", middleware.TenantContext("tenant"))
		{
			// Collection lifecycle
			tenant.POST("/collections", h.CreateCollection)
			tenant.POST("/collections/validate", h.ValidateCollection)
			tenant.DELETE("/collections", h.DeleteCollections)

			// Documents
			tenant.POST("/documents", h.AddDocument)
			tenant.POST("/documents/reindex", h.ReindexAll)
			tenant.GET("/documents/:id/status", h.DocumentStatus)
			tenant.PATCH("/documents/:id", h.UpdateDocument)
			tenant.DELETE("/documents/:id", h.DeleteDocument)
			tenant.POST("/documents/:id/reindex", h.ReindexDocument)

			// Structured entities
			tenant.POST("/entities/:type", h.StoreEntity)
			tenant.GET("/entities/:type/search", h.SearchEntities)

			// Retrieval and answers
			tenant.GET("/search", h.Search)
			tenant.POST("/answer", h.Answer)
			tenant.POST("/chat", h.Chat)
			tenant.POST(StreamSuffix, h.ChatStream)
		}
	}

	logger.Info("HTTP routes registered")
}
