package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/tenant-kb/internal/model"
	infralog "github.com/kart-io/tenant-kb/pkg/infra/logger"
	"github.com/kart-io/tenant-kb/pkg/utils/errors"
	"github.com/kart-io/tenant-kb/pkg/utils/response"
)

// AddDocumentRequest 添加文档请求。
type AddDocumentRequest struct {
	Title    string         `json:"title"`
	Content  string         `json:"content" binding:"required"`
	Metadata map[string]any `json:"metadata"`
	Source   string         `json:"source"`
}

// ReindexAllRequest 批量重建索引请求。
type ReindexAllRequest struct {
	Documents []model.Document `json:"documents" binding:"required"`
	// Async 为 true 时提交到索引池并立即返回 202。
	Async bool `json:"async"`
}

// ReindexReport 批量重建结果。
type ReindexReport struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
}

// AddDocument POST /v1/tenants/:tenant/documents
func (h *Handler) AddDocument(c *gin.Context) {
	var req AddDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	docID, err := h.documents.Add(c.Request.Context(), c.Param("tenant"), req.Title, req.Content, req.Metadata, req.Source)
	if err != nil {
		failWith(c, err, errors.ErrIndexFailed)
		return
	}
	h.invalidate(c)
	response.OK(c, gin.H{"id": docID})
}

// DocumentStatus GET /v1/tenants/:tenant/documents/:id/status
func (h *Handler) DocumentStatus(c *gin.Context) {
	status, err := h.documents.Status(c.Request.Context(), c.Param("tenant"), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.OK(c, status)
}

// UpdateDocument PATCH /v1/tenants/:tenant/documents/:id
func (h *Handler) UpdateDocument(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.documents.Update(c.Request.Context(), c.Param("tenant"), c.Param("id"), fields); err != nil {
		failWith(c, err, errors.ErrIndexFailed)
		return
	}
	h.invalidate(c)
	response.OK(c, gin.H{"id": c.Param("id"), "updated": true})
}

// DeleteDocument DELETE /v1/tenants/:tenant/documents/:id
func (h *Handler) DeleteDocument(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), c.Param("tenant"), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	h.invalidate(c)
	response.OK(c, gin.H{"id": c.Param("id"), "deleted": true})
}

// ReindexDocument POST /v1/tenants/:tenant/documents/:id/reindex
func (h *Handler) ReindexDocument(c *gin.Context) {
	var doc model.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.documents.Reindex(c.Request.Context(), c.Param("tenant"), c.Param("id"), doc); err != nil {
		failWith(c, err, errors.ErrIndexFailed)
		return
	}
	h.invalidate(c)
	response.OK(c, gin.H{"id": c.Param("id"), "reindexed": true})
}

// ReindexAll POST /v1/tenants/:tenant/documents/reindex
func (h *Handler) ReindexAll(c *gin.Context) {
	var req ReindexAllRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	tenantID := c.Param("tenant")

	if req.Async && h.indexPool != nil {
		// 请求结束后任务仍需运行，保留上下文中的值但去掉取消
		ctx := context.WithoutCancel(c.Request.Context())
		err := h.indexPool.SubmitWithContext(ctx, func(ctx context.Context) {
			h.documents.ReindexAll(ctx, tenantID, req.Documents)
			if h.chat != nil {
				h.chat.InvalidateTenant(ctx, tenantID)
			}
		})
		if err != nil {
			infralog.FromContext(ctx).Warnw("failed to schedule reindex", "error", err.Error())
			failWith(c, err, errors.ErrInternal)
			return
		}
		c.JSON(http.StatusAccepted, response.Success(gin.H{"accepted": len(req.Documents)}))
		return
	}

	total, succeeded := h.documents.ReindexAll(c.Request.Context(), tenantID, req.Documents)
	h.invalidate(c)
	response.OK(c, ReindexReport{Total: total, Succeeded: succeeded})
}
