package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/tenant-kb/internal/model"
	"github.com/kart-io/tenant-kb/pkg/utils/errors"
	"github.com/kart-io/tenant-kb/pkg/utils/response"
)

// CreateCollectionRequest 创建集合请求。
type CreateCollectionRequest struct {
	Type string `json:"type" binding:"required"`
}

// CreateCollection POST /v1/tenants/:tenant/collections
func (h *Handler) CreateCollection(c *gin.Context) {
	var req CreateCollectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ct, err := model.ParseContentType(req.Type)
	if err != nil {
		fail(c, err)
		return
	}

	name, err := h.collections.Create(c.Request.Context(), c.Param("tenant"), ct)
	if err != nil {
		failWith(c, err, errors.ErrCollectionCreate)
		return
	}
	response.OK(c, gin.H{"collection": name, "created": true})
}

// ValidateCollection POST /v1/tenants/:tenant/collections/validate
func (h *Handler) ValidateCollection(c *gin.Context) {
	repaired, err := h.collections.Validate(c.Request.Context(), c.Param("tenant"))
	if err != nil {
		failWith(c, err, errors.ErrCollectionCreate)
		return
	}
	response.OK(c, gin.H{"valid": true, "repaired": repaired})
}

// DeleteCollections DELETE /v1/tenants/:tenant/collections
func (h *Handler) DeleteCollections(c *gin.Context) {
	if err := h.collections.Delete(c.Request.Context(), c.Param("tenant")); err != nil {
		failWith(c, err, errors.ErrStoreUnavailable)
		return
	}
	h.invalidate(c)
	response.OK(c, gin.H{"deleted": true})
}

// ValidateAll POST /v1/collections/validate-all
func (h *Handler) ValidateAll(c *gin.Context) {
	response.OK(c, h.collections.ValidateAll(c.Request.Context()))
}
