package handler

import (
	stderrors "errors"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/tenant-kb/internal/kb/biz"
	"github.com/kart-io/tenant-kb/internal/model"
	infralog "github.com/kart-io/tenant-kb/pkg/infra/logger"
	"github.com/kart-io/tenant-kb/pkg/utils/errors"
	"github.com/kart-io/tenant-kb/pkg/utils/response"
)

// StoreEntity POST /v1/tenants/:tenant/entities/:type
func (h *Handler) StoreEntity(c *gin.Context) {
	ct, ok := contentType(c)
	if !ok {
		return
	}
	var record map[string]any
	if err := c.ShouldBindJSON(&record); err != nil {
		badRequest(c, err)
		return
	}

	entityID, err := h.entities.Store(c.Request.Context(), c.Param("tenant"), ct, record)
	if err != nil {
		failWith(c, err, errors.ErrIndexFailed)
		return
	}
	h.invalidate(c)
	response.OK(c, gin.H{"id": entityID})
}

// SearchEntities GET /v1/tenants/:tenant/entities/:type/search?q=&limit=
func (h *Handler) SearchEntities(c *gin.Context) {
	ct, ok := contentType(c)
	if !ok {
		return
	}

	results, err := h.entities.Search(c.Request.Context(), c.Param("tenant"), ct, c.Query("q"), limitParam(c))
	if stderrors.Is(err, biz.ErrUnsupportedType) {
		fail(c, err)
		return
	}
	if err != nil {
		// 存储不可用时降级为空结果
		infralog.FromContext(c.Request.Context()).Warnw("entity search failed", "type", string(ct), "error", err.Error())
		results = []model.SearchResult{}
	}
	response.OK(c, results)
}

// Search GET /v1/tenants/:tenant/search?q=&limit=
func (h *Handler) Search(c *gin.Context) {
	response.OK(c, h.router.Search(c.Request.Context(), c.Param("tenant"), c.Query("q"), limitParam(c)))
}
