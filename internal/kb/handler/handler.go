// Package handler provides the HTTP handlers of the knowledge base service.
package handler

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kart-io/tenant-kb/internal/kb/biz"
	"github.com/kart-io/tenant-kb/internal/kb/metrics"
	"github.com/kart-io/tenant-kb/internal/kb/store"
	"github.com/kart-io/tenant-kb/internal/model"
	"github.com/kart-io/tenant-kb/pkg/infra/pool"
	"github.com/kart-io/tenant-kb/pkg/utils/errors"
	"github.com/kart-io/tenant-kb/pkg/utils/response"
)

const defaultSearchLimit = 10

// Handler serves the knowledge base API.
type Handler struct {
	collections *biz.CollectionManager
	documents   *biz.DocumentIndex
	entities    *biz.EntityStore
	router      *biz.SearchRouter
	chat        *biz.ChatService
	metrics     *metrics.KBMetrics
	promHandler http.Handler
	indexPool   *pool.Pool
}

// Deps bundles the business services the handler calls.
type Deps struct {
	Collections *biz.CollectionManager
	Documents   *biz.DocumentIndex
	Entities    *biz.EntityStore
	Router      *biz.SearchRouter
	Chat        *biz.ChatService
	Metrics     *metrics.KBMetrics
	// IndexPool 为 nil 时批量重建索引只能同步执行。
	IndexPool *pool.Pool
}

// New creates a Handler.
func New(d Deps) *Handler {
	m := d.Metrics
	if m == nil {
		m = metrics.Global()
	}
	return &Handler{
		collections: d.Collections,
		documents:   d.Documents,
		entities:    d.Entities,
		router:      d.Router,
		chat:        d.Chat,
		metrics:     m,
		promHandler: promhttp.HandlerFor(m.Registry("tenant_kb"), promhttp.HandlerOpts{}),
		indexPool:   d.IndexPool,
	}
}

// toErrno maps business errors to API error codes. Errors outside the
// known set become fallback, or ErrInternal when fallback is nil.
func toErrno(err error, fallback *errors.Errno) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, biz.ErrDocumentNotFound):
		return errors.ErrDocumentNotFound.WithCause(err)
	case stderrors.Is(err, biz.ErrTenantNotFound), stderrors.Is(err, store.ErrTenantNotFound):
		return errors.ErrTenantNotFound.WithCause(err)
	case stderrors.Is(err, biz.ErrUnsupportedType), stderrors.Is(err, model.ErrUnknownContentType):
		return errors.ErrInvalidContentType.WithCause(err)
	case stderrors.Is(err, biz.ErrEmptyQuery):
		return errors.ErrEmptyQuery.WithCause(err)
	case stderrors.Is(err, store.ErrCollectionNotFound):
		return errors.ErrCollectionNotFound.WithCause(err)
	case stderrors.Is(err, store.ErrNodeResolution), stderrors.Is(err, store.ErrUnavailable):
		return errors.ErrStoreUnavailable.WithCause(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.ErrTimeout.WithCause(err)
	}
	if fallback != nil {
		return fallback.WithCause(err)
	}
	return err
}

func fail(c *gin.Context, err error) {
	failWith(c, err, nil)
}

func failWith(c *gin.Context, err error, fallback *errors.Errno) {
	_ = c.Error(err)
	response.Fail(c, toErrno(err, fallback))
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	response.Fail(c, errors.ErrBadRequest.WithMessage(err.Error()))
}

func contentType(c *gin.Context) (model.ContentType, bool) {
	ct, err := model.ParseContentType(c.Param("type"))
	if err != nil {
		fail(c, err)
		return "", false
	}
	return ct, true
}

func limitParam(c *gin.Context) int {
	n, err := strconv.Atoi(c.Query("limit"))
	if err != nil || n <= 0 {
		return defaultSearchLimit
	}
	return n
}

// invalidate drops cached answers of a tenant whose content changed.
func (h *Handler) invalidate(c *gin.Context) {
	if h.chat != nil {
		h.chat.InvalidateTenant(c.Request.Context(), c.Param("tenant"))
	}
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Stats returns the metrics snapshot.
func (h *Handler) Stats(c *gin.Context) {
	stats := h.metrics.Stats()
	if h.indexPool != nil {
		stats["index_pool"] = h.indexPool.Stats()
	}
	response.OK(c, stats)
}

// Metrics exports the counters in Prometheus exposition format.
func (h *Handler) Metrics(c *gin.Context) {
	h.promHandler.ServeHTTP(c.Writer, c.Request)
}
