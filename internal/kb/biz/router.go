package biz

import (
	"context"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/kart-io/logger"

	"github.com/kart-io/tenant-kb/internal/kb/metrics"
	"github.com/kart-io/tenant-kb/internal/kb/store"
	"github.com/kart-io/tenant-kb/internal/model"
)

const previewRunes = 200

// SearchRouter 在租户全部集合上执行混合检索并合并分数。
type SearchRouter struct {
	collections *CollectionManager
	store       store.VectorStore
	metrics     *metrics.KBMetrics
	alpha       float64
}

// NewSearchRouter 创建检索路由。alpha 为向量权重。
func NewSearchRouter(collections *CollectionManager, vs store.VectorStore, alpha float64, m *metrics.KBMetrics) *SearchRouter {
	if m == nil {
		m = metrics.Global()
	}
	return &SearchRouter{collections: collections, store: vs, metrics: m, alpha: alpha}
}

// TenantCollections 列出租户集合，结构化类型在前。
func (r *SearchRouter) TenantCollections(ctx context.Context, tenantID string) ([]string, error) {
	return r.collections.TenantCollections(ctx, tenantID)
}

// Search 依次检索每个集合，单个集合失败跳过。结果分数归一化到 [0,1]
// 后按分数降序排列，合并时不截断。
func (r *SearchRouter) Search(ctx context.Context, tenantID, query string, limit int) []model.SearchResult {
	start := time.Now()
	results := []model.SearchResult{}

	names, err := r.collections.TenantCollections(ctx, tenantID)
	if err != nil {
		logger.Warnw("failed to list tenant collections", "tenant_id", tenantID, "error", err.Error())
		r.metrics.RecordSearch(time.Since(start), 1)
		return results
	}

	failed := 0
	fp := Fingerprint(tenantID)
	for _, name := range names {
		hits, err := r.store.HybridQuery(ctx, name, query, r.alpha, limit)
		if err != nil {
			failed++
			logger.Warnw("collection search failed, skipping", "tenant_id", tenantID, "collection", name, "error", err.Error())
			continue
		}
		ct, _ := contentTypeOf(name, fp)
		for _, h := range hits {
			if ct.Structured() {
				results = append(results, entityResult(h, name, ct))
			} else {
				results = append(results, documentResult(h, name))
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	r.metrics.RecordSearch(time.Since(start), failed)
	return results
}

func documentResult(h store.Hit, collection string) model.SearchResult {
	title, _ := h.Properties[propTitle].(string)
	content, _ := h.Properties[propContent].(string)
	docID, _ := h.Properties[propDocID].(string)
	if docID == "" {
		docID = h.ID
	}
	return model.SearchResult{
		ID:             docID,
		Title:          title,
		ContentPreview: preview(content),
		Content:        content,
		CollectionName: collection,
		Score:          normalizeScore(h),
		Type:           model.ContentTypeDocument,
	}
}

// normalizeScore 依次取混合分数、置信度、1 - 距离，截断到 [0,1]。
func normalizeScore(h store.Hit) float64 {
	var s float64
	switch {
	case h.Score != nil:
		s = *h.Score
	case h.Certainty != nil:
		s = *h.Certainty
	case h.Distance != nil:
		s = 1 - *h.Distance
	}
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	r := []rune(s)
	return string(r[:previewRunes]) + "..."
}
