package biz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/tenant-kb/internal/kb/metrics"
	"github.com/kart-io/tenant-kb/internal/kb/store"
	"github.com/kart-io/tenant-kb/internal/model"
	"github.com/kart-io/tenant-kb/pkg/utils/id"
)

// ErrUnsupportedType 内容类型不是结构化类型。
var ErrUnsupportedType = errors.New("unsupported structured type")

const contactPrefix = "contact_"

// contactKeys 还原为嵌套 contact 对象的字段。
var contactKeys = []string{"phone", "email", "website"}

// EntityStore 存储和检索结构化实体。
type EntityStore struct {
	collections *CollectionManager
	store       store.VectorStore
	metrics     *metrics.KBMetrics
	alpha       float64
}

// NewEntityStore 创建结构化实体存储。alpha 为检索时的向量权重。
func NewEntityStore(collections *CollectionManager, vs store.VectorStore, alpha float64, m *metrics.KBMetrics) *EntityStore {
	if m == nil {
		m = metrics.Global()
	}
	return &EntityStore{collections: collections, store: vs, metrics: m, alpha: alpha}
}

// Flatten 递归展开嵌套对象为 prefix_key 形式。
// services 字符串列表保持数组，其它列表以 ", " 拼接。
func Flatten(record map[string]any, prefix string) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		switch t := v.(type) {
		case nil:
		case map[string]any:
			for fk, fv := range Flatten(t, key) {
				out[fk] = fv
			}
		case []string:
			if key == propServices {
				out[key] = append([]string(nil), t...)
			} else {
				out[key] = strings.Join(t, ", ")
			}
		case []any:
			items := make([]string, 0, len(t))
			for _, e := range t {
				if e != nil {
					items = append(items, fmt.Sprint(e))
				}
			}
			if key == propServices {
				out[key] = items
			} else {
				out[key] = strings.Join(items, ", ")
			}
		case string:
			out[key] = t
		default:
			out[key] = fmt.Sprint(t)
		}
	}
	return out
}

// Unflatten 把 contact_* 字段还原为嵌套 contact 对象，丢弃空值和内部字段。
func Unflatten(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	contact := map[string]any{}
	for k, v := range props {
		if k == propTenantID || k == propFullTextSearch || isEmpty(v) {
			continue
		}
		if strings.HasPrefix(k, contactPrefix) {
			sub := strings.TrimPrefix(k, contactPrefix)
			for _, ck := range contactKeys {
				if sub == ck {
					contact[sub] = v
				}
			}
			if _, ok := contact[sub]; ok {
				continue
			}
		}
		out[k] = v
	}
	if len(contact) > 0 {
		out["contact"] = contact
	}
	return out
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}

// Store 写入一条结构化记录并返回其 ID。
// 不在 schema 中的扁平字段不落库，但计入 full_text_search。
func (s *EntityStore) Store(ctx context.Context, tenantID string, contentType model.ContentType, record map[string]any) (string, error) {
	if !contentType.Structured() {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	name, err := s.collections.Create(ctx, tenantID, contentType)
	if err != nil {
		s.metrics.RecordEntityStored(err)
		return "", err
	}

	entity := buildEntity(tenantID, contentType, record)
	props := map[string]any{propTenantID: tenantID, propFullTextSearch: entity.FullTextSearch}
	for k, v := range entity.Properties {
		if knownField(contentType, k) {
			props[k] = v
		}
	}

	oid, err := s.store.Insert(ctx, name, store.Object{ID: entity.ID, Properties: props, Text: entity.FullTextSearch})
	s.metrics.RecordEntityStored(err)
	if err != nil {
		return "", fmt.Errorf("failed to insert %s entity: %w", contentType, err)
	}
	logger.Debugw("structured entity stored", "tenant_id", tenantID, "type", string(contentType), "id", oid)
	return oid, nil
}

func buildEntity(tenantID string, contentType model.ContentType, record map[string]any) *model.StructuredEntity {
	flat := Flatten(record, "")
	oid, _ := flat["id"].(string)
	delete(flat, "id")
	if oid == "" {
		oid = id.NewUUID()
	}
	return &model.StructuredEntity{
		ID:             oid,
		TenantID:       tenantID,
		Type:           contentType,
		Properties:     flat,
		FullTextSearch: fullTextOf(flat),
	}
}

// Search 在类型集合中混合检索，返回至多 limit 条，保持存储的原生排序。
func (s *EntityStore) Search(ctx context.Context, tenantID string, contentType model.ContentType, query string, limit int) ([]model.SearchResult, error) {
	if !contentType.Structured() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	name := NameFor(tenantID, contentType)
	ok, err := s.store.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to probe collection %s: %w", name, err)
	}
	if !ok {
		return []model.SearchResult{}, nil
	}

	hits, err := s.store.HybridQuery(ctx, name, query, s.alpha, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", name, err)
	}
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]model.SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, entityResult(h, name, contentType))
	}
	return results, nil
}

func entityResult(h store.Hit, collection string, contentType model.ContentType) model.SearchResult {
	data := Unflatten(h.Properties)
	fts, _ := h.Properties[propFullTextSearch].(string)
	title, _ := data["name"].(string)
	if title == "" {
		title, _ = data["title"].(string)
	}
	return model.SearchResult{
		ID:             h.ID,
		Title:          title,
		ContentPreview: preview(fts),
		Content:        fts,
		CollectionName: collection,
		Score:          normalizeScore(h),
		Type:           contentType,
		Data:           data,
	}
}

// sortedKeys 返回排序后的键，渲染时保证输出稳定。
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
