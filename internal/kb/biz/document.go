package biz

import (
	"context"
	"errors"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/tenant-kb/internal/kb/metrics"
	"github.com/kart-io/tenant-kb/internal/kb/store"
	"github.com/kart-io/tenant-kb/internal/model"
	"github.com/kart-io/tenant-kb/pkg/utils/id"
	"github.com/kart-io/tenant-kb/pkg/utils/json"
)

// ErrDocumentNotFound 文档不存在。
var ErrDocumentNotFound = errors.New("document not found")

// 可更新的文档字段。
var updatableFields = map[string]bool{
	propTitle:    true,
	propContent:  true,
	propSource:   true,
	propMetadata: true,
}

// DocumentIndex 管理租户主集合中的文档。
type DocumentIndex struct {
	collections *CollectionManager
	store       store.VectorStore
	metrics     *metrics.KBMetrics
}

// NewDocumentIndex 创建文档索引。
func NewDocumentIndex(collections *CollectionManager, vs store.VectorStore, m *metrics.KBMetrics) *DocumentIndex {
	if m == nil {
		m = metrics.Global()
	}
	return &DocumentIndex{collections: collections, store: vs, metrics: m}
}

// Add 写入新文档并返回其 ID。集合不存在时先创建。
func (d *DocumentIndex) Add(ctx context.Context, tenantID, title, content string, metadata map[string]any, source string) (string, error) {
	doc := &model.Document{
		ID:       id.NewUUID(),
		TenantID: tenantID,
		Title:    title,
		Content:  content,
		Source:   source,
		Metadata: metadata,
	}
	if err := d.insert(ctx, doc); err != nil {
		return "", err
	}
	logger.Infow("document added", "tenant_id", tenantID, "document_id", doc.ID)
	return doc.ID, nil
}

func (d *DocumentIndex) insert(ctx context.Context, doc *model.Document) error {
	name, err := d.collections.Create(ctx, doc.TenantID, model.ContentTypeDocument)
	if err != nil {
		d.metrics.RecordDocumentIndexed(err)
		return err
	}

	obj, err := documentObject(doc)
	if err != nil {
		return err
	}
	if _, err := d.store.Insert(ctx, name, obj); err != nil {
		d.metrics.RecordDocumentIndexed(err)
		return fmt.Errorf("failed to insert document %s: %w", doc.ID, err)
	}
	d.metrics.RecordDocumentIndexed(nil)
	return nil
}

// Status 返回文档的索引状态。节点解析失败返回 ERROR 状态而非 error。
func (d *DocumentIndex) Status(ctx context.Context, tenantID, docID string) (model.DocumentStatus, error) {
	st := model.DocumentStatus{ID: docID, Status: model.IndexStatusNotIndexed}
	name := NameFor(tenantID, model.ContentTypeDocument)

	obj, err := d.store.FetchByID(ctx, name, docID, true)
	switch {
	case err == nil:
		if store.HasEmbedding(obj.Vector) {
			st.Status = model.IndexStatusIndexed
		} else {
			st.Message = "embedding pending"
		}
		return st, nil
	case errors.Is(err, store.ErrObjectNotFound), errors.Is(err, store.ErrCollectionNotFound):
		st.Message = "document not found"
		return st, nil
	case errors.Is(err, store.ErrNodeResolution):
		logger.Warnw("node resolution failed on status probe", "tenant_id", tenantID, "document_id", docID, "error", err.Error())
		st.Status = model.IndexStatusError
		st.Message = err.Error()
		return st, nil
	}
	return st, fmt.Errorf("failed to fetch document %s: %w", docID, err)
}

// Get 读取文档。
func (d *DocumentIndex) Get(ctx context.Context, tenantID, docID string) (*model.Document, error) {
	name := NameFor(tenantID, model.ContentTypeDocument)
	obj, err := d.store.FetchByID(ctx, name, docID, false)
	if err != nil {
		if errors.Is(err, store.ErrObjectNotFound) || errors.Is(err, store.ErrCollectionNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to fetch document %s: %w", docID, err)
	}
	doc := documentFromObject(obj)
	doc.TenantID = tenantID
	return doc, nil
}

// Update 部分更新文档属性。fields 为空时直接成功。
func (d *DocumentIndex) Update(ctx context.Context, tenantID, docID string, fields map[string]any) error {
	changes := make(map[string]any, len(fields))
	for k, v := range fields {
		if updatableFields[k] {
			changes[k] = v
		}
	}
	if len(changes) == 0 {
		return nil
	}

	doc, err := d.Get(ctx, tenantID, docID)
	if err != nil {
		return err
	}
	if v, ok := changes[propTitle].(string); ok {
		doc.Title = v
	}
	if v, ok := changes[propContent].(string); ok {
		doc.Content = v
	}
	if v, ok := changes[propSource].(string); ok {
		doc.Source = v
	}
	if v, ok := changes[propMetadata].(map[string]any); ok {
		doc.Metadata = v
	}

	obj, err := documentObject(doc)
	if err != nil {
		return err
	}
	name := NameFor(tenantID, model.ContentTypeDocument)
	if err := d.store.UpdateByID(ctx, name, obj); err != nil {
		if errors.Is(err, store.ErrObjectNotFound) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("failed to update document %s: %w", docID, err)
	}
	return nil
}

// Delete 删除文档。
func (d *DocumentIndex) Delete(ctx context.Context, tenantID, docID string) error {
	name := NameFor(tenantID, model.ContentTypeDocument)
	if err := d.store.DeleteByID(ctx, name, docID); err != nil {
		if errors.Is(err, store.ErrObjectNotFound) || errors.Is(err, store.ErrCollectionNotFound) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("failed to delete document %s: %w", docID, err)
	}
	logger.Infow("document deleted", "tenant_id", tenantID, "document_id", docID)
	return nil
}

// Reindex 按 doc_id 删除已有记录 (可能有重复)，再写入新记录。
// 删除失败只记录日志，不阻止写入。
func (d *DocumentIndex) Reindex(ctx context.Context, tenantID, docID string, doc model.Document) error {
	doc.ID = docID
	doc.TenantID = tenantID

	name := NameFor(tenantID, model.ContentTypeDocument)
	n, err := d.store.DeleteWhere(ctx, name, propDocID, docID)
	if err != nil && !errors.Is(err, store.ErrCollectionNotFound) {
		logger.Warnw("failed to delete previous document records", "tenant_id", tenantID, "document_id", docID, "error", err.Error())
	} else if n > 1 {
		logger.Infow("removed duplicate document records", "tenant_id", tenantID, "document_id", docID, "count", n)
	}

	return d.insert(ctx, &doc)
}

// ReindexAll 顺序重建文档索引，单个失败不中断。
func (d *DocumentIndex) ReindexAll(ctx context.Context, tenantID string, docs []model.Document) (total, succeeded int) {
	for _, doc := range docs {
		if ctx.Err() != nil {
			break
		}
		total++
		docID := doc.ID
		if docID == "" {
			docID = id.NewUUID()
		}
		if err := d.Reindex(ctx, tenantID, docID, doc); err != nil {
			logger.Warnw("document reindex failed", "tenant_id", tenantID, "document_id", docID, "error", err.Error())
			continue
		}
		succeeded++
	}
	logger.Infow("documents reindexed", "tenant_id", tenantID, "total", total, "succeeded", succeeded)
	return total, succeeded
}

func documentObject(doc *model.Document) (store.Object, error) {
	meta := ""
	if len(doc.Metadata) > 0 {
		s, err := json.MarshalString(doc.Metadata)
		if err != nil {
			return store.Object{}, fmt.Errorf("failed to encode metadata: %w", err)
		}
		meta = s
	}
	return store.Object{
		ID: doc.ID,
		Properties: map[string]any{
			propTenantID: doc.TenantID,
			propDocID:    doc.ID,
			propTitle:    doc.Title,
			propContent:  doc.Content,
			propSource:   doc.Source,
			propMetadata: meta,
		},
		Text: documentText(doc.Title, doc.Content),
	}, nil
}

func documentFromObject(obj *store.Object) *model.Document {
	str := func(k string) string {
		s, _ := obj.Properties[k].(string)
		return s
	}
	doc := &model.Document{
		ID:       obj.ID,
		TenantID: str(propTenantID),
		Title:    str(propTitle),
		Content:  str(propContent),
		Source:   str(propSource),
	}
	if raw := str(propMetadata); raw != "" {
		var meta map[string]any
		if err := json.Unmarshal([]byte(raw), &meta); err == nil {
			doc.Metadata = meta
		}
	}
	return doc
}
