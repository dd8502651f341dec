package biz

import (
	"context"
	"errors"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/tenant-kb/internal/kb/metrics"
	"github.com/kart-io/tenant-kb/internal/kb/store"
	"github.com/kart-io/tenant-kb/internal/model"
)

// ValidateReport validateAll 的汇总结果。
type ValidateReport struct {
	Checked  int `json:"checked"`
	Repaired int `json:"repaired"`
	Failed   int `json:"failed"`
}

// CollectionManager 管理租户集合的生命周期。
// 并发创建同一集合时依赖存储的 "已存在" 语义保证幂等，不加锁。
type CollectionManager struct {
	store   store.VectorStore
	tenants TenantRepository
	metrics *metrics.KBMetrics
}

// NewCollectionManager 创建集合管理器。
func NewCollectionManager(vs store.VectorStore, tenants TenantRepository, m *metrics.KBMetrics) *CollectionManager {
	if m == nil {
		m = metrics.Global()
	}
	return &CollectionManager{store: vs, tenants: tenants, metrics: m}
}

// NameFor 返回集合名称。
func (m *CollectionManager) NameFor(tenantID string, contentType model.ContentType) string {
	return NameFor(tenantID, contentType)
}

// Exists 检查集合是否存在，仅传输错误返回 error。
func (m *CollectionManager) Exists(ctx context.Context, name string) (bool, error) {
	return m.store.CollectionExists(ctx, name)
}

// Create 确保集合存在并返回其名称。已存在 (包括并发创建) 视为成功。
func (m *CollectionManager) Create(ctx context.Context, tenantID string, contentType model.ContentType) (string, error) {
	name := NameFor(tenantID, contentType)

	ok, err := m.store.CollectionExists(ctx, name)
	if err != nil {
		m.metrics.RecordCollectionCreate(err)
		return "", fmt.Errorf("failed to probe collection %s: %w", name, err)
	}
	if ok {
		return name, nil
	}
	if err := m.createNamed(ctx, name, contentType); err != nil {
		return "", err
	}
	return name, nil
}

func (m *CollectionManager) createNamed(ctx context.Context, name string, contentType model.ContentType) error {
	err := m.store.CreateCollection(ctx, SchemaFor(name, contentType))
	if err != nil && !errors.Is(err, store.ErrCollectionExists) {
		m.metrics.RecordCollectionCreate(err)
		logger.Errorw("failed to create collection", "collection", name, "error", err.Error())
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	if err == nil {
		m.metrics.RecordCollectionCreate(nil)
		logger.Infow("collection created", "collection", name, "content_type", string(contentType))
	}
	return nil
}

// Validate 校验租户主集合 (document)，缺失时重建；
// 探测出现传输错误时先删除再重建一次。返回是否进行了修复。
func (m *CollectionManager) Validate(ctx context.Context, tenantID string) (bool, error) {
	name := NameFor(tenantID, model.ContentTypeDocument)

	ok, err := m.store.CollectionExists(ctx, name)
	switch {
	case err == nil && ok:
		return false, nil
	case err == nil:
		logger.Warnw("collection missing, recreating", "tenant_id", tenantID, "collection", name)
	default:
		logger.Warnw("collection probe failed, rebuilding", "tenant_id", tenantID, "collection", name, "error", err.Error())
		if derr := m.store.DeleteCollection(ctx, name); derr != nil && !errors.Is(derr, store.ErrCollectionNotFound) {
			logger.Warnw("failed to delete broken collection", "collection", name, "error", derr.Error())
		}
	}

	if err := m.createNamed(ctx, name, model.ContentTypeDocument); err != nil {
		return false, err
	}
	m.metrics.RecordCollectionRepair()
	return true, nil
}

// ValidateAll 校验全部租户，单个租户失败只计数不中断。
func (m *CollectionManager) ValidateAll(ctx context.Context) ValidateReport {
	var report ValidateReport

	ids, err := m.tenants.ListTenantIDs(ctx)
	if err != nil {
		logger.Errorw("failed to list tenants for validation", "error", err.Error())
		return report
	}

	for _, tenantID := range ids {
		if ctx.Err() != nil {
			break
		}
		report.Checked++
		repaired, err := m.Validate(ctx, tenantID)
		if err != nil {
			report.Failed++
			logger.Warnw("tenant validation failed", "tenant_id", tenantID, "error", err.Error())
			continue
		}
		if repaired {
			report.Repaired++
		}
	}

	logger.Infow("collection validation finished",
		"checked", report.Checked, "repaired", report.Repaired, "failed", report.Failed)
	return report
}

// Delete 删除租户全部内容类型的集合，不存在视为成功。
func (m *CollectionManager) Delete(ctx context.Context, tenantID string) error {
	var errs []error
	for _, t := range model.AllContentTypes {
		name := NameFor(tenantID, t)
		if err := m.store.DeleteCollection(ctx, name); err != nil && !errors.Is(err, store.ErrCollectionNotFound) {
			errs = append(errs, fmt.Errorf("failed to delete collection %s: %w", name, err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Infow("tenant collections deleted", "tenant_id", tenantID)
	return nil
}

// TenantCollections 列出租户的全部集合，结构化类型集合在前。
func (m *CollectionManager) TenantCollections(ctx context.Context, tenantID string) ([]string, error) {
	names, err := m.store.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	fp := Fingerprint(tenantID)
	var structured, other []string
	for _, name := range names {
		if !ownedBy(name, fp) {
			continue
		}
		if t, ok := contentTypeOf(name, fp); ok && t.Structured() {
			structured = append(structured, name)
		} else {
			other = append(other, name)
		}
	}
	return append(structured, other...), nil
}
