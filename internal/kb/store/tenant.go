package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kart-io/tenant-kb/internal/model"
)

// ErrTenantNotFound 租户不存在。
var ErrTenantNotFound = errors.New("tenant not found")

// TenantStore 提供租户配置的关系型读模型。
type TenantStore struct {
	db *gorm.DB
}

// NewTenantStore 创建租户存储。
func NewTenantStore(db *gorm.DB) *TenantStore {
	return &TenantStore{db: db}
}

// AutoMigrate 创建或更新租户相关表。
func (s *TenantStore) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&model.Tenant{}, &model.UIComponentRule{}); err != nil {
		return fmt.Errorf("failed to migrate tenant tables: %w", err)
	}
	return nil
}

// GetTenantConfig 读取租户及其 UI 组件规则。
func (s *TenantStore) GetTenantConfig(ctx context.Context, tenantID string) (*model.Tenant, error) {
	var t model.Tenant
	err := s.db.WithContext(ctx).
		Preload("UIComponentRules", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ?", tenantID).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to load tenant %s: %w", tenantID, err)
	}
	return &t, nil
}

// ListTenantIDs 列出全部租户 ID。
func (s *TenantStore) ListTenantIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&model.Tenant{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	return ids, nil
}

// SaveTenant 写入租户 (存在则更新)，并整体替换其 UI 组件规则。
func (s *TenantStore) SaveTenant(ctx context.Context, t *model.Tenant) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rules := t.UIComponentRules
		if err := tx.Omit("UIComponentRules").Clauses(clause.OnConflict{UpdateAll: true}).Create(t).Error; err != nil {
			return fmt.Errorf("failed to save tenant %s: %w", t.ID, err)
		}
		if err := tx.Where("tenant_id = ?", t.ID).Delete(&model.UIComponentRule{}).Error; err != nil {
			return fmt.Errorf("failed to clear rules of tenant %s: %w", t.ID, err)
		}
		for i := range rules {
			rules[i].ID = 0
			rules[i].TenantID = t.ID
		}
		if len(rules) > 0 {
			if err := tx.Create(&rules).Error; err != nil {
				return fmt.Errorf("failed to save rules of tenant %s: %w", t.ID, err)
			}
		}
		t.UIComponentRules = rules
		return nil
	})
}
