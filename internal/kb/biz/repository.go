package biz

import (
	"context"

	"github.com/kart-io/tenant-kb/internal/model"
)

// TenantRepository 租户关系型读模型。
type TenantRepository interface {
	// GetTenantConfig 读取租户及其 UI 组件规则。
	GetTenantConfig(ctx context.Context, tenantID string) (*model.Tenant, error)
	// ListTenantIDs 列出全部租户 ID。
	ListTenantIDs(ctx context.Context) ([]string, error)
}
