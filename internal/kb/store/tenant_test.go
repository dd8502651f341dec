package store

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kart-io/tenant-kb/internal/model"
)

func newTenantStore(t *testing.T) *TenantStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := NewTenantStore(db)
	require.NoError(t, s.AutoMigrate(context.Background()))
	return s
}

func TestTenantStore(t *testing.T) {
	ctx := context.Background()
	s := newTenantStore(t)

	_, err := s.GetTenantConfig(ctx, "missing")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	require.NoError(t, s.SaveTenant(ctx, &model.Tenant{
		ID:   "b-tenant",
		Name: "Stadt B",
		UIComponentRules: []model.UIComponentRule{
			{Component: "map", TriggerPhrases: []string{"wo ist", "adresse"}, Enabled: true},
		},
	}))
	require.NoError(t, s.SaveTenant(ctx, &model.Tenant{ID: "a-tenant", Name: "Stadt A"}))

	got, err := s.GetTenantConfig(ctx, "b-tenant")
	require.NoError(t, err)
	assert.Equal(t, "Stadt B", got.Name)
	require.Len(t, got.UIComponentRules, 1)
	assert.Equal(t, []string{"wo ist", "adresse"}, got.UIComponentRules[0].TriggerPhrases)

	ids, err := s.ListTenantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-tenant", "b-tenant"}, ids)

	// 再次保存替换规则
	require.NoError(t, s.SaveTenant(ctx, &model.Tenant{ID: "b-tenant", Name: "Stadt B2"}))
	got, err = s.GetTenantConfig(ctx, "b-tenant")
	require.NoError(t, err)
	assert.Equal(t, "Stadt B2", got.Name)
	assert.Empty(t, got.UIComponentRules)
}
