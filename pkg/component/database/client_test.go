package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbopts "github.com/kart-io/tenant-kb/pkg/options/database"
)

func TestNew_SQLiteMemory(t *testing.T) {
	opts := dbopts.NewOptions()
	opts.Path = ":memory:"

	c, err := New(context.Background(), opts)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "sqlite", c.Name())
	require.NoError(t, c.DB().Exec("CREATE TABLE t (id TEXT)").Error)
	require.NoError(t, c.DB().Exec("INSERT INTO t VALUES ('a')").Error)

	var n int64
	require.NoError(t, c.DB().Table("t").Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestNew_UnsupportedDriver(t *testing.T) {
	opts := dbopts.NewOptions()
	opts.Driver = "oracle"
	_, err := New(context.Background(), opts)
	assert.ErrorContains(t, err, "unsupported")
}

func TestBuildPostgresDSN(t *testing.T) {
	opts := dbopts.NewOptions()
	opts.Driver = dbopts.DriverPostgres
	opts.Host = "db"
	opts.Port = 5432
	opts.Username = "kb"
	opts.Database = "tenants"

	tests := []struct {
		password string
		want     string
	}{
		{"", "password=''"},
		{"plain", "password=plain"},
		{"with space", "password='with space'"},
		{"it's", `password='it\'s'`},
	}
	for _, tt := range tests {
		opts.Password = tt.password
		dsn := BuildPostgresDSN(opts)
		assert.Contains(t, dsn, tt.want)
		assert.Contains(t, dsn, "host=db port=5432 user=kb")
		assert.Contains(t, dsn, "dbname=tenants sslmode=disable")
	}
}

func TestBuildMySQLDSN(t *testing.T) {
	opts := dbopts.NewOptions()
	opts.Host = "mysql"
	opts.Port = 3306
	opts.Username = "root"
	opts.Password = "p@ss"
	opts.Database = "kb"
	assert.Equal(t, "root:p@ss@tcp(mysql:3306)/kb?charset=utf8mb4&parseTime=True&loc=UTC", BuildMySQLDSN(opts))
}
