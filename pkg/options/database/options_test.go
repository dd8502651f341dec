package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *Options)
		wantErr bool
	}{
		{"sqlite default", func(o *Options) {}, false},
		{"sqlite without path", func(o *Options) { o.Path = "" }, true},
		{"postgres without database", func(o *Options) { o.Driver = DriverPostgres }, true},
		{"mysql with database", func(o *Options) { o.Driver = DriverMySQL; o.Database = "kb" }, false},
		{"unknown driver", func(o *Options) { o.Driver = "oracle" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOptions()
			tt.mutate(o)
			assert.Equal(t, tt.wantErr, len(o.Validate()) > 0)
		})
	}
}

func TestOptions_Complete_DefaultPort(t *testing.T) {
	o := NewOptions()
	o.Driver = DriverPostgres
	require.NoError(t, o.Complete())
	assert.Equal(t, 5432, o.Port)

	o = NewOptions()
	o.Driver = DriverMySQL
	o.Port = 3307
	require.NoError(t, o.Complete())
	assert.Equal(t, 3307, o.Port)
}
