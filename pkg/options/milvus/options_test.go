package milvusopts

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Defaults(t *testing.T) {
	o := NewOptions()
	assert.Empty(t, o.Validate())
	// query/insert 预算比 connect 大一个数量级
	assert.GreaterOrEqual(t, o.QueryTimeout, 5*o.ConnectTimeout)
	assert.Greater(t, o.InsertTimeout, o.QueryTimeout)
}

func TestOptions_Flags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--milvus.address=milvus:19530", "--milvus.dim=1024"}))
	assert.Equal(t, "milvus:19530", o.Address)
	assert.Equal(t, 1024, o.Dim)
}

func TestOptions_Validate(t *testing.T) {
	o := NewOptions()
	o.Address = ""
	o.Dim = 0
	assert.Len(t, o.Validate(), 2)
}
