package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Complete_ReadsEnv(t *testing.T) {
	t.Setenv("REDIS_PASSWORD", "s3cret")
	o := NewOptions()
	require.NoError(t, o.Complete())
	assert.Equal(t, "s3cret", o.Password)
	assert.NotContains(t, o.String(), "s3cret")
}

func TestOptions_ClientOptions(t *testing.T) {
	o := NewOptions()
	o.Database = 15
	co := o.ClientOptions()
	assert.Equal(t, "127.0.0.1:6379", co.Addr)
	assert.Equal(t, 15, co.DB)
}

func TestOptions_Validate(t *testing.T) {
	o := NewOptions()
	o.Port = 0
	assert.Len(t, o.Validate(), 1)
}
