package kb

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOptions_Defaults(t *testing.T) {
	o := NewOptions()
	assert.Equal(t, 0.75, o.RouterAlpha)
	assert.Equal(t, 0.5, o.EntityAlpha)
	assert.Equal(t, 3, o.StructuredTopK)
	assert.Equal(t, 1024, o.MaxTokens)
	assert.Empty(t, o.Validate())
}

func TestOptions_Validate(t *testing.T) {
	o := NewOptions()
	o.RouterAlpha = 1.5
	o.TopK = 0
	assert.Len(t, o.Validate(), 2)
}

func TestOptions_AddFlags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("kb", pflag.ContinueOnError)
	o.AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--kb.top-k=8", "--kb.default-language=en"}))
	assert.Equal(t, 8, o.TopK)
	assert.Equal(t, "en", o.DefaultLanguage)
}

func TestOptions_Complete(t *testing.T) {
	o := &Options{}
	require.NoError(t, o.Complete())
	assert.Equal(t, "de", o.DefaultLanguage)
	assert.Equal(t, "freundlich", o.DefaultTone)
}
