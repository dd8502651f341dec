package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/tenant-kb/pkg/app/cliflag"
)

type testOptions struct {
	Addr  string `mapstructure:"addr"`
	TopK  int    `mapstructure:"top-k"`
	Token string `mapstructure:"token"`

	completed bool
}

func (o *testOptions) Flags() (fss cliflag.NamedFlagSets) {
	fs := fss.FlagSet("test")
	fs.StringVar(&o.Addr, "addr", o.Addr, "")
	fs.IntVar(&o.TopK, "top-k", o.TopK, "")
	fs.StringVar(&o.Token, "token", o.Token, "")
	return fss
}

func (o *testOptions) Complete() error { o.completed = true; return nil }
func (o *testOptions) Validate() error { return nil }

func TestApp_ConfigFileAndFlagPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "kb.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("addr: \":9000\"\ntop-k: 7\ntoken: ${KBAPP_SECRET}\n"), 0o600))
	t.Setenv("KBAPP_SECRET", "secret")

	opts := &testOptions{Addr: ":8082", TopK: 5}
	var ran bool
	a := NewApp(
		WithName("kb-test"),
		WithNoVersion(),
		WithOptions(opts),
		WithRunFunc(func() error { ran = true; return nil }),
	)
	a.Command().SetArgs([]string{"--config", cfg, "--top-k=9"})
	require.NoError(t, a.Command().Execute())

	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, ":9000", opts.Addr)
	assert.Equal(t, 9, opts.TopK)
	assert.Equal(t, "secret", opts.Token)
}

func TestApp_EnvOverridesFile(t *testing.T) {
	t.Setenv("KB_ENV_ADDR", ":7000")
	opts := &testOptions{Addr: ":8082"}
	a := NewApp(WithName("kb-env"), WithNoVersion(), WithOptions(opts))
	a.Command().SetArgs([]string{})
	require.NoError(t, a.Command().Execute())
	assert.Equal(t, ":7000", opts.Addr)
}
