package config

import (
	"os"
	"path/filepath"
	"testing"

	"e2e_xmtp/internal/content"
	"e2e_xmtp/internal/service/client"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset(t *testing.T) {
	t.Helper()
	viper.Reset()
	CfgFile = ""
	t.Cleanup(func() {
		viper.Reset()
		CfgFile = ""
	})
}

func TestDefaults(t *testing.T) {
	reset(t)
	setDefaults()

	cfg, err := NewClientConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, content.DefaultMaxContentSize, cfg.MaxContentSize)
	assert.Equal(t, client.DefaultContactCacheSize, cfg.ContactCacheSize)
	assert.Empty(t, cfg.KeyStoreType)
	assert.Nil(t, cfg.PrivateKeyOverride)
	assert.Equal(t, "xmtp", cfg.Mongo.Database)

	node := NewNodeConfigFromViper()
	assert.Equal(t, "localhost:5555", node.Listen)
	assert.Equal(t, 100, node.PageLimit)
}

func TestConfigFileAndEnv(t *testing.T) {
	reset(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: local
key_store_type: static
private_key_override: "0x7b7d"
node:
  page_limit: 25
`), 0o600))
	t.Setenv("XMTP_MAX_CONTENT_SIZE", "1024")

	CfgFile = path
	require.NoError(t, InitConfig())

	cfg, err := NewClientConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, client.KeyStoreStatic, cfg.KeyStoreType)
	assert.Equal(t, []byte("{}"), cfg.PrivateKeyOverride)
	assert.Equal(t, 1024, cfg.MaxContentSize)
	assert.Len(t, cfg.Options(), 6)

	assert.Equal(t, 25, NewNodeConfigFromViper().PageLimit)
}

func TestInvalidValues(t *testing.T) {
	reset(t)
	setDefaults()

	viper.Set("key_store_type", "browser")
	_, err := NewClientConfigFromViper()
	assert.ErrorIs(t, err, client.ErrConfiguration)

	viper.Set("key_store_type", "")
	viper.Set("private_key_override", "zz")
	_, err = NewClientConfigFromViper()
	assert.ErrorIs(t, err, client.ErrConfiguration)
}

func TestMissingConfigFile(t *testing.T) {
	reset(t)
	CfgFile = filepath.Join(t.TempDir(), "absent.yaml")
	assert.Error(t, InitConfig())
}
