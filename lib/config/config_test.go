package config

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset(t *testing.T) {
	t.Helper()
	viper.Reset()
	CfgFile = ""
	t.Setenv("HOME", t.TempDir())
	t.Cleanup(func() {
		viper.Reset()
		CfgFile = ""
	})
}

func TestInitConfig_CreatesDefaultFile(t *testing.T) {
	reset(t)
	require.NoError(t, InitConfig())
	assert.FileExists(t, filepath.Join(BuildMockDirPath(), "config.yaml"))

	cfg, err := NewMockConfigFromViper()
	require.NoError(t, err)
	assert.True(t, cfg.ListenIP.Equal(net.IPv4zero))
	assert.Equal(t, DefaultUDPPort, cfg.ListenPort)
	assert.Equal(t, uint64(1), cfg.ENRSeq)
	assert.Nil(t, cfg.AdvertiseIP)
	assert.Equal(t, DefaultQueueLen, cfg.QueueSize)
	assert.Zero(t, cfg.SendRate)
	assert.True(t, cfg.VerifyIDSignature)
	assert.Equal(t, filepath.Join(BuildMockDirPath(), DefaultKeyName), cfg.KeyFile)
}

func TestInitConfig_ReadsFile(t *testing.T) {
	reset(t)
	path := filepath.Join(t.TempDir(), "mock.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen:
  ip: 127.0.0.1
  port: 30303
node:
  enr_seq: 7
  advertise_ip: 10.0.0.5
script: scripts/findnode.yaml
transport:
  queue_size: 8
  send_rate: 50
handler:
  verify_id_signature: false
`), 0o600))
	CfgFile = path

	require.NoError(t, InitConfig())
	cfg, err := NewMockConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.ListenIP.String())
	assert.Equal(t, 30303, cfg.ListenPort)
	assert.Equal(t, uint64(7), cfg.ENRSeq)
	assert.Equal(t, "10.0.0.5", cfg.AdvertiseIP.String())
	assert.Equal(t, "scripts/findnode.yaml", cfg.Script)
	assert.Equal(t, 8, cfg.QueueSize)
	assert.Equal(t, 50.0, cfg.SendRate)
	assert.False(t, cfg.VerifyIDSignature)
}

func TestInitConfig_MissingExplicitFile(t *testing.T) {
	reset(t)
	CfgFile = filepath.Join(t.TempDir(), "absent.yaml")
	assert.Error(t, InitConfig())
}

func TestNewMockConfigFromViper_Invalid(t *testing.T) {
	reset(t)
	require.NoError(t, InitConfig())

	viper.Set("listen.ip", "not-an-ip")
	_, err := NewMockConfigFromViper()
	assert.Error(t, err)

	viper.Set("listen.ip", "0.0.0.0")
	viper.Set("node.advertise_ip", "nope")
	_, err = NewMockConfigFromViper()
	assert.Error(t, err)

	viper.Set("node.advertise_ip", "")
	viper.Set("transport.queue_size", -1)
	cfg, err := NewMockConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, DefaultQueueLen, cfg.QueueSize)
}

func TestNewMockConfigFromViper_KeyFileFollowsBaseDir(t *testing.T) {
	reset(t)
	require.NoError(t, InitConfig())

	base := t.TempDir()
	viper.Set("base_dir", base)
	cfg, err := NewMockConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, base, cfg.BaseDir)
	assert.Equal(t, filepath.Join(base, DefaultKeyName), cfg.KeyFile)

	viper.Set("node.key_file", "/etc/mock/other.key")
	cfg, err = NewMockConfigFromViper()
	require.NoError(t, err)
	assert.Equal(t, "/etc/mock/other.key", cfg.KeyFile)
}
