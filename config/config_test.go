package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "localhost:3490", cfg.Upstream.Addr())
	assert.Equal(t, 5*time.Second, cfg.Upstream.ReconnectDelay)
	assert.Equal(t, 8765, cfg.Server.Port)
	assert.Equal(t, 1024, cfg.Relay.QueueSize)
	assert.Equal(t, "drop_oldest", cfg.Relay.OverflowPolicy)
	assert.Equal(t, 256, cfg.Relay.ConsumerBuffer)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
upstream:
  host: ecu-gateway
  port: 3491
  reconnect_delay: 2s
relay:
  queue_size: 64
  overflow_policy: block
log:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ecu-gateway:3491", cfg.Upstream.Addr())
	assert.Equal(t, 2*time.Second, cfg.Upstream.ReconnectDelay)
	assert.Equal(t, 64, cfg.Relay.QueueSize)
	assert.Equal(t, "block", cfg.Relay.OverflowPolicy)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, 8765, cfg.Server.Port)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("upstream:\n  host: from-file\n"), 0o644))

	t.Setenv("DLT_BRIDGE_UPSTREAM_HOST", "from-env")
	t.Setenv("DLT_BRIDGE_UPSTREAM_PORT", "4000")
	t.Setenv("DLT_BRIDGE_RECONNECT_DELAY", "500ms")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env:4000", cfg.Upstream.Addr())
	assert.Equal(t, 500*time.Millisecond, cfg.Upstream.ReconnectDelay)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "bad port", env: map[string]string{"DLT_BRIDGE_UPSTREAM_PORT": "70000"}},
		{name: "non-numeric port", env: map[string]string{"DLT_BRIDGE_PORT": "http"}},
		{name: "bad policy", env: map[string]string{"DLT_BRIDGE_OVERFLOW_POLICY": "drop_newest"}},
		{name: "bad delay", env: map[string]string{"DLT_BRIDGE_RECONNECT_DELAY": "soon"}},
		{name: "zero queue", env: map[string]string{"DLT_BRIDGE_QUEUE_SIZE": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
