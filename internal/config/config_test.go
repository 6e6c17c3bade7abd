package config

import (
	"testing"
	"time"

	"github.com/rudransh-shrivastava/peer-drop/internal/protocol"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 16384, cfg.Transfer.ChunkSize)
	assert.Equal(t, 30*time.Second, cfg.Transfer.StepTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Transfer.CloseGrace)
	assert.Equal(t, "_peerdrop._udp", cfg.ServiceName)
	assert.NotEmpty(t, cfg.STUNServers)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverlaysDefaults(t *testing.T) {
	cfg := Default()
	err := cfg.LoadEnv(env(map[string]string{
		"PEERDROP_CHUNK_SIZE":     "4096",
		"PEERDROP_STEP_TIMEOUT":   "0s",
		"PEERDROP_RENDEZVOUS_URL": "wss://drop.example.com/ws",
		"PEERDROP_STUN_SERVERS":   "stun:a:3478, stun:b:3478,",
		"PEERDROP_AUTO_ACCEPT":    "true",
		"PEERDROP_NAME":           "  ",
	}))
	require.NoError(t, err)

	assert.Equal(t, 4096, cfg.Transfer.ChunkSize)
	assert.Zero(t, cfg.Transfer.StepTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Transfer.CloseGrace)
	assert.Equal(t, "wss://drop.example.com/ws", cfg.RendezvousURL)
	assert.Equal(t, []string{"stun:a:3478", "stun:b:3478"}, cfg.STUNServers)
	assert.True(t, cfg.AutoAccept)
	assert.Empty(t, cfg.Name, "blank values are ignored")
}

func TestLoadEnvRejectsBadValues(t *testing.T) {
	for key, value := range map[string]string{
		"PEERDROP_CHUNK_SIZE":   "big",
		"PEERDROP_CLOSE_GRACE":  "soon",
		"PEERDROP_AUTO_ACCEPT":  "maybe",
		"PEERDROP_STEP_TIMEOUT": "10",
	} {
		cfg := Default()
		assert.Error(t, cfg.LoadEnv(env(map[string]string{key: value})), key)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.LoadEnv(env(map[string]string{"PEERDROP_DOWNLOAD_DIR": "/from/env"})))

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"--download-dir", "/from/flag", "--chunk-size", "1024", "-y"}))

	assert.Equal(t, "/from/flag", cfg.DownloadDir)
	assert.Equal(t, 1024, cfg.Transfer.ChunkSize)
	assert.True(t, cfg.AutoAccept)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Transfer.ChunkSize = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Transfer.ChunkSize = protocol.MaxChunkSize + 1
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Transfer.ChunkSize = protocol.MaxChunkSize
	assert.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.LogLevel = "loud"
	assert.Error(t, cfg.Validate())
}
