package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEnvProvider implements EnvProvider backed by a map
type fakeEnvProvider struct {
	env  map[string]string
	home string
}

func (p *fakeEnvProvider) Getenv(key string) string {
	return p.env[key]
}

func (p *fakeEnvProvider) UserHomeDir() (string, error) {
	return p.home, nil
}

func TestConfigDefaults(t *testing.T) {
	env := &fakeEnvProvider{env: map[string]string{}, home: "/home/alex"}

	config, err := NewConfigWithEnv(env, "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/home/alex", ".local", "share", "coxswain"), config.DataDir)
	assert.Equal(t, filepath.Join(config.DataDir, "coxswain.db"), config.DatabasePath)
	assert.Equal(t, "info", config.LogLevel)
	assert.True(t, config.ColorEnabled)
	assert.Equal(t, "127.0.0.1:4242", config.ListenAddr())
	assert.Equal(t, 5*time.Second, config.PollInterval)
	assert.Equal(t, 500, config.MaxPollEvents)
	assert.Empty(t, config.MockCloudID)
}

func TestConfigXDGDataHome(t *testing.T) {
	env := &fakeEnvProvider{env: map[string]string{
		"XDG_DATA_HOME": "/xdg/data",
	}}

	config, err := NewConfigWithEnv(env, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg/data", "coxswain"), config.DataDir)
}

func TestConfigCLIDataDirWins(t *testing.T) {
	env := &fakeEnvProvider{env: map[string]string{
		"XDG_DATA_HOME":     "/xdg/data",
		"COXSWAIN_DATA_DIR": "/from/env",
	}}

	config, err := NewConfigWithEnv(env, "/from/flag")
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", config.DataDir)

	config, err = NewConfigWithEnv(env, "")
	require.NoError(t, err)
	assert.Equal(t, "/from/env", config.DataDir)
}

func TestConfigEnvOverrides(t *testing.T) {
	env := &fakeEnvProvider{env: map[string]string{
		"COXSWAIN_LOG_LEVEL":     "debug",
		"COXSWAIN_HTTP_HOST":     "0.0.0.0",
		"COXSWAIN_HTTP_PORT":     "8080",
		"COXSWAIN_POLL_INTERVAL": "250ms",
		"COXSWAIN_MOCK_CLOUD_ID": "mock-cloud",
		"NO_COLOR":               "1",
	}, home: "/home/alex"}

	config, err := NewConfigWithEnv(env, "")
	require.NoError(t, err)

	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "0.0.0.0:8080", config.ListenAddr())
	assert.Equal(t, 250*time.Millisecond, config.PollInterval)
	assert.Equal(t, "mock-cloud", config.MockCloudID)
	assert.False(t, config.ColorEnabled)
}

func TestConfigFromFile(t *testing.T) {
	dataDir := t.TempDir()
	content := `log_level: warning
http_port: 9000
poll_interval: 2s
max_poll_events: 42
mock_cloud_id: demo
color_enabled: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.yaml"), []byte(content), 0o644))

	config, err := NewConfigWithEnv(&fakeEnvProvider{env: map[string]string{}}, dataDir)
	require.NoError(t, err)

	assert.Equal(t, "warning", config.LogLevel)
	assert.Equal(t, 9000, config.HTTPPort)
	assert.Equal(t, 2*time.Second, config.PollInterval)
	assert.Equal(t, 42, config.MaxPollEvents)
	assert.Equal(t, "demo", config.MockCloudID)
	assert.False(t, config.ColorEnabled)
}

func TestConfigEnvWinsOverFile(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.yaml"), []byte("log_level: warning\n"), 0o644))

	config, err := NewConfigWithEnv(&fakeEnvProvider{env: map[string]string{
		"COXSWAIN_LOG_LEVEL": "error",
	}}, dataDir)
	require.NoError(t, err)
	assert.Equal(t, "error", config.LogLevel)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"invalid log level", map[string]string{"COXSWAIN_LOG_LEVEL": "verbose"}},
		{"invalid port", map[string]string{"COXSWAIN_HTTP_PORT": "70000"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigWithEnv(&fakeEnvProvider{env: tt.env, home: "/home/alex"}, "")
			assert.ErrorContains(t, err, "invalid configuration")
		})
	}
}

func TestConfigMalformedFile(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.yaml"), []byte("log_level: [oops\n"), 0o644))

	_, err := NewConfigWithEnv(&fakeEnvProvider{env: map[string]string{}}, dataDir)
	assert.Error(t, err)
}
