package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moffa90/go-mw4ota/manifest"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mw4ota.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Validate(Defaults()))
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, manifest.DefaultURL, cfg.Manifest.URL)
	assert.Equal(t, 512, cfg.Transfer.ChunkSize)
	assert.Equal(t, 1, cfg.Retry.Attempts)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
device:
  name: MW4
  scan_timeout: 30s
manifest:
  url: https://releases.example.com/mw4/deployment.json
  image_scheme: https
  breaker:
    max_failures: 5
transfer:
  chunk_size: 244
  end_timeout: 2m
  write_interval: 5ms
  chunk_ack: true
retry:
  attempts: 3
watch:
  schedule: "0 */6 * * *"
logger:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "MW4", cfg.Device.Name)
	assert.Equal(t, 30*time.Second, cfg.Device.ScanTimeout)
	assert.Equal(t, 10*time.Second, cfg.Device.ConnectTimeout, "unset fields keep defaults")
	assert.Equal(t, "https", cfg.Manifest.ImageScheme)
	assert.Equal(t, uint32(5), cfg.Manifest.Breaker.MaxFailures)
	assert.Equal(t, time.Minute, cfg.Manifest.Breaker.Timeout)
	assert.Equal(t, 244, cfg.Transfer.ChunkSize)
	assert.Equal(t, 2*time.Minute, cfg.Transfer.EndTimeout)
	assert.Equal(t, 5*time.Millisecond, cfg.Transfer.WriteInterval)
	assert.True(t, cfg.Transfer.ChunkAck)
	assert.Equal(t, 3, cfg.Retry.Attempts)
	assert.Equal(t, "0 */6 * * *", cfg.Watch.Schedule)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "transfer: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MW4OTA_MANIFEST_URL", "http://127.0.0.1:8080/deployment.json")
	t.Setenv("MW4OTA_CHUNK_SIZE", "128")
	t.Setenv("MW4OTA_DEVICE_NAME", "Zaku")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/deployment.json", cfg.Manifest.URL)
	assert.Equal(t, 128, cfg.Transfer.ChunkSize)
	assert.Equal(t, "Zaku", cfg.Device.Name)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"relative url", func(c *Config) { c.Manifest.URL = "/deployment.json" }, "manifest.url"},
		{"ftp url", func(c *Config) { c.Manifest.URL = "ftp://h/d.json" }, "manifest.url"},
		{"bad image scheme", func(c *Config) { c.Manifest.ImageScheme = "file" }, "image_scheme"},
		{"zero image size", func(c *Config) { c.Manifest.MaxImageSize = 0 }, "max_image_size"},
		{"chunk too small", func(c *Config) { c.Transfer.ChunkSize = 0 }, "chunk_size"},
		{"chunk too large", func(c *Config) { c.Transfer.ChunkSize = 513 }, "chunk_size"},
		{"zero end timeout", func(c *Config) { c.Transfer.EndTimeout = 0 }, "end_timeout"},
		{"negative interval", func(c *Config) { c.Transfer.WriteInterval = -time.Second }, "write_interval"},
		{"negative settle timeout", func(c *Config) { c.Transfer.SettleTimeout = -time.Second }, "settle_timeout"},
		{"no attempts", func(c *Config) { c.Retry.Attempts = 0 }, "retry.attempts"},
		{"bad schedule", func(c *Config) { c.Watch.Schedule = "every hour" }, "watch.schedule"},
		{"bad level", func(c *Config) { c.Logger.Level = "trace" }, "logger.level"},
		{"negative scan timeout", func(c *Config) { c.Device.ScanTimeout = -1 }, "device"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	cfg := Defaults()
	before := *cfg
	require.NoError(t, Validate(cfg))
	assert.Equal(t, before, *cfg)
}
