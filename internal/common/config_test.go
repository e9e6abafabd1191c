package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	assert.True(t, config.EBay.Sandbox, "sandbox should be the default environment")
	assert.Equal(t, "EBAY_US", config.EBay.Marketplace)
	assert.Equal(t, 5000, config.EBay.RateLimitPerDay)
	assert.Equal(t, 10, config.EBay.RateLimitPerSecond)
	assert.Equal(t, 3, config.EBay.MaxRetries)
	assert.Equal(t, 30*time.Second, config.EBay.GetTimeout())
	assert.Equal(t, time.Second, config.EBay.GetRetryDelay())
	assert.Equal(t, 60*time.Second, config.EBay.GetMaxRetryDelay())
	assert.Equal(t, "info", config.Logging.Level)
	assert.False(t, config.IsProduction())
}

func TestLoadConfig_FromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lootly.toml")
	content := `
environment = "production"

[ebay]
client_id = "file-app-id"
client_secret = "file-cert-id"
sandbox = false
marketplace = "EBAY_GB"
rate_limit_per_day = 100
timeout = "10s"

[logging]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "file-app-id", config.EBay.ClientID)
	assert.Equal(t, "file-cert-id", config.EBay.ClientSecret)
	assert.False(t, config.EBay.Sandbox)
	assert.Equal(t, "EBAY_GB", config.EBay.Marketplace)
	assert.Equal(t, 100, config.EBay.RateLimitPerDay)
	assert.Equal(t, 10*time.Second, config.EBay.GetTimeout())
	assert.Equal(t, "debug", config.Logging.Level)
	assert.True(t, config.IsProduction())

	// Unset fields keep their defaults
	assert.Equal(t, 10, config.EBay.RateLimitPerSecond)
}

func TestLoadConfig_MissingFileIsSkipped(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	assert.Equal(t, "EBAY_US", config.EBay.Marketplace)
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("EBAY_APP_ID", "env-app-id")
	t.Setenv("EBAY_CERT_ID", "env-cert-id")
	t.Setenv("EBAY_SANDBOX_MODE", "false")
	t.Setenv("EBAY_MARKETPLACE_ID", "EBAY_DE")
	t.Setenv("EBAY_RATE_LIMIT_PER_DAY", "250")
	t.Setenv("EBAY_TIMEOUT", "5s")
	t.Setenv("LOOTLY_ENV", "production")
	t.Setenv("LOOTLY_LOG_LEVEL", "warn")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "env-app-id", config.EBay.ClientID)
	assert.Equal(t, "env-cert-id", config.EBay.ClientSecret)
	assert.False(t, config.EBay.Sandbox)
	assert.Equal(t, "EBAY_DE", config.EBay.Marketplace)
	assert.Equal(t, 250, config.EBay.RateLimitPerDay)
	assert.Equal(t, 5*time.Second, config.EBay.GetTimeout())
	assert.Equal(t, "production", config.Environment)
	assert.Equal(t, "warn", config.Logging.Level)
}

func TestLoadConfig_EnvOverridesBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lootly.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ebay]\nclient_id = \"file-app-id\"\n"), 0o644))
	t.Setenv("EBAY_APP_ID", "env-wins")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-wins", config.EBay.ClientID)
}

func TestDurationFallbacks(t *testing.T) {
	ebay := EbayConfig{Timeout: "garbage", RetryDelay: "", MaxRetryDelay: "bad"}
	assert.Equal(t, 30*time.Second, ebay.GetTimeout())
	assert.Equal(t, time.Second, ebay.GetRetryDelay())
	assert.Equal(t, 60*time.Second, ebay.GetMaxRetryDelay())
}
