package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpdeck/internal/mcp"
)

func gatewayNamed(name string) *mcp.GatewayConfig {
	return &mcp.GatewayConfig{Name: name, URL: "https://gw.example.com/mcp"}
}

func writeConfig(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "mcpdeck"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mcpdeck", "config.yaml"), []byte(content), 0644))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir()) // no config file
	t.Setenv("MCPDECK_ORG", "")
	t.Setenv("MCPDECK_LOG_LEVEL", "")
	t.Setenv("MCPDECK_DATA_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 1024, cfg.Cache.Capacity)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoadFromFile(t *testing.T) {
	writeConfig(t, `
org: acme
gateways:
  - name: main
    url: https://gw.example.com/mcp
    headers:
      Authorization: Bearer token
log:
  level: debug
cache:
  capacity: 64
  ttl: 30s
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "acme", cfg.Org)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 64, cfg.Cache.Capacity)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)

	gw, err := cfg.Gateway("main")
	require.NoError(t, err)
	assert.Equal(t, "https://gw.example.com/mcp", gw.URL)
	assert.Equal(t, "Bearer token", gw.Headers["Authorization"])

	_, err = cfg.Gateway("nope")
	assert.Error(t, err)
}

func TestEnvExpansionInFile(t *testing.T) {
	t.Setenv("GW_TOKEN", "s3cret")
	writeConfig(t, `
org: acme
gateways:
  - name: main
    url: https://gw.example.com/mcp
    headers:
      Authorization: Bearer ${GW_TOKEN}
`)

	cfg, err := Load()
	require.NoError(t, err)
	gw, err := cfg.Gateway("main")
	require.NoError(t, err)
	assert.Equal(t, "Bearer s3cret", gw.Headers["Authorization"])
}

func TestEnvOverridesFile(t *testing.T) {
	writeConfig(t, "org: acme\nlog:\n  level: debug\n")
	t.Setenv("MCPDECK_ORG", "other")
	t.Setenv("MCPDECK_LOG_LEVEL", "error")
	t.Setenv("MCPDECK_DATA_DIR", "/tmp/deck-data")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "other", cfg.Org)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, "/tmp/deck-data", cfg.DataDir)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate(), "org is required")

	cfg.Org = "acme"
	assert.NoError(t, cfg.Validate())

	cfg.Gateways = append(cfg.Gateways, gatewayNamed("main"), gatewayNamed("main"))
	assert.Error(t, cfg.Validate(), "duplicate gateway names rejected")
}
