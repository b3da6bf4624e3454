package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "be-procurement-requests", cfg.Service.Name)
	assert.Equal(t, 8086, cfg.Server.Port)
	assert.Equal(t, 0.075, cfg.Pricing.VATRate)
	assert.Equal(t, ":8086", cfg.Server.Addr())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
service:
  name: procurement-staging
server:
  port: 9090
pricing:
  vat_rate: 0.05
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_PORT", "9191")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "procurement-staging", cfg.Service.Name)
	assert.Equal(t, 0.05, cfg.Pricing.VATRate)
	// Environment wins over the file.
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadRejectsBadVATRate(t *testing.T) {
	t.Setenv("VAT_RATE", "1.5")
	_, err := Load()
	require.Error(t, err)
}
