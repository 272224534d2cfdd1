package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/abdul-hamid-achik/hammx/packages/core/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".hammx.yaml")

	cfg := config.DefaultConfig().Merge(&config.Config{
		BaseURL: "https://api.example.com",
		Headers: map[string]string{"Accept": "application/json"},
	})
	cfg.NoColor = config.BoolPtr(true)

	var out bytes.Buffer
	require.NoError(t, initConfig(cfg, path, false, &out))
	assert.Contains(t, out.String(), "Wrote "+path)
	assert.NotContains(t, out.String(), "defaults")

	loaded, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", loaded.BaseURL)
	assert.Equal(t, "application/json", loaded.Headers["Accept"])

	err = initConfig(cfg, path, false, &out)
	assert.Equal(t, ExitUsageError, exitCode(err))

	cfg.BaseURL = "https://other.example.com"
	require.NoError(t, initConfig(cfg, path, true, &out))
	loaded, err = config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com", loaded.BaseURL)
}

func TestInitConfig_Defaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hammx.json")

	var out bytes.Buffer
	require.NoError(t, initConfig(config.DefaultConfig(), path, false, &out))
	assert.Contains(t, out.String(), "All settings are defaults")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timeout": 30000`)
}

func TestShowConfig(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, showConfig(config.DefaultConfig(), &out))
	assert.Contains(t, out.String(), "showing defaults")
	assert.Contains(t, out.String(), "timeout: 30000")

	out.Reset()
	cfg := config.DefaultConfig().Merge(&config.Config{BaseURL: "https://api.example.com"})
	require.NoError(t, showConfig(cfg, &out))
	assert.NotContains(t, out.String(), "showing defaults")
	assert.Contains(t, out.String(), "baseURL: https://api.example.com")
}
