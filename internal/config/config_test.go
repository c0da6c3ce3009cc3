package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, 4, cfg.FanOut)
	assert.Equal(t, "urn:ietf:wg:oauth:2.0:oob", cfg.Google.RedirectURL)

	// The template must exist afterwards so it can be filled in.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestLoadExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
timezone: America/Los_Angeles
fan_out: 2
google:
  client_id: cid
  client_secret: secret
`)
	require.NoError(t, os.WriteFile(path, data, 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "America/Los_Angeles", cfg.Timezone)
	assert.Equal(t, 2, cfg.FanOut)
	assert.Equal(t, "cid", cfg.Google.ClientID)
	assert.Equal(t, "secret", cfg.Google.ClientSecret)
	// Normalized defaults for omitted fields.
	assert.NotEmpty(t, cfg.DBPath)
	assert.Equal(t, "urn:ietf:wg:oauth:2.0:oob", cfg.Google.RedirectURL)
}

func TestLoadRejectsInvalidTimezone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timezone: Not/AZone\n"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	cfg := &Config{FanOut: -1}
	cfg.Normalize()
	assert.Equal(t, 4, cfg.FanOut)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.NotEmpty(t, cfg.DBPath)
}
