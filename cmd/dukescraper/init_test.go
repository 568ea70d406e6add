package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgoulah/dukescraper/internal/config"
)

func TestWriteStarterConfig(t *testing.T) {
	t.Setenv(config.EnvEmail, "")
	t.Setenv(config.EnvPassword, "")
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, writeStarterConfig(path, "me@example.com", false))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", cfg.Duke.Email)
	assert.Empty(t, cfg.Duke.Password)
	assert.False(t, cfg.HomeAssistant.Enabled)
	assert.False(t, cfg.MQTT.Enabled)
	assert.ErrorContains(t, cfg.Validate(), "duke.password")

	err = writeStarterConfig(path, "other@example.com", false)
	assert.ErrorContains(t, err, "already exists")

	require.NoError(t, writeStarterConfig(path, "other@example.com", true))
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "other@example.com", cfg.Duke.Email)
}
