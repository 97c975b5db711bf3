package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"localhost:5173", "localhost:3000"}, cfg.Origins())
	assert.Empty(t, cfg.SceneFile)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PLATENEST_PORT", "9090")
	t.Setenv("PLATENEST_ALLOWED_ORIGINS", " example.com , ,*.local ")
	t.Setenv("PLATENEST_SCENE_FILE", "/tmp/plate.platenest")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"example.com", "*.local"}, cfg.Origins())
	assert.Equal(t, "/tmp/plate.platenest", cfg.SceneFile)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("PLATENEST_PORT", "eighty")
	_, err := Load()
	assert.Error(t, err)
}
