package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresStorageSecret(t *testing.T) {
	os.Unsetenv("STORAGE_SECRET")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadAppliesDefaults(t *testing.T) {
	os.Setenv("STORAGE_SECRET", "test-secret")
	defer os.Unsetenv("STORAGE_SECRET")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.True(t, cfg.Online)
	assert.Equal(t, 600, cfg.StuckThresholdSeconds)
	assert.Equal(t, 7, cfg.JanitorIdleDays)
}

func TestDirsUnderRoot(t *testing.T) {
	os.Setenv("STORAGE_SECRET", "test-secret")
	os.Setenv("ROOT", "/srv/cobblepod")
	defer os.Unsetenv("STORAGE_SECRET")
	defer os.Unsetenv("ROOT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/cobblepod/data/in", cfg.InDir())
	assert.Len(t, cfg.Dirs(), 4)
}
