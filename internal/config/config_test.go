package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, "http://localhost:11434", cfg.Model.BaseURL)
	require.Equal(t, 5*time.Minute, cfg.Activity.SampleInterval)
	require.Equal(t, 64, cfg.Memory.CacheEntries)
	require.Equal(t, 30*time.Minute, cfg.Memory.CacheTTL)
	require.Equal(t, 20, cfg.Memory.MaxTurns)
	require.True(t, cfg.Proactive.Enabled)
}

func TestLoad_SeedsMissingFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "llama3.2", cfg.Model.Name)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(home, ".wisp", "config.yaml"))
	require.NoError(t, err, "defaults should be persisted for the next run")
}
