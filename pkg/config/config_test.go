package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", StorageDriverMemory)
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, PipelineModePermissive, cfg.Orders.PipelineMode)
	assert.False(t, cfg.StrictPipeline())
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
	assert.Equal(t, 10, cfg.Chat.MessageBurst)
}

func TestLoadRequiresProjectForFirestore(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", StorageDriverFirestore)
	t.Setenv("FIREBASE_PROJECT_ID", "")
	t.Setenv("CONFIG_FILE", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnknownPipelineMode(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", StorageDriverMemory)
	t.Setenv("ORDER_PIPELINE_MODE", "sideways")
	t.Setenv("CONFIG_FILE", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadAppliesYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("orders:\n  pipeline_mode: strict\nredis:\n  ttl: 5m\nlog:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("STORAGE_DRIVER", StorageDriverMemory)
	t.Setenv("ORDER_PIPELINE_MODE", PipelineModePermissive)
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.StrictPipeline())
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
}
