package config_test

import (
	"log/slog"
	"testing"

	"github.com/nysage/atlas/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestNewOperationalStore_EmptyPathUsesDefaults(t *testing.T) {
	t.Parallel()
	store := config.NewOperationalStore("", slog.Default())

	snap := store.Snapshot()

	assert.Equal(t, 100, snap.CacheBufferSize)
	assert.Equal(t, 3, snap.BatchConcurrency)
	assert.InDelta(t, 50.0, snap.ProximityThreshold, 0.001)
}

func TestNewOperationalStore_UnreadablePathFallsBackToDefaults(t *testing.T) {
	t.Parallel()
	store := config.NewOperationalStore("/nonexistent/path/atlas.yaml", slog.Default())

	snap := store.Snapshot()

	assert.NotNil(t, snap)
	assert.Equal(t, 100, snap.CacheBufferSize)
}
