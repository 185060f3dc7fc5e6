package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
}

func TestSweepRemovesOldFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "old.mp4"), 48*time.Hour)
	touch(t, filepath.Join(dir, "fresh.mp4"), time.Hour)

	removed := NewSweeper(dir, 24*time.Hour).Sweep()
	assert.Equal(t, 1, removed)

	_, err := os.Stat(filepath.Join(dir, "old.mp4"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "fresh.mp4"))
	assert.NoError(t, err)
}

func TestSweepRemovesAbandonedUploads(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, ".temp", "dead-upload", "0.chunk")
	touch(t, stale, 48*time.Hour)
	staleDir := filepath.Dir(stale)
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(staleDir, old, old))

	active := filepath.Join(dir, ".temp", "live-upload", "0.chunk")
	touch(t, active, time.Minute)

	removed := NewSweeper(dir, 24*time.Hour).Sweep()
	assert.Equal(t, 1, removed)

	_, err := os.Stat(staleDir)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(active)
	assert.NoError(t, err)
}

func TestSweepActiveUploadWithOneOldChunkSurvives(t *testing.T) {
	dir := t.TempDir()
	// first chunk arrived long ago, newest chunk is recent
	touch(t, filepath.Join(dir, ".temp", "resumed", "0.chunk"), 48*time.Hour)
	touch(t, filepath.Join(dir, ".temp", "resumed", "1.chunk"), time.Minute)

	removed := NewSweeper(dir, 24*time.Hour).Sweep()
	assert.Equal(t, 0, removed)
}

func TestSweepMissingDirIsQuiet(t *testing.T) {
	assert.Equal(t, 0, NewSweeper("/nonexistent/cache", time.Hour).Sweep())
}
