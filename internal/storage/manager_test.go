package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dezexus/SubVision/internal/config"
)

func localManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(context.Background(), &config.Settings{S3Bucket: "test"})
	require.NoError(t, err)
	require.True(t, m.LocalOnly())
	return m
}

func TestLocalOnlyUploadIsNoop(t *testing.T) {
	m := localManager(t)
	assert.NoError(t, m.Upload(context.Background(), "/nonexistent/file", "key"))
}

func TestLocalOnlyDownloadChecksFile(t *testing.T) {
	m := localManager(t)
	path := filepath.Join(t.TempDir(), "cached.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	assert.NoError(t, m.Download(context.Background(), "key", path))
	assert.Error(t, m.Download(context.Background(), "key", path+".missing"))
}

func TestLocalOnlyPresignEmpty(t *testing.T) {
	m := localManager(t)
	url, err := m.PresignURL(context.Background(), "key")
	require.NoError(t, err)
	assert.Empty(t, url)
}
