package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportArchiveSaveAndPath(t *testing.T) {
	archive, err := NewExportArchive(t.TempDir())
	require.NoError(t, err)

	name, err := archive.Save("schedule-c1.csv", []byte("Day,Period\n1,1\n"))
	require.NoError(t, err)
	assert.Equal(t, "schedule-c1.csv", name)

	content, err := os.ReadFile(archive.Path("schedule-c1.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "Day,Period")
}

func TestExportArchiveSweepRemovesOnlyExpired(t *testing.T) {
	dir := t.TempDir()
	archive, err := NewExportArchive(dir)
	require.NoError(t, err)

	_, err = archive.Save("old.csv", []byte("stale"))
	require.NoError(t, err)
	_, err = archive.Save("fresh.csv", []byte("current"))
	require.NoError(t, err)

	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "old.csv"), past, past))

	removed, err := archive.Sweep(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(filepath.Join(dir, "old.csv"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "fresh.csv"))
	assert.NoError(t, err)
}
