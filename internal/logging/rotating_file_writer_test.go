package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWriter(t *testing.T, maxSize int64, maxBackups int) (*RotatingFileWriter, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "account.log")
	w, err := NewRotatingFileWriter(path, maxSize, maxBackups)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	clock := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return w, path
}

func listBackups(t *testing.T, path string) []string {
	t.Helper()

	matches, err := filepath.Glob(path + ".*")
	require.NoError(t, err)
	return matches
}

func TestRotateOnSizeLimit(t *testing.T) {
	w, path := testWriter(t, 10, 3)

	_, err := w.Write([]byte("0123456789"))
	require.NoError(t, err)
	// Next write exceeds the limit, so the full file becomes a backup.
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)

	backups := listBackups(t, path)
	require.Len(t, backups, 1)
	assert.True(t, strings.HasPrefix(filepath.Base(backups[0]), "account.log.2026"))

	moved, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(moved))

	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(current))
}

func TestPruneKeepsNewestBackups(t *testing.T) {
	w, path := testWriter(t, 4, 2)

	for i := 0; i < 5; i++ {
		_, err := w.Write([]byte("xxxx"))
		require.NoError(t, err)
	}

	backups := listBackups(t, path)
	assert.Len(t, backups, 2)
}

func TestZeroBackupsDiscardsOldLog(t *testing.T) {
	w, path := testWriter(t, 4, 0)

	_, err := w.Write([]byte("xxxx"))
	require.NoError(t, err)
	_, err = w.Write([]byte("yyyy"))
	require.NoError(t, err)

	assert.Empty(t, listBackups(t, path))
	current, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "yyyy", string(current))
}

func TestWriteAfterCloseFails(t *testing.T) {
	w, _ := testWriter(t, 10, 1)
	require.NoError(t, w.Close())

	_, err := w.Write([]byte("late"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
