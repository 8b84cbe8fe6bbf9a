package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMigration(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
}

func TestListMigrationFilesOrdersBySequence(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0002_oauth_accounts.up.sql")
	writeMigration(t, dir, "0001_init.up.sql")
	writeMigration(t, dir, "notes.txt")

	files, err := listMigrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.up.sql", "0002_oauth_accounts.up.sql"}, files)
}

func TestListMigrationFilesRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "init.up.sql")

	_, err := listMigrationFiles(dir)
	assert.ErrorContains(t, err, "does not match")
}

func TestListMigrationFilesRejectsDuplicateSequence(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0001_init.up.sql")
	writeMigration(t, dir, "0001_users.up.sql")

	_, err := listMigrationFiles(dir)
	assert.ErrorContains(t, err, "share sequence number")
}
