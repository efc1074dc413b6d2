package database

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"receptionist/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileDB(t *testing.T) (*DB, string) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	dbPath := filepath.Join(t.TempDir(), "source.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, dbPath
}

func TestBackupService(t *testing.T) {
	db, dbPath := newFileDB(t)
	book(t, db, "dental", "Ann", "555", slot(16, 10, 0), 30)

	storagePath := filepath.Join(t.TempDir(), "backups")
	logger := zerolog.Nop()
	s := NewBackupService(db, dbPath, config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(context.Background())
		require.NoError(t, err)
		assert.FileExists(t, path)

		logger := zerolog.Nop()
		restored, err := NewDB(path, &logger)
		require.NoError(t, err)
		defer restored.Close()
		n, err := restored.CountAppointments(context.Background(), "dental")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, backupPrefix+"old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		unrelated := filepath.Join(storagePath, "keep.txt")
		require.NoError(t, os.WriteFile(unrelated, []byte("x"), 0o644))

		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))
		require.NoError(t, os.Chtimes(unrelated, oldTime, oldTime))

		s.CleanupOldBackups()

		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, unrelated)
	})
}

func TestBackupService_Fallback(t *testing.T) {
	db, dbPath := newFileDB(t)
	logger := zerolog.Nop()
	s := NewBackupService(db, dbPath, config.BackupConfig{Enabled: true}, &logger)

	target := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, s.copyFile(target))
	assert.FileExists(t, target)
}

func TestBackupService_Loop(t *testing.T) {
	db, dbPath := newFileDB(t)
	logger := zerolog.Nop()
	storage := filepath.Join(t.TempDir(), "loop")
	s := NewBackupService(db, dbPath, config.BackupConfig{
		Enabled:     true,
		Schedule:    "10ms",
		StoragePath: storage,
	}, &logger)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	files, err := os.ReadDir(storage)
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}

func TestBackupService_DirectoryError(t *testing.T) {
	db, dbPath := newFileDB(t)
	tmpFile, err := os.CreateTemp(t.TempDir(), "notadir")
	require.NoError(t, err)
	tmpFile.Close()

	logger := zerolog.Nop()
	s := NewBackupService(db, dbPath, config.BackupConfig{Enabled: true, StoragePath: tmpFile.Name() + "/subdir"}, &logger)
	_, err = s.PerformBackup(context.Background())
	assert.Error(t, err)
}

func TestBackupService_Disabled(_ *testing.T) {
	logger := zerolog.Nop()
	s := NewBackupService(nil, "any", config.BackupConfig{Enabled: false}, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Start(ctx)
}
