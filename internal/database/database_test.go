package database

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestNewDB_Error(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "db_err")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	logger := zerolog.New(io.Discard)
	_, err = NewDB(tmpDir, &logger)
	assert.Error(t, err)
}

func TestNewDB_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "twice.db")
	logger := zerolog.Nop()

	first, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer second.Close()
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, db.PingContext(context.Background()))
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "a.db?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on", dsn("a.db"))
	assert.Equal(t, "a.db?cache=shared&_txlock=immediate&_busy_timeout=5000&_foreign_keys=on", dsn("a.db?cache=shared"))
}

func TestClosedDB_ReturnsErrors(t *testing.T) {
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	db.Close()

	ctx := context.Background()
	_, err = db.ListAppointments(ctx, "demo", 10)
	assert.Error(t, err)
	_, err = db.ListOrders(ctx, "demo", 10)
	assert.Error(t, err)
	_, err = db.ListMessages(ctx, "demo", 10)
	assert.Error(t, err)
	_, err = db.GetPendingNotifications(ctx, 10)
	assert.Error(t, err)
}
