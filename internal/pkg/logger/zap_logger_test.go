package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log.json")
	l := NewIsolatedLogger(path)

	l.Info("SyncService", "first", nil)
	l.Warn("SyncService", "second", map[string]interface{}{"cell_id": "c1"})
	l.Info("SyncService", "third", nil)
	l.Debug("SyncService", "below file level", nil)
	require.NoError(t, l.Sync())

	t.Run("newest first", func(t *testing.T) {
		logs, err := l.GetLogs("", 10, 0)
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.Equal(t, "third", logs[0].Message)
		assert.Equal(t, "first", logs[2].Message)
	})

	t.Run("level filter", func(t *testing.T) {
		logs, err := l.GetLogs("WARN", 10, 0)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "SyncService", logs[0].Module)
		assert.Equal(t, "c1", logs[0].Details["cell_id"])
	})

	t.Run("pagination", func(t *testing.T) {
		logs, err := l.GetLogs("", 1, 1)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, "second", logs[0].Message)

		logs, err = l.GetLogs("", 10, 5)
		require.NoError(t, err)
		assert.Empty(t, logs)
	})

	t.Run("lookup by id", func(t *testing.T) {
		logs, err := l.GetLogs("WARN", 1, 0)
		require.NoError(t, err)
		require.Len(t, logs, 1)

		found, err := l.GetLogById(logs[0].Id)
		require.NoError(t, err)
		assert.Equal(t, "second", found.Message)

		_, err = l.GetLogById("missing")
		assert.ErrorIs(t, err, ErrLogNotFound)
	})
}

func TestGetLogsMissingFile(t *testing.T) {
	l := NewIsolatedLogger(filepath.Join(t.TempDir(), "never-written.json"))

	logs, err := l.GetLogs("", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)

	logs, err = NewNopLogger().GetLogs("", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}
