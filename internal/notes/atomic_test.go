package notes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	t.Run("creates new file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notes.json")
		require.NoError(t, writeFileAtomic(path, []byte("hello"), 0o644))

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, "hello", string(got))
	})

	t.Run("overwrites and leaves no temp files", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "notes.json")
		require.NoError(t, os.WriteFile(path, []byte("old"), 0o644))
		require.NoError(t, writeFileAtomic(path, []byte("new"), 0o600))

		got, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, "new", string(got))

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		for _, e := range entries {
			require.False(t, strings.HasPrefix(e.Name(), tempFilePrefix), e.Name())
		}
	})

	t.Run("fails if directory missing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "notes.json")
		require.Error(t, writeFileAtomic(path, []byte("x"), 0o644))
	})
}

func TestSyncDir(t *testing.T) {
	require.NoError(t, syncDir(t.TempDir()))
	require.Error(t, syncDir(filepath.Join(t.TempDir(), "missing")))
}
