package datastore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type item struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func open(t *testing.T, path string, opts Options) *Store {
	t.Helper()
	s, err := Open(path, opts)
	require.NoError(t, err)
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := open(t, filepath.Join(t.TempDir(), "db.json"), Options{})
	defer s.Close()

	require.NoError(t, s.Put("a", item{Name: "x", Count: 2}))

	var got item
	ok, err := s.Get("a", &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, item{Name: "x", Count: 2}, got)

	ok, err = s.Get("missing", &got)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCloseFlushesAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "db.json")
	s := open(t, path, Options{AutoSave: time.Hour})
	require.NoError(t, s.Put("b", item{Name: "y"}))
	require.NoError(t, s.Put("a", item{Name: "z"}))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.ErrorIs(t, s.Put("c", item{}), ErrClosed)
	require.ErrorIs(t, s.Flush(), ErrClosed)

	s = open(t, path, Options{})
	defer s.Close()
	require.Equal(t, []string{"a", "b"}, s.Keys())

	var got item
	_, err := s.Get("a", &got)
	require.NoError(t, err)
	require.Equal(t, "z", got.Name)
}

func TestMemoryLimitRejectsWrite(t *testing.T) {
	s := open(t, filepath.Join(t.TempDir(), "db.json"), Options{MaxBytes: 16})
	defer s.Close()

	require.ErrorIs(t, s.Put("k", item{Name: "much too long for the limit"}), ErrMemoryLimit)
	require.Empty(t, s.Keys())
}

func TestBackupsAreRotated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	s := open(t, path, Options{Backups: 2, AutoSave: time.Hour})
	defer s.Close()

	for i := range 5 {
		require.NoError(t, s.Put("k", item{Count: i}))
		require.NoError(t, s.Flush())
		time.Sleep(5 * time.Millisecond)
	}
	backups, err := filepath.Glob(path + ".backup.*")
	require.NoError(t, err)
	require.Len(t, backups, 2)

	tmps, err := filepath.Glob(path + ".*.tmp")
	require.NoError(t, err)
	require.Empty(t, tmps)
}

func TestInvalidFileFailsToLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))
	_, err := Open(path, Options{})
	require.Error(t, err)
}
