package sqlitestore_test

import (
	"path/filepath"
	"testing"

	"github.com/HARD953/distribut-sub001/sessions"
	"github.com/HARD953/distribut-sub001/sessions/sqlitestore"
	"github.com/HARD953/distribut-sub001/users"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) (*sqlitestore.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.db")
	s, err := sqlitestore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := sqlitestore.Open("")
	require.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	s, path := openStore(t)

	rec, err := s.Load()
	require.NoError(t, err)
	require.True(t, rec.Empty())

	require.NoError(t, s.Save(&sessions.Record{
		Access:  "A1",
		Refresh: "R1",
		User:    &users.SessionUser{Username: "alice"},
	}))

	rec, err = s.Load()
	require.NoError(t, err)
	require.Equal(t, "A1", rec.Access)
	require.Equal(t, "R1", rec.Refresh)
	require.Equal(t, "alice", rec.User.Username)

	t.Run("save access alone", func(t *testing.T) {
		require.NoError(t, s.SaveAccess("A2"))
		rec, err := s.Load()
		require.NoError(t, err)
		require.Equal(t, "A2", rec.Access)
		require.Equal(t, "R1", rec.Refresh)
		require.NotNil(t, rec.User)
	})

	t.Run("survives reopen", func(t *testing.T) {
		again, err := sqlitestore.Open(path)
		require.NoError(t, err)
		defer again.Close()
		rec, err := again.Load()
		require.NoError(t, err)
		require.Equal(t, "A2", rec.Access)
	})

	t.Run("save without user drops the cached user", func(t *testing.T) {
		require.NoError(t, s.Save(&sessions.Record{Access: "A3", Refresh: "R3"}))
		rec, err := s.Load()
		require.NoError(t, err)
		require.Nil(t, rec.User)
	})

	t.Run("clear twice", func(t *testing.T) {
		require.NoError(t, s.Clear())
		require.NoError(t, s.Clear())
		rec, err := s.Load()
		require.NoError(t, err)
		require.True(t, rec.Empty())
	})
}
