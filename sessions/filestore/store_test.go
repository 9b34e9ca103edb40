package filestore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/HARD953/distribut-sub001/internal/errors"
	"github.com/HARD953/distribut-sub001/sessions"
	"github.com/HARD953/distribut-sub001/sessions/filestore"
	"github.com/HARD953/distribut-sub001/users"
	"github.com/stretchr/testify/require"
)

func testRecord() *sessions.Record {
	return &sessions.Record{
		Access:  "A1",
		Refresh: "R1",
		User: &users.SessionUser{
			ID:       7,
			Username: "alice",
			Profile: &users.Profile{Role: &users.Role{Name: "admin", Permissions: users.Permissions{
				users.CapDashboard: true,
				users.CapInventory: false,
			}}},
		},
	}
}

func newStore(t *testing.T, options ...filestore.Option) (*filestore.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s, err := filestore.New(path, options...)
	require.NoError(t, err)
	return s, path
}

func TestNewRequiresPath(t *testing.T) {
	_, err := filestore.New("")
	require.Error(t, err)
}

func TestLoadEmpty(t *testing.T) {
	s, _ := newStore(t)
	rec, err := s.Load()
	require.NoError(t, err)
	require.True(t, rec.Empty())
}

func TestSaveLoadClear(t *testing.T) {
	s, path := newStore(t)
	require.NoError(t, s.Save(testRecord()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	rec, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, "A1", rec.Access)
	require.Equal(t, "R1", rec.Refresh)
	require.Equal(t, "alice", rec.User.Username)
	require.True(t, rec.User.Can(users.CapDashboard))
	require.False(t, rec.User.Can(users.CapInventory))

	t.Run("save access keeps other slots", func(t *testing.T) {
		require.NoError(t, s.SaveAccess("A2"))
		rec, err := s.Load()
		require.NoError(t, err)
		require.Equal(t, "A2", rec.Access)
		require.Equal(t, "R1", rec.Refresh)
		require.NotNil(t, rec.User)
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		require.NoError(t, s.Clear())
		require.NoError(t, s.Clear())
		_, err := os.Stat(path)
		require.True(t, os.IsNotExist(err))
		rec, err := s.Load()
		require.NoError(t, err)
		require.True(t, rec.Empty())
	})
}

func TestCorruptUserSlotIsDropped(t *testing.T) {
	s, path := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(`{"access":"A1","user":"not-an-object"}`), 0o600))

	rec, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, "A1", rec.Access)
	require.Nil(t, rec.User)
}

func TestCorruptFile(t *testing.T) {
	s, path := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(`{{{`), 0o600))

	_, err := s.Load()
	require.Error(t, err)
}

func TestEncryptedStore(t *testing.T) {
	s, path := newStore(t, filestore.WithPassphrase("correct horse"))
	require.NoError(t, s.Save(testRecord()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "alice")
	require.NotContains(t, string(raw), "R1")

	rec, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, "alice", rec.User.Username)

	require.NoError(t, s.SaveAccess("A2"))

	t.Run("reopened with same passphrase", func(t *testing.T) {
		again, err := filestore.New(path, filestore.WithPassphrase("correct horse"))
		require.NoError(t, err)
		rec, err := again.Load()
		require.NoError(t, err)
		require.Equal(t, "A2", rec.Access)
		require.Equal(t, "R1", rec.Refresh)
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		wrong, err := filestore.New(path, filestore.WithPassphrase("battery staple"))
		require.NoError(t, err)
		_, err = wrong.Load()
		require.ErrorIs(t, err, errors.ErrDecrypt)
	})

	t.Run("no passphrase", func(t *testing.T) {
		plain, err := filestore.New(path)
		require.NoError(t, err)
		_, err = plain.Load()
		require.ErrorIs(t, err, errors.ErrDecrypt)
	})
}
