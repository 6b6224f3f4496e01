package credstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	_, err = s.Load()
	require.ErrorIs(t, err, ErrNotLoggedIn)

	require.NoError(t, s.Save(&Credentials{Server: "http://erp", Email: "ana@mutamba.com", RefreshToken: "rt"}))

	info, err := os.Stat(filepath.Join(dir, credentialsFile))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	creds, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, "rt", creds.RefreshToken)

	require.NoError(t, s.Delete())
	require.NoError(t, s.Delete())
	_, err = s.Load()
	require.ErrorIs(t, err, ErrNotLoggedIn)
}
