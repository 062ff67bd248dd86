package userconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apricopt/zoro-web/internal/cli/auth"
)

func TestFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.json")
	f, err := NewFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path())

	_, ok, err := f.Get(auth.TokenKey)
	require.NoError(t, err, "missing file reads as empty")
	assert.False(t, ok)

	require.NoError(t, f.Set(auth.TokenKey, "abc"))
	require.NoError(t, f.Set(auth.TimestampKey, "1700000000000"))

	// A second handle sees what the first wrote
	reopened, err := NewFile(path)
	require.NoError(t, err)
	v, ok, err := reopened.Get(auth.TokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	require.NoError(t, reopened.Remove(auth.TokenKey))
	require.NoError(t, reopened.Remove(auth.TokenKey))

	_, ok, _ = f.Get(auth.TokenKey)
	assert.False(t, ok)
	v, _, _ = f.Get(auth.TimestampKey)
	assert.Equal(t, "1700000000000", v)
}

func TestFile_PrivatePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	f, err := NewFile(path)
	require.NoError(t, err)
	require.NoError(t, f.Set(auth.TokenKey, "secret"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFile_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	f, err := NewFile(path)
	require.NoError(t, err)

	_, _, err = f.Get(auth.TokenKey)
	assert.Error(t, err)
}

func TestDefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := DefaultPath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "zoro", "storage.json"), path)
}
