package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobStore_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "export.json")
	b := NewBlobStore(path)

	require.NoError(t, b.Write([]byte(`{"data":[]}`)))

	got, err := b.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"data":[]}`), got)

	// Overwrite replaces, never appends.
	require.NoError(t, b.Write([]byte("v2")))
	got, err = b.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBlobStore_ReadMissing(t *testing.T) {
	t.Parallel()

	b := NewBlobStore(filepath.Join(t.TempDir(), "missing.json"))

	_, err := b.Read()
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "blob", terr.Transport)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
