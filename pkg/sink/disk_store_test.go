package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskImageStore_SaveImage(t *testing.T) {
	root := t.TempDir()
	d := NewDiskImageStore(root)

	rel, err := d.SaveImage("12", "2024-03-11_08-05.jpg", []byte{0xff, 0xd8})
	require.NoError(t, err)
	assert.Equal(t, "12/2024-03-11_08-05.jpg", rel)

	b, err := os.ReadFile(filepath.Join(root, "12", "2024-03-11_08-05.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, b)

	entries, err := os.ReadDir(filepath.Join(root, "12"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestDiskImageStore_Unwritable(t *testing.T) {
	root := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(root, nil, 0o600))

	_, err := NewDiskImageStore(root).SaveImage("12", "a.jpg", []byte{1})
	assert.ErrorIs(t, err, SinkWriteErr)
}
