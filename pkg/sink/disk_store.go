package sink

import (
	"fmt"
	"os"
	"path/filepath"
)

// DiskImageStore writes snapshots below a root directory.
type DiskImageStore struct {
	root string
}

var _ ImageStore = (*DiskImageStore)(nil)

func NewDiskImageStore(root string) *DiskImageStore {
	return &DiskImageStore{root: root}
}

// SaveImage writes data to root/dir/name and returns dir/name. The file is
// renamed into place so readers never see a partial image.
func (d *DiskImageStore) SaveImage(dir, name string, data []byte) (string, error) {
	target := filepath.Join(d.root, dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", SinkWriteErr, err)
	}

	tmp, err := os.CreateTemp(target, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", SinkWriteErr, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("%w: %v", SinkWriteErr, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", SinkWriteErr, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(target, name)); err != nil {
		return "", fmt.Errorf("%w: %v", SinkWriteErr, err)
	}
	return Path(filepath.ToSlash(dir), name), nil
}
