package sync

import (
	"fmt"
	"os"
	"path/filepath"
)

// BlobStore reads and writes the serialized dataset as a single local file.
// This is the synchronous fallback transport: no service dependency, the
// user moves the file themselves.
type BlobStore struct {
	path string
}

// NewBlobStore creates a blob transport writing to path.
func NewBlobStore(path string) *BlobStore {
	return &BlobStore{path: path}
}

// Write atomically replaces the blob with payload (temp file + rename).
func (b *BlobStore) Write(payload []byte) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return &TransportError{Transport: "blob", Op: "write", Err: err}
	}

	tmp, err := os.CreateTemp(dir, ".blob-*")
	if err != nil {
		return &TransportError{Transport: "blob", Op: "write", Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return &TransportError{Transport: "blob", Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &TransportError{Transport: "blob", Op: "write", Err: err}
	}

	if err := os.Rename(tmpName, b.path); err != nil {
		return &TransportError{Transport: "blob", Op: "write", Err: err}
	}
	return nil
}

// Read returns the current blob contents.
func (b *BlobStore) Read() ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return nil, &TransportError{Transport: "blob", Op: "read", Err: fmt.Errorf("reading blob: %w", err)}
	}
	return data, nil
}
