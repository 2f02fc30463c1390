package evaluator

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// Handle is an opaque reference to user-supplied input, resolvable to raw
// bytes plus a best-effort MIME type and display name.
type Handle interface {
	// Name returns a best-effort display name for the underlying content.
	Name() string
	// ContentType returns a best-effort MIME type, empty when unknown.
	ContentType() string
	// Open resolves the handle to its raw bytes. A failure here is fatal for
	// the submission using the handle.
	Open() (io.ReadCloser, error)
}

// LocalFile is a Handle backed by a file on disk.
type LocalFile struct {
	Path string
}

func (f LocalFile) Name() string {
	return filepath.Base(f.Path)
}

func (f LocalFile) ContentType() string {
	return mime.TypeByExtension(filepath.Ext(f.Path))
}

func (f LocalFile) Open() (io.ReadCloser, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFileResolution, err)
	}

	return file, nil
}
