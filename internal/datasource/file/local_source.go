// Package file implements filesystem-backed record sources: discovery of
// record files under source folders and opening them for parsing.
package file

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// Local opens one file from a filesystem.
type Local struct {
	fs   afero.Fs
	path string
}

// NewLocal returns a Local bound to path on fsys. A nil fsys means the OS
// filesystem.
func NewLocal(fsys afero.Fs, path string) *Local {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Local{fs: fsys, path: path}
}

// Path returns the bound path.
func (l *Local) Path() string { return l.path }

// Open opens the bound path for reading.
//
// If ctx is already done, Open returns ctx.Err() without touching the
// filesystem. Filesystem errors are wrapped with the path and still match
// errors.Is(err, fs.ErrNotExist) and friends.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	f, err := l.fs.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}
	return f, nil
}
