// Package storage resolves request-supplied paths against a fixed root and
// streams objects in and out of it. Two backends exist: a local directory
// and an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the named object does not exist or is
	// not a regular file.
	ErrNotFound = errors.New("storage: not found")
	// ErrOutsideRoot is returned when a name resolves outside the store root.
	ErrOutsideRoot = errors.New("storage: path escapes root")
)

// copyBufferSize bounds every chunk moved between a request body and a store.
const copyBufferSize = 32 << 10

// Object is an open, seekable object. Callers must Close it.
type Object interface {
	io.ReadSeeker
	io.Closer
}

// Info describes an opened object.
type Info struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store reads and writes objects addressed by slash-separated relative names.
type Store interface {
	// Open returns the object for reading.
	Open(ctx context.Context, name string) (Object, Info, error)
	// Put streams r into name, replacing any previous content. size is the
	// expected length or -1 when unknown. It returns the bytes written.
	Put(ctx context.Context, name string, r io.Reader, size int64) (int64, error)
}

// CleanPath canonicalises a request-supplied name into a local, slash
// separated relative path. Leading slashes are ignored. Names that would
// climb above the root return ErrOutsideRoot; names that reduce to the
// root itself return ErrNotFound.
func CleanPath(name string) (string, error) {
	if strings.IndexByte(name, 0) >= 0 || strings.ContainsRune(name, '\\') {
		return "", ErrOutsideRoot
	}
	rel := path.Clean(strings.TrimLeft(name, "/"))
	switch {
	case rel == ".":
		return "", ErrNotFound
	case rel == "..", strings.HasPrefix(rel, "../"):
		return "", ErrOutsideRoot
	}
	if !filepath.IsLocal(filepath.FromSlash(rel)) {
		return "", ErrOutsideRoot
	}
	return rel, nil
}

// CopyChunked copies r to w through a fixed buffer. The anonymous wrappers
// hide ReaderFrom/WriterTo so no implementation can bypass the bound.
func CopyChunked(w io.Writer, r io.Reader) (int64, error) {
	return io.CopyBuffer(struct{ io.Writer }{w}, struct{ io.Reader }{r}, make([]byte, copyBufferSize))
}
