package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"
)

// FSStore keeps objects under a local directory. All access goes through
// an os.Root, so symlinks cannot lead outside the directory either.
type FSStore struct {
	dir  string
	root *os.Root
}

// NewFSStore opens dir as a store root. When create is set, missing
// directories are created first.
func NewFSStore(dir string, create bool) (*FSStore, error) {
	if dir == "" {
		return nil, errors.New("storage: empty root directory")
	}
	if create {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create root %s: %w", dir, err)
		}
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open root %s: %w", dir, err)
	}
	return &FSStore{dir: dir, root: root}, nil
}

// Dir returns the directory the store was opened on.
func (s *FSStore) Dir() string { return s.dir }

// Close releases the root handle.
func (s *FSStore) Close() error { return s.root.Close() }

func (s *FSStore) Open(_ context.Context, name string) (Object, Info, error) {
	rel, err := CleanPath(name)
	if err != nil {
		return nil, Info{}, err
	}
	f, err := s.root.Open(rel)
	if err != nil {
		return nil, Info{}, notFound(err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, Info{}, notFound(err)
	}
	if !st.Mode().IsRegular() {
		_ = f.Close()
		return nil, Info{}, ErrNotFound
	}
	return f, Info{Name: rel, Size: st.Size(), ModTime: st.ModTime()}, nil
}

func (s *FSStore) Put(_ context.Context, name string, r io.Reader, _ int64) (int64, error) {
	rel, err := CleanPath(name)
	if err != nil {
		return 0, err
	}
	if err := s.mkdirAll(path.Dir(rel)); err != nil {
		return 0, err
	}
	f, err := s.root.Create(rel)
	if err != nil {
		return 0, mapFSError(err)
	}
	n, err := CopyChunked(f, r)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("write %s: %w", rel, err)
	}
	return n, nil
}

// mkdirAll creates each component of dir below the root.
func (s *FSStore) mkdirAll(dir string) error {
	if dir == "." {
		return nil
	}
	cur := ""
	for _, part := range strings.Split(dir, "/") {
		cur = path.Join(cur, part)
		err := s.root.Mkdir(cur, 0o755)
		if err == nil || errors.Is(err, fs.ErrExist) {
			continue
		}
		return fmt.Errorf("mkdir %s: %w", cur, mapFSError(err))
	}
	return nil
}

func mapFSError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

// notFound folds every open failure into ErrNotFound. Lexical escapes are
// caught earlier by CleanPath; what remains (symlinks leaving the root,
// permissions, special files) reads as a missing object.
func notFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrNotFound, err)
}
