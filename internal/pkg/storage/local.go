package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"strings"
)

// LocalAdapter implements Storage on a directory. Keys are slash-separated paths
// confined to the root; ".." cannot escape it.
type LocalAdapter struct {
	root *os.Root
}

// LocalOptions configures the filesystem backend.
type LocalOptions struct {
	// Root is the directory holding the objects. It is created when missing.
	Root string
}

// NewLocal opens (creating if needed) the root directory.
func NewLocal(opts LocalOptions) (*LocalAdapter, error) {
	dir := strings.TrimSpace(opts.Root)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	return &LocalAdapter{root: root}, nil
}

// Put writes r to key, creating parent directories.
func (l *LocalAdapter) Put(_ context.Context, key string, r io.Reader, opts PutOptions) (ObjectInfo, error) {
	key = cleanKey(key)
	if dir := path.Dir(key); dir != "." {
		if err := l.root.MkdirAll(dir, 0o750); err != nil {
			return ObjectInfo{}, err
		}
	}

	f, err := l.root.Create(key)
	if err != nil {
		return ObjectInfo{}, err
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = l.root.Remove(key)
		return ObjectInfo{}, err
	}

	return ObjectInfo{Key: key, Size: n, ContentType: opts.ContentType, Metadata: opts.Metadata}, nil
}

// Open returns the file at key.
func (l *LocalAdapter) Open(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	key = cleanKey(key)
	f, err := l.root.Open(key)
	if err != nil {
		return nil, ObjectInfo{}, localErr(err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ObjectInfo{}, err
	}
	return f, localInfo(key, st), nil
}

// Stat returns metadata for the file at key.
func (l *LocalAdapter) Stat(_ context.Context, key string) (ObjectInfo, error) {
	key = cleanKey(key)
	st, err := l.root.Stat(key)
	if err != nil {
		return ObjectInfo{}, localErr(err)
	}
	return localInfo(key, st), nil
}

// Delete removes the file at key.
func (l *LocalAdapter) Delete(_ context.Context, key string) error {
	if err := l.root.Remove(cleanKey(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Close releases the root handle.
func (l *LocalAdapter) Close() error {
	return l.root.Close()
}

func cleanKey(key string) string {
	return strings.TrimPrefix(path.Clean("/"+key), "/")
}

func localErr(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrObjectNotFound
	}
	return err
}

func localInfo(key string, st fs.FileInfo) ObjectInfo {
	return ObjectInfo{
		Key:         key,
		Size:        st.Size(),
		ContentType: mime.TypeByExtension(path.Ext(key)),
		UpdatedAt:   st.ModTime(),
	}
}
