package cache

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
)

// FileBackend stores one file per entry under <basedir>/<prefix>/<key>.
// Records are JSON indented by two spaces unless WithCodec says otherwise.
// Writes go to a temporary file that is renamed into place, so readers never
// see a partial entry.
type FileBackend struct {
	dir   string
	codec Codec
}

var _ Backend = (*FileBackend)(nil)

// NewFile returns a backend rooted at basedir/prefix, creating the directory
// if needed.
func NewFile(basedir, prefix string, opts ...BackendOption) (*FileBackend, error) {
	if basedir == "" {
		return nil, errors.Wrap(ErrInvalidConfig, "file backend: basedir is required")
	}
	cfg := applyBackendOptions(opts)
	dir := filepath.Join(basedir, prefix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "file backend: creating %s", dir)
	}
	return &FileBackend{dir: dir, codec: cfg.codecOr(JSONCodec{Indent: "  "})}, nil
}

// Dir returns the directory entries are written to.
func (f *FileBackend) Dir() string {
	return f.dir
}

func (f *FileBackend) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return "", errors.Wrapf(ErrInvalidKey, "file backend: %q", key)
	}
	return filepath.Join(f.dir, key), nil
}

func (f *FileBackend) Put(ctx context.Context, key string, entry *Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.path(key)
	if err != nil {
		return err
	}
	data, err := f.codec.Marshal(entry)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "file backend: creating temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "file backend: writing %s", key)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "file backend: writing %s", key)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrapf(err, "file backend: storing %s", key)
	}
	return nil
}

func (f *FileBackend) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := f.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "file backend: reading %s", key)
	}
	return f.codec.Unmarshal(data)
}

func (f *FileBackend) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := f.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "file backend: stat %s", key)
	}
	return true, nil
}

func (f *FileBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := f.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "file backend: deleting %s", key)
	}
	return nil
}

// Keys lists regular files in the directory, skipping dotfiles.
func (f *FileBackend) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirents, err := os.ReadDir(f.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "file backend: listing %s", f.dir)
	}
	keys := make([]string, 0, len(dirents))
	for _, d := range dirents {
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		keys = append(keys, d.Name())
	}
	slices.Sort(keys)
	return keys, nil
}
