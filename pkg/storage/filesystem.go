package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// FilesystemStorage implements the Storage interface for interacting with
// the local filesystem.
type FilesystemStorage struct {
	Config Config
}

// NewFilesystemStorage implements the Storage interface for simple S3 like
// file system interactions.
func NewFilesystemStorage(config Config) FilesystemStorage {
	return FilesystemStorage{
		Config: config,
	}
}

// Write writes the data to the key. The file is written to a temporary name and renamed so that
// readers never see a partial document.
func (f FilesystemStorage) Write(ctx context.Context, key string, body []byte,
	options *Options) error {

	if options == nil {
		opts := NewOptions()
		options = &opts
	}

	filename := f.buildPath(key)

	if err := f.ensureExists(path.Dir(filepath.ToSlash(filename)), options); err != nil {
		return err
	}

	var mode os.FileMode = 0644
	if options.Mode != 0 {
		mode = options.Mode
	}

	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, body, mode); err != nil {
		return errors.Wrapf(err, "write %s", key)
	}

	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "rename %s", key)
	}

	return nil
}

// Read reads the data from a file on the local filesystem.
func (f FilesystemStorage) Read(ctx context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(f.buildPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "read %s", key)
	}

	return b, nil
}

// Remove removes the object stored at key.
func (f FilesystemStorage) Remove(ctx context.Context, key string) error {
	if err := os.Remove(f.buildPath(key)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return errors.Wrapf(err, "remove %s", key)
	}

	return nil
}

// Search returns all objects directly under query["path"], which can be empty.
func (f FilesystemStorage) Search(ctx context.Context,
	query map[string]string) ([][]byte, error) {

	keys, err := f.List(ctx, query["path"])
	if err != nil {
		return nil, err
	}

	objects := [][]byte{}
	for _, key := range keys {
		b, err := f.Read(ctx, key)
		if err != nil {
			return nil, err
		}

		objects = append(objects, b)
	}

	return objects, nil
}

// List returns the keys of the files directly under the path, sorted.
func (f FilesystemStorage) List(ctx context.Context, p string) ([]string, error) {
	dir := f.buildPath(p)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.Wrapf(err, "list %s", p)
	}

	keys := []string{}
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}

		if len(p) == 0 {
			keys = append(keys, e.Name())
		} else {
			keys = append(keys, strings.TrimSuffix(p, "/")+"/"+e.Name())
		}
	}

	sort.Strings(keys)
	return keys, nil
}

func (f FilesystemStorage) buildPath(key string) string {
	parts := []string{
		f.Config.Root,
		f.Config.Bucket,
	}

	if len(key) > 0 {
		parts = append(parts, key)
	}

	return filepath.FromSlash(strings.Join(parts, "/"))
}

func (f FilesystemStorage) ensureExists(dir string, options *Options) error {
	if options == nil {
		opts := NewOptions()
		options = &opts
	}

	mode := options.DirMode
	if mode == 0 {
		mode = 0755
	}

	if err := os.MkdirAll(filepath.FromSlash(dir), mode); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}

	return nil
}
