// Package store persists model and vectorizer blobs.
package store

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
)

// BlobStore is the interface for blob persistence. Keys are slash-separated
// paths such as "models/naive_bayes_model.json".
type BlobStore interface {
	// Put writes data under key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte) error

	// Get reads the value under key. A missing key is a NOT_FOUND error.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists checks if key holds a value.
	Exists(ctx context.Context, key string) (bool, error)

	// List returns the keys stored directly inside dir, sorted.
	List(ctx context.Context, dir string) ([]string, error)

	// Close releases resources.
	Close() error
}

// ValidateKey checks that key names a blob: it must not be empty, must not
// end with '/', and its last element must be a file name. Parent references
// in the directory part are allowed; stores rooted at a base path reject
// keys that climb out of it.
func ValidateKey(key string) error {
	if key == "" {
		return errors.ValidationError("blob key must not be empty")
	}
	if strings.HasSuffix(key, "/") {
		return errors.ValidationError(fmt.Sprintf("blob key %q must not end with '/'", key))
	}
	if base := path.Base(path.Clean(key)); base == "." || base == ".." || base == "/" {
		return errors.ValidationError(fmt.Sprintf("blob key %q does not name a blob", key))
	}
	return nil
}

func cleanDir(dir string) string {
	if dir == "" {
		return "."
	}
	return path.Clean(dir)
}

// MemoryStore stores blobs in memory (for testing).
type MemoryStore struct {
	blobs map[string][]byte
	mu    sync.RWMutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		blobs: make(map[string][]byte),
	}
}

func (m *MemoryStore) Put(_ context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Copy to avoid mutations
	m.blobs[path.Clean(key)] = slices.Clone(data)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.blobs[path.Clean(key)]
	if !exists {
		return nil, errors.NotFoundError(fmt.Sprintf("blob %s", key))
	}
	return slices.Clone(data), nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, path.Clean(key))
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.blobs[path.Clean(key)]
	return exists, nil
}

func (m *MemoryStore) List(_ context.Context, dir string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	dir = cleanDir(dir)
	var keys []string
	for key := range m.blobs {
		if path.Dir(key) == dir {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// FileStore stores blobs as files. Keys resolve against basePath and must
// stay inside it; with an empty basePath they resolve against the working
// directory, so "../models/nb_model.json" is a valid key.
type FileStore struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStore creates a new file-based store.
func NewFileStore(basePath string) *FileStore {
	return &FileStore{
		basePath: basePath,
	}
}

func (f *FileStore) blobPath(key string) (string, error) {
	p := filepath.Clean(filepath.FromSlash(key))
	if f.basePath == "" {
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", errors.StorageError("failed to resolve blob path", err)
		}
		return abs, nil
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	if p == ".." || strings.HasPrefix(p, ".."+string(filepath.Separator)) {
		return "", errors.ValidationError(fmt.Sprintf("blob key %q escapes the store root", key))
	}
	return filepath.Join(f.basePath, p), nil
}

func (f *FileStore) Put(_ context.Context, key string, data []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	target, err := f.blobPath(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return errors.StorageError("failed to create storage directory", err)
	}

	// Write through a temp file so readers never see a partial blob
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.StorageError("failed to write blob", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return errors.StorageError("failed to move blob into place", err)
	}

	return nil
}

func (f *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	p, err := f.blobPath(key)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(p)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NotFoundError(fmt.Sprintf("blob %s", key))
		}
		return nil, errors.StorageError("failed to read blob", err)
	}
	return data, nil
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	p, err := f.blobPath(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(p); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return errors.StorageError("failed to delete blob", err)
	}
	return nil
}

func (f *FileStore) Exists(_ context.Context, key string) (bool, error) {
	p, err := f.blobPath(key)
	if err != nil {
		return false, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	info, err := os.Stat(p)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, errors.StorageError("failed to stat blob", err)
	}
	return !info.IsDir(), nil
}

func (f *FileStore) List(_ context.Context, dir string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	dir = cleanDir(dir)
	p, err := f.blobPath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(p)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, errors.StorageError("failed to read storage directory", err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		keys = append(keys, path.Join(dir, entry.Name()))
	}
	slices.Sort(keys)
	return keys, nil
}

func (f *FileStore) Close() error {
	return nil
}
