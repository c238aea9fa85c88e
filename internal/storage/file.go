package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/felixgeelhaar/okr/internal/errors"
)

// FileStore persists entries as a single JSON document.
// Every mutation rewrites the file through a temp file and rename, mode 0600.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileStore returns a store backed by path. The parent directory is created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the backing file.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) load() (map[string]entry, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return make(map[string]entry), nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageRead, fmt.Sprintf("failed to read %s", f.path), err)
	}
	entries := make(map[string]entry)
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageCorrupt, fmt.Sprintf("failed to parse %s", f.path), err).
			WithSuggestion(fmt.Sprintf("Delete %s to reset local state", f.path))
	}
	return entries, nil
}

func (f *FileStore) save(entries map[string]entry) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "failed to create state directory", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "failed to encode state", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".state-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write state", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to set state permissions", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to close state", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to replace state", err)
	}
	return nil
}

// Get retrieves a value by key. Expired entries are dropped lazily on the next write.
func (f *FileStore) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return "", false, err
	}
	e, ok := entries[key]
	if !ok || e.expired(f.now()) {
		return "", false, nil
	}
	return e.Value, true, nil
}

// Set saves a value.
func (f *FileStore) Set(key, value string) error {
	return f.SetTTL(key, value, 0)
}

// SetTTL saves a value that expires after ttl.
func (f *FileStore) SetTTL(key, value string, ttl time.Duration) error {
	if key == "" {
		return errors.New(errors.ErrCodeStorageWrite, "storage key cannot be empty")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	entries[key] = newEntry(value, ttl, f.now())
	return f.save(entries)
}

// Remove deletes keys. The file is not touched when none of them exist.
func (f *FileStore) Remove(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := entries[k]; ok {
			delete(entries, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return f.save(entries)
}

// Cleanup removes expired entries.
func (f *FileStore) Cleanup(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := f.load()
	if err != nil {
		return 0, err
	}
	count := 0
	now := f.now()
	for k, e := range entries {
		if e.expired(now) {
			delete(entries, k)
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	return count, f.save(entries)
}

// Scoped wraps a Store so every Set expires after a fixed TTL.
// It stands in for per-tab session storage.
type Scoped struct {
	Store
	ttl time.Duration
}

// NewScoped returns a Store whose Set calls expire after ttl.
func NewScoped(inner Store, ttl time.Duration) *Scoped {
	return &Scoped{Store: inner, ttl: ttl}
}

// Set saves a value with the scope TTL.
func (s *Scoped) Set(key, value string) error {
	return s.Store.SetTTL(key, value, s.ttl)
}

// Compile-time verification that stores implement Store
var _ Store = (*MemoryStore)(nil)
var _ Store = (*FileStore)(nil)
var _ Store = (*Scoped)(nil)
