package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"github.com/banshee-data/tracklets/internal/fsutil"
)

// ErrNotFound is returned by Store.Get for unknown keys.
var ErrNotFound = errors.New("cache entry not found")

// Store is a key-value blob store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, blob []byte) error
}

// FileStore keeps one file per key in Dir.
type FileStore struct {
	FS  fsutil.FileSystem
	Dir string
}

// NewFileStore returns a store writing into dir.
func NewFileStore(fsys fsutil.FileSystem, dir string) *FileStore {
	return &FileStore{FS: fsys, Dir: dir}
}

// Path returns the file that holds key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.Dir, key)
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := s.FS.ReadFile(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read cache %s: %w", key, err)
	}
	return data, nil
}

// Put writes to a temporary file and renames it over the target, so readers
// never see a partial blob.
func (s *FileStore) Put(_ context.Context, key string, blob []byte) error {
	if err := s.FS.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	path := s.Path(key)
	tmp := path + ".tmp"
	if err := s.FS.WriteFile(tmp, blob, 0644); err != nil {
		return fmt.Errorf("write cache %s: %w", key, err)
	}
	if err := s.FS.Rename(tmp, path); err != nil {
		_ = s.FS.Remove(tmp)
		return fmt.Errorf("commit cache %s: %w", key, err)
	}
	return nil
}

// Entry describes one stored blob without its payload.
type Entry struct {
	Key       string
	SizeBytes int64
}

// List returns the blobs in Dir ordered by key. Temporary files from an
// interrupted Put are skipped, and a missing Dir holds no entries.
func (s *FileStore) List(_ context.Context) ([]Entry, error) {
	if !s.FS.Exists(s.Dir) {
		return nil, nil
	}
	names, err := s.FS.Glob(filepath.Join(s.Dir, KeyPrefix+"*"+KeySuffix))
	if err != nil {
		return nil, fmt.Errorf("list cache dir %s: %w", s.Dir, err)
	}

	out := make([]Entry, 0, len(names))
	for _, name := range names {
		info, err := s.FS.Stat(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue // removed since Glob
		}
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		if info.IsDir() {
			continue
		}
		out = append(out, Entry{Key: filepath.Base(name), SizeBytes: info.Size()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes the blob for key. Deleting an unknown key is not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := s.FS.Remove(s.Path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete cache %s: %w", key, err)
	}
	return nil
}

// MemoryStore keeps blobs in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blob, ok := s.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), blob...), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), blob...)
	return nil
}

// Len returns the number of stored blobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
