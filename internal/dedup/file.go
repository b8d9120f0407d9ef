package dedup

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

type fileEntry struct {
	Key    string    `json:"key"`
	SeenAt time.Time `json:"seen_at"`
}

// FileStore persists fingerprints as a JSON array in insertion order.
type FileStore struct {
	path     string
	capacity int

	mu      sync.RWMutex
	entries []fileEntry
	index   map[string]struct{}
}

// NewFileStore creates a store backed by path. capacity <= 0 uses
// DefaultCapacity.
func NewFileStore(path string, capacity int) *FileStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &FileStore{
		path:     path,
		capacity: capacity,
		index:    make(map[string]struct{}),
	}
}

// Load reads the persisted set. A missing or corrupt file starts the set
// empty; that is a warning, never a failure.
func (fs *FileStore) Load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.entries = nil
	fs.index = make(map[string]struct{})

	data, err := os.ReadFile(fs.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("dedup state unreadable, starting empty", "path", fs.path, "error", err)
		}
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var entries []fileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		slog.Warn("dedup state corrupt, starting empty", "path", fs.path, "error", err)
		return nil
	}

	for _, e := range entries {
		if e.Key == "" {
			continue
		}
		if _, dup := fs.index[e.Key]; dup {
			continue
		}
		fs.entries = append(fs.entries, e)
		fs.index[e.Key] = struct{}{}
	}
	return nil
}

// Has reports whether key is in the set.
func (fs *FileStore) Has(key string) bool {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, ok := fs.index[key]
	return ok
}

// MarkSeen appends key to the set. Re-marking a known key is a no-op.
func (fs *FileStore) MarkSeen(key string) error {
	if key == "" {
		return fmt.Errorf("empty dedup key")
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, ok := fs.index[key]; ok {
		return nil
	}
	fs.entries = append(fs.entries, fileEntry{Key: key, SeenAt: time.Now().UTC()})
	fs.index[key] = struct{}{}
	return nil
}

// Save writes the set to disk, evicting the oldest entries beyond capacity.
func (fs *FileStore) Save() error {
	fs.mu.Lock()
	if over := len(fs.entries) - fs.capacity; over > 0 {
		for _, e := range fs.entries[:over] {
			delete(fs.index, e.Key)
		}
		fs.entries = append([]fileEntry(nil), fs.entries[over:]...)
	}
	data, err := json.MarshalIndent(fs.entries, "", "  ")
	fs.mu.Unlock()

	if err != nil {
		return fmt.Errorf("marshal dedup state: %w", err)
	}
	if err := os.WriteFile(fs.path, data, 0o644); err != nil {
		return fmt.Errorf("write dedup state: %w", err)
	}
	return nil
}

// Len returns the current in-memory set size.
func (fs *FileStore) Len() int {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return len(fs.entries)
}
