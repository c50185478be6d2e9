package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/entisync/internal/core/ecs"
)

var _ Store = (*FileStore)(nil)

type fileDocument struct {
	UserID   string                       `yaml:"user_id"`
	Entities map[ecs.EntityID]SavedEntity `yaml:"entities"`
}

// FileStore keeps the whole document in memory and rewrites the YAML file
// on every change.
type FileStore struct {
	mu   sync.Mutex
	path string
	mem  *MemoryStore
}

// OpenFile loads path if it exists.
func OpenFile(path string) (*FileStore, error) {
	f := &FileStore{path: path, mem: NewMemoryStore()}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("read store: %w", err)
	}

	var doc fileDocument
	if err = yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode store %s: %w", path, err)
	}
	f.mem.userID = doc.UserID
	for id, e := range doc.Entities {
		f.mem.entities[id] = e
	}
	return f, nil
}

func (f *FileStore) GetEntity(id ecs.EntityID) (SavedEntity, bool, error) {
	return f.mem.GetEntity(id)
}

func (f *FileStore) UpdateEntity(id ecs.EntityID, data SavedEntity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.mem.UpdateEntity(id, data)
	return f.flush()
}

func (f *FileStore) ClearEntities(keep []ecs.EntityID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.mem.ClearEntities(keep)
	return f.flush()
}

func (f *FileStore) SetUserID(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.mem.SetUserID(id)
	return f.flush()
}

func (f *FileStore) UserID() string {
	return f.mem.UserID()
}

func (f *FileStore) flush() error {
	f.mem.mu.RLock()
	doc := fileDocument{UserID: f.mem.userID, Entities: f.mem.entities}
	data, err := yaml.Marshal(doc)
	f.mem.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "" {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}
	tmp := f.path + ".tmp"
	if err = os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	return os.Rename(tmp, f.path)
}
