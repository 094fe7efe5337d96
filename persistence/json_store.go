package persistence

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"burrow/server/models"
)

// JSONStore handles data persistence using a local JSON file. Records are kept
// encoded so callers never share memory with the store.
type JSONStore struct {
	filePath string
	mutex    sync.RWMutex
	data     *JSONData
	names    map[string]string // walker name -> id
}

// JSONData represents the structure of the JSON database
type JSONData struct {
	Walkers map[string]json.RawMessage `json:"walkers"`
	Worlds  map[string]json.RawMessage `json:"worlds"`
}

// NewJSONStore creates a new JSON storage manager
func NewJSONStore(filePath string) (*JSONStore, error) {
	store := &JSONStore{
		filePath: filePath,
		data: &JSONData{
			Walkers: make(map[string]json.RawMessage),
			Worlds:  make(map[string]json.RawMessage),
		},
		names: make(map[string]string),
	}

	if _, err := os.Stat(filePath); err == nil {
		if err := store.loadFromFile(); err != nil {
			return nil, fmt.Errorf("load JSON store: %w", err)
		}
	} else {
		if dir := filepath.Dir(filePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		store.mutex.Lock()
		err := store.saveLocked()
		store.mutex.Unlock()
		if err != nil {
			return nil, fmt.Errorf("create JSON store file: %w", err)
		}
	}

	return store, nil
}

func (js *JSONStore) loadFromFile() error {
	js.mutex.Lock()
	defer js.mutex.Unlock()

	file, err := os.ReadFile(js.filePath)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(file, js.data); err != nil {
		return err
	}
	if js.data.Walkers == nil {
		js.data.Walkers = make(map[string]json.RawMessage)
	}
	if js.data.Worlds == nil {
		js.data.Worlds = make(map[string]json.RawMessage)
	}
	for id, raw := range js.data.Walkers {
		var w models.Walker
		if err := json.Unmarshal(raw, &w); err != nil {
			return fmt.Errorf("walker %s: %w", id, err)
		}
		js.names[w.Name] = id
	}
	return nil
}

// saveLocked writes through a temp file so a crash never leaves a torn database.
func (js *JSONStore) saveLocked() error {
	data, err := json.MarshalIndent(js.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := js.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, js.filePath)
}

// SaveWalker saves a walker to the store
func (js *JSONStore) SaveWalker(walker *models.Walker) error {
	raw, err := json.Marshal(walker)
	if err != nil {
		return fmt.Errorf("marshal walker %s: %w", walker.ID, err)
	}

	js.mutex.Lock()
	defer js.mutex.Unlock()
	js.data.Walkers[walker.ID] = raw
	js.names[walker.Name] = walker.ID
	return js.saveLocked()
}

// LoadWalker loads a walker by ID
func (js *JSONStore) LoadWalker(id string) (*models.Walker, error) {
	js.mutex.RLock()
	raw, exists := js.data.Walkers[id]
	js.mutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("walker %s: %w", id, ErrNotFound)
	}
	return decodeWalker(raw)
}

// LoadWalkerByName loads a walker by name
func (js *JSONStore) LoadWalkerByName(name string) (*models.Walker, error) {
	js.mutex.RLock()
	id, exists := js.names[name]
	js.mutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("walker named %q: %w", name, ErrNotFound)
	}
	return js.LoadWalker(id)
}

// ListWalkers returns every stored walker ordered by name.
func (js *JSONStore) ListWalkers() ([]*models.Walker, error) {
	js.mutex.RLock()
	raws := make([]json.RawMessage, 0, len(js.data.Walkers))
	for _, raw := range js.data.Walkers {
		raws = append(raws, raw)
	}
	js.mutex.RUnlock()

	walkers := make([]*models.Walker, 0, len(raws))
	for _, raw := range raws {
		w, err := decodeWalker(raw)
		if err != nil {
			return nil, err
		}
		walkers = append(walkers, w)
	}
	sort.Slice(walkers, func(i, j int) bool { return walkers[i].Name < walkers[j].Name })
	return walkers, nil
}

// SaveWorld saves a world to the store
func (js *JSONStore) SaveWorld(name string, gameMap *models.GameMap) error {
	raw, err := json.Marshal(gameMap)
	if err != nil {
		return fmt.Errorf("marshal world %s: %w", name, err)
	}

	js.mutex.Lock()
	defer js.mutex.Unlock()
	js.data.Worlds[name] = raw
	return js.saveLocked()
}

// LoadWorld loads a world by name
func (js *JSONStore) LoadWorld(name string) (*models.GameMap, error) {
	js.mutex.RLock()
	raw, exists := js.data.Worlds[name]
	js.mutex.RUnlock()
	if !exists {
		return nil, fmt.Errorf("world %s: %w", name, ErrNotFound)
	}

	var m models.GameMap
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode world %s: %w", name, err)
	}
	return &m, nil
}

// Close closes the store (no-op for JSON store)
func (js *JSONStore) Close() error {
	return nil
}

func decodeWalker(raw []byte) (*models.Walker, error) {
	var w models.Walker
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode walker: %w", err)
	}
	return &w, nil
}
