package store

import (
	"sort"
	"sync"

	"github.com/stevemurr/reactive-docstore/jsonv"
)

// MemoryBackend keeps everything in memory. Data is lost when the process
// exits. Safe for concurrent use.
type MemoryBackend struct {
	mu          sync.RWMutex
	collections map[string]map[string]jsonv.Value
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		collections: make(map[string]map[string]jsonv.Value),
	}
}

func (m *MemoryBackend) GetAll(collection string) (map[string]jsonv.Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, ok := m.collections[collection]
	if !ok {
		return map[string]jsonv.Value{}, nil
	}
	result := make(map[string]jsonv.Value, len(coll))
	for k, v := range coll {
		result[k] = v.Clone()
	}
	return result, nil
}

func (m *MemoryBackend) Get(collection, key string) (jsonv.Value, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll, ok := m.collections[collection]
	if !ok {
		return jsonv.Value{}, false, nil
	}
	doc, ok := coll[key]
	if !ok {
		return jsonv.Value{}, false, nil
	}
	return doc.Clone(), true, nil
}

func (m *MemoryBackend) Put(collection, key string, doc jsonv.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection]; !ok {
		m.collections[collection] = make(map[string]jsonv.Value)
	}
	m.collections[collection][key] = doc.Clone()
	return nil
}

func (m *MemoryBackend) Delete(collection, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.collections[collection]
	if !ok {
		return false, nil
	}
	if _, exists := coll[key]; !exists {
		return false, nil
	}
	delete(coll, key)
	return true, nil
}

func (m *MemoryBackend) ListCollections() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for name, docs := range m.collections {
		if len(docs) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryBackend) Close() error {
	return nil
}
