package store

import (
	"context"
	"sync"
)

// Memory is a process-local Store used by tests and dry runs.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[int64]Document
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[int64]Document)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, collection string, id int64) (Document, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, false, nil
	}
	return doc.Clone(), true, nil
}

// Save implements Store.
func (m *Memory) Save(_ context.Context, rec Record) error {
	collection, id := rec.CollectionName(), rec.RecordID()

	m.mu.Lock()
	defer m.mu.Unlock()

	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[int64]Document)
		m.collections[collection] = docs
	}

	if existing, found := docs[id]; found {
		update, err := rec.UpdateDocument()
		if err != nil {
			return storageErr("update", collection, id, err)
		}
		docs[id] = mergeInto(existing.Clone(), update)
		return nil
	}

	doc, err := rec.Document()
	if err != nil {
		return storageErr("insert", collection, id, err)
	}
	doc = doc.Clone()
	doc["id"] = id
	docs[id] = doc
	return nil
}

// Put stores doc verbatim, replacing any previous document.
func (m *Memory) Put(collection string, id int64, doc Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[int64]Document)
		m.collections[collection] = docs
	}
	doc = doc.Clone()
	doc["id"] = id
	docs[id] = doc
}

// Count returns the number of documents held in collection.
func (m *Memory) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

// Ping implements Store.
func (m *Memory) Ping(context.Context) error { return nil }

// Close implements Store.
func (m *Memory) Close(context.Context) error { return nil }
