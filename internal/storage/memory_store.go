package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory ObjectStore used for dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*Object
	calls   MemoryCalls

	// FailPut, when set, is consulted before every Put; a non-nil return is
	// reported as the write error.
	FailPut func(obj *Object) error
}

// MemoryCalls tracks method invocations for test verification.
type MemoryCalls struct {
	Put    int
	Get    int
	Exists int
	Delete int
	List   int
}

// NewMemoryStore creates a new in-memory object store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]*Object)}
}

// Put stores an object and returns its content hash.
func (m *MemoryStore) Put(ctx context.Context, obj *Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Put++

	if m.FailPut != nil {
		if err := m.FailPut(obj); err != nil {
			return "", err
		}
	}

	hash := obj.Hash
	if hash == "" {
		h := sha256.Sum256(obj.Data)
		hash = hex.EncodeToString(h[:])
	}

	if existing, ok := m.objects[hash]; ok {
		existing.Metadata.RefCount++
		existing.Metadata.LastAccessed = time.Now()
		return hash, nil
	}

	now := time.Now()
	custom := make(map[string]string, len(obj.Metadata.Custom)+1)
	for k, v := range obj.Metadata.Custom {
		custom[k] = v
	}
	custom[MetaObjectType] = string(obj.Type)
	m.objects[hash] = &Object{
		Hash: hash,
		Type: obj.Type,
		Size: int64(len(obj.Data)),
		Data: append([]byte(nil), obj.Data...),
		Metadata: Metadata{
			CreatedAt:    now,
			LastAccessed: now,
			RefCount:     1,
			Custom:       custom,
		},
	}
	return hash, nil
}

// Get retrieves an object by its content hash.
func (m *MemoryStore) Get(ctx context.Context, hash string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Get++

	obj, ok := m.objects[hash]
	if !ok {
		return nil, ErrNotFound{Hash: hash}
	}
	obj.Metadata.LastAccessed = time.Now()
	cp := *obj
	cp.Data = append([]byte(nil), obj.Data...)
	return &cp, nil
}

// Exists checks if an object with the given hash exists.
func (m *MemoryStore) Exists(ctx context.Context, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Exists++
	_, ok := m.objects[hash]
	return ok, nil
}

// Delete removes an object by its content hash.
func (m *MemoryStore) Delete(ctx context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.Delete++
	if _, ok := m.objects[hash]; !ok {
		return ErrNotFound{Hash: hash}
	}
	delete(m.objects, hash)
	return nil
}

// List returns all object hashes matching the given type filter, sorted.
func (m *MemoryStore) List(ctx context.Context, objectType ObjectType) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls.List++

	var hashes []string
	for hash, obj := range m.objects {
		if objectType == "" || obj.Type == objectType {
			hashes = append(hashes, hash)
		}
	}
	sort.Strings(hashes)
	return hashes, nil
}

// Close releases resources.
func (m *MemoryStore) Close() error {
	return nil
}

// Len returns the number of distinct objects held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// Calls returns a snapshot of the invocation counters.
func (m *MemoryStore) Calls() MemoryCalls {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}
