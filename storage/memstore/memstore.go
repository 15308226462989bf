package memstore

import (
	"sync"

	"github.com/jrsteele09/go-auth-client/storage"
)

var _ storage.KV = (*MemStore)(nil)

// MemStore is an in-memory KV, useful for tests and sessions that must not touch disk.
type MemStore struct {
	values map[string]string
	lock   sync.RWMutex
}

func New() *MemStore {
	return &MemStore{
		values: make(map[string]string),
	}
}

func (ms *MemStore) Read(key string) (string, bool, error) {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	v, ok := ms.values[key]
	return v, ok, nil
}

func (ms *MemStore) Write(key, value string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	ms.values[key] = value
	return nil
}

func (ms *MemStore) Delete(key string) error {
	ms.lock.Lock()
	defer ms.lock.Unlock()
	delete(ms.values, key)
	return nil
}

// Len returns the number of stored keys
func (ms *MemStore) Len() int {
	ms.lock.RLock()
	defer ms.lock.RUnlock()
	return len(ms.values)
}
