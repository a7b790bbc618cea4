package archive

import (
	"context"
	"errors"
	"sync"

	"github.com/JonMunkholm/inventory/internal/core"
)

// ErrNotFound is returned by Memory.Get for unknown keys.
var ErrNotFound = errors.New("object not found")

// Object is a stored receipt.
type Object struct {
	Data        []byte
	ContentType string
}

// Memory keeps receipts in process.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
}

var _ core.ReceiptArchive = (*Memory)(nil)

// NewMemory returns an empty archive.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object)}
}

func (m *Memory) Put(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = Object{Data: append([]byte(nil), data...), ContentType: contentType}
	return nil
}

// Get returns a copy of the object stored under key.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), obj.Data...), nil
}

// Len returns how many objects are stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// ContentType returns the content type recorded for key.
func (m *Memory) ContentType(key string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.objects[key].ContentType
}
