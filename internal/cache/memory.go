package cache

import (
	"context"
	"sync"
	"time"

	"github.com/JonMunkholm/inventory/internal/core"
)

// Memory is an in-process preview cache. Expired entries are never returned
// and are purged by Sweep.
type Memory struct {
	mu          sync.Mutex
	entries     map[string]memEntry
	byRequester map[string]string
	now         func() time.Time
}

type memEntry struct {
	entry     core.PreviewEntry
	expiresAt time.Time
}

var (
	_ core.PreviewCache = (*Memory)(nil)
	_ core.Sweeper      = (*Memory)(nil)
)

// NewMemory returns an empty cache.
func NewMemory() *Memory {
	return &Memory{
		entries:     make(map[string]memEntry),
		byRequester: make(map[string]string),
		now:         time.Now,
	}
}

// WithClock replaces the cache's clock, for tests.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Put(_ context.Context, entry core.PreviewEntry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.byRequester[entry.RequesterID]; ok && prev != entry.Token {
		delete(m.entries, prev)
	}
	m.entries[entry.Token] = memEntry{entry: entry, expiresAt: m.now().Add(ttl)}
	m.byRequester[entry.RequesterID] = entry.Token
	return nil
}

func (m *Memory) Get(_ context.Context, token string) (*core.PreviewEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[token]
	if !ok {
		return nil, core.ErrPreviewNotFound
	}
	if !m.now().Before(e.expiresAt) {
		m.remove(token, e.entry.RequesterID)
		return nil, core.ErrPreviewNotFound
	}
	entry := e.entry
	return &entry, nil
}

func (m *Memory) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[token]; ok {
		m.remove(token, e.entry.RequesterID)
	}
	return nil
}

// Sweep removes expired entries and returns how many it removed.
func (m *Memory) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for token, e := range m.entries {
		if !now.Before(e.expiresAt) {
			m.remove(token, e.entry.RequesterID)
			n++
		}
	}
	return n, nil
}

// Len returns the number of entries held, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) remove(token, requesterID string) {
	delete(m.entries, token)
	if m.byRequester[requesterID] == token {
		delete(m.byRequester, requesterID)
	}
}
