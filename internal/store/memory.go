package store

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/google/uuid"
)

// Item is a record held by Memory.
type Item struct {
	core.NewItem
	ID        string
	CreatedAt time.Time
}

// Memory is an in-process core.Store. Transactions work on a copy of the
// data that replaces the original only when the transaction succeeds, and
// run one at a time.
type Memory struct {
	mu   sync.Mutex
	data *memData
}

var _ core.Store = (*Memory)(nil)

type memData struct {
	itemTypes map[string]core.ItemType // key: category + "/" + lowercase name
	locations map[string]core.Location // key: code
	batches   map[string]core.Batch    // key: code
	items     []Item
	serials   map[string]string // serial -> item id
	tags      map[string]string // tag -> item id
	extras    map[string][]core.ExtraAttributes
	sequences map[string]int // key: scope + "/" + year
	audit     []core.AuditEntry
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{data: &memData{
		itemTypes: make(map[string]core.ItemType),
		locations: make(map[string]core.Location),
		batches:   make(map[string]core.Batch),
		serials:   make(map[string]string),
		tags:      make(map[string]string),
		extras:    make(map[string][]core.ExtraAttributes),
		sequences: make(map[string]int),
	}}
}

func (d *memData) clone() *memData {
	c := &memData{
		itemTypes: maps.Clone(d.itemTypes),
		locations: maps.Clone(d.locations),
		batches:   maps.Clone(d.batches),
		items:     slices.Clone(d.items),
		serials:   maps.Clone(d.serials),
		tags:      maps.Clone(d.tags),
		extras:    make(map[string][]core.ExtraAttributes, len(d.extras)),
		sequences: maps.Clone(d.sequences),
		audit:     slices.Clone(d.audit),
	}
	for id, list := range d.extras {
		c.extras[id] = slices.Clone(list)
	}
	return c
}

func itemTypeKey(category, name string) string {
	return strings.ToLower(category) + "/" + strings.ToLower(strings.TrimSpace(name))
}

// AddItemType registers an item type and returns it.
func (m *Memory) AddItemType(category, name string) core.ItemType {
	m.mu.Lock()
	defer m.mu.Unlock()

	it := core.ItemType{ID: uuid.NewString(), Category: strings.ToLower(category), Name: name}
	m.data.itemTypes[itemTypeKey(category, name)] = it
	return it
}

// AddLocation registers an active location and returns it.
func (m *Memory) AddLocation(code, name string) core.Location {
	m.mu.Lock()
	defer m.mu.Unlock()

	loc := core.Location{ID: uuid.NewString(), Code: code, Name: name}
	m.data.locations[code] = loc
	return loc
}

// AddBatch registers an active batch and returns it.
func (m *Memory) AddBatch(code, description string) core.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := core.Batch{ID: uuid.NewString(), Code: code, Description: description}
	m.data.batches[code] = b
	return b
}

// Items returns the stored items in insertion order.
func (m *Memory) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.data.items)
}

// Extras returns the extra attribute bundles stored for an item.
func (m *Memory) Extras(itemID string) []core.ExtraAttributes {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.data.extras[itemID])
}

// AuditEntries returns the recorded audit entries in order.
func (m *Memory) AuditEntries() []core.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.data.audit)
}

// Batches returns the stored batches sorted by code.
func (m *Memory) Batches() []core.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := slices.Collect(maps.Values(m.data.batches))
	slices.SortFunc(out, func(a, b core.Batch) int { return strings.Compare(a.Code, b.Code) })
	return out
}

func (m *Memory) SerialExists(ctx context.Context, serial string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memLookup{m.data}.SerialExists(ctx, serial)
}

func (m *Memory) TagExists(ctx context.Context, tag string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memLookup{m.data}.TagExists(ctx, tag)
}

func (m *Memory) FindItemType(ctx context.Context, category, name string) (*core.ItemType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memLookup{m.data}.FindItemType(ctx, category, name)
}

func (m *Memory) FindLocation(ctx context.Context, code string) (*core.Location, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memLookup{m.data}.FindLocation(ctx, code)
}

func (m *Memory) FindBatch(ctx context.Context, code string) (*core.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memLookup{m.data}.FindBatch(ctx, code)
}

// InTx runs fn against a snapshot and publishes it only if fn succeeds.
func (m *Memory) InTx(ctx context.Context, fn func(tx core.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := m.data.clone()
	if err := fn(&memTx{memLookup{snapshot}}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data = snapshot
	return nil
}

// memLookup reads a memData without locking; callers hold the lock.
type memLookup struct {
	d *memData
}

func (l memLookup) SerialExists(_ context.Context, serial string) (bool, error) {
	_, ok := l.d.serials[serial]
	return ok, nil
}

func (l memLookup) TagExists(_ context.Context, tag string) (bool, error) {
	_, ok := l.d.tags[tag]
	return ok, nil
}

func (l memLookup) FindItemType(_ context.Context, category, name string) (*core.ItemType, error) {
	it, ok := l.d.itemTypes[itemTypeKey(category, name)]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (l memLookup) FindLocation(_ context.Context, code string) (*core.Location, error) {
	loc, ok := l.d.locations[code]
	if !ok {
		return nil, nil
	}
	return &loc, nil
}

func (l memLookup) FindBatch(_ context.Context, code string) (*core.Batch, error) {
	b, ok := l.d.batches[code]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

type memTx struct {
	memLookup
}

func (t *memTx) NextSequence(_ context.Context, scope string, year int) (int, error) {
	key := fmt.Sprintf("%s/%d", scope, year)
	t.d.sequences[key]++
	return t.d.sequences[key], nil
}

func (t *memTx) CreateBatch(_ context.Context, nb core.NewBatch) (*core.Batch, error) {
	if _, ok := t.d.batches[nb.Code]; ok {
		return nil, fmt.Errorf("insert batch %s: %w", nb.Code, core.ErrDuplicateRecord)
	}
	b := core.Batch{ID: uuid.NewString(), Code: nb.Code, Description: nb.Description}
	t.d.batches[nb.Code] = b
	return &b, nil
}

func (t *memTx) CreateItem(_ context.Context, item core.NewItem) (string, error) {
	if _, ok := t.d.serials[item.Serial]; ok {
		return "", fmt.Errorf("insert item: serial %s: %w", item.Serial, core.ErrDuplicateRecord)
	}
	if item.Tag != core.TagPending {
		if _, ok := t.d.tags[item.Tag]; ok {
			return "", fmt.Errorf("insert item: tag %s: %w", item.Tag, core.ErrDuplicateRecord)
		}
	}

	id := uuid.NewString()
	t.d.items = append(t.d.items, Item{NewItem: item, ID: id, CreatedAt: time.Now().UTC()})
	t.d.serials[item.Serial] = id
	if item.Tag != core.TagPending {
		t.d.tags[item.Tag] = id
	}
	return id, nil
}

func (t *memTx) CreateExtras(_ context.Context, itemID string, extras *core.ExtraAttributes) error {
	t.d.extras[itemID] = append(t.d.extras[itemID], core.ExtraAttributes{
		Kind:   extras.Kind,
		Values: maps.Clone(extras.Values),
	})
	return nil
}

func (t *memTx) RecordAudit(_ context.Context, e core.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	t.d.audit = append(t.d.audit, e)
	return nil
}
