// Package admin provides catalogue maintenance: the item types and
// locations that import rows must reference.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/inventory/internal/core"
)

// OpTimeout bounds a single catalogue operation.
const OpTimeout = 30 * time.Second

// ErrInvalidEntry is returned for catalogue entries that fail validation.
var ErrInvalidEntry = errors.New("invalid catalogue entry")

// Store is the write side of the catalogue. store.Postgres satisfies it.
type Store interface {
	core.Lookup
	AddItemType(ctx context.Context, category, name string) (string, error)
	AddLocation(ctx context.Context, code, name string) (string, error)
}

// Catalog validates and registers catalogue entries.
type Catalog struct {
	store Store
}

// NewCatalog wraps s.
func NewCatalog(s Store) *Catalog {
	return &Catalog{store: s}
}

// AddItemType registers name under category. The category must be one of
// the registered areas; an existing type with the same name (any case) is
// returned unchanged.
func (c *Catalog) AddItemType(ctx context.Context, category, name string) (core.ItemType, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	cat, ok := core.LookupCategory(category)
	if !ok {
		return core.ItemType{}, false, fmt.Errorf("%w: unknown area %q (use one of: %s)",
			ErrInvalidEntry, category, strings.Join(core.CategoryCodes(), ", "))
	}
	name = core.CleanCell(name)
	if name == "" {
		return core.ItemType{}, false, fmt.Errorf("%w: item type name is required", ErrInvalidEntry)
	}

	existing, err := c.store.FindItemType(ctx, cat.Code, name)
	if err != nil {
		return core.ItemType{}, false, fmt.Errorf("find item type: %w", err)
	}
	if existing != nil {
		return *existing, false, nil
	}

	id, err := c.store.AddItemType(ctx, cat.Code, name)
	if err != nil {
		return core.ItemType{}, false, fmt.Errorf("add item type %s/%s: %w", cat.Code, name, err)
	}
	return core.ItemType{ID: id, Category: cat.Code, Name: name}, true, nil
}

// AddLocation registers an active location. Codes are stored uppercase.
func (c *Catalog) AddLocation(ctx context.Context, code, name string) (core.Location, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, OpTimeout)
	defer cancel()

	code = strings.ToUpper(core.CleanCell(code))
	if code == "" {
		return core.Location{}, false, fmt.Errorf("%w: location code is required", ErrInvalidEntry)
	}
	name = core.CleanCell(name)
	if name == "" {
		name = code
	}

	existing, err := c.store.FindLocation(ctx, code)
	if err != nil {
		return core.Location{}, false, fmt.Errorf("find location: %w", err)
	}
	if existing != nil {
		return *existing, false, nil
	}

	id, err := c.store.AddLocation(ctx, code, name)
	if err != nil {
		return core.Location{}, false, fmt.Errorf("add location %s: %w", code, err)
	}
	return core.Location{ID: id, Code: code, Name: name}, true, nil
}
