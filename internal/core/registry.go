package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultCodePrefix is used for items whose category has no registered prefix.
const DefaultCodePrefix = "INV"

// Category is an organizational area items belong to.
type Category struct {
	Code   string // lowercase key used in workbooks: "sistemas"
	Prefix string // item code prefix: "SIS"
	Label  string

	// Extras is the category's extra attribute schema, nil when the
	// category carries no extended attributes.
	Extras ExtraSchema
}

var (
	categories   = make(map[string]Category)
	categoriesMu sync.RWMutex
)

func init() {
	RegisterCategory(Category{Code: "sistemas", Prefix: "SIS", Label: "Sistemas", Extras: TechnicalSpecs{}})
	RegisterCategory(Category{Code: "operaciones", Prefix: "OPE", Label: "Operaciones"})
	RegisterCategory(Category{Code: "laboratorio", Prefix: "LAB", Label: "Laboratorio"})
}

// RegisterCategory adds a category to the registry.
// Panics if a category with the same code is already registered.
func RegisterCategory(c Category) {
	categoriesMu.Lock()
	defer categoriesMu.Unlock()

	key := strings.ToLower(c.Code)
	if _, exists := categories[key]; exists {
		panic(fmt.Sprintf("category already registered: %s", c.Code))
	}
	c.Code = key
	categories[key] = c
}

// LookupCategory returns the category for code (case-insensitive).
func LookupCategory(code string) (Category, bool) {
	categoriesMu.RLock()
	defer categoriesMu.RUnlock()

	c, ok := categories[strings.ToLower(strings.TrimSpace(code))]
	return c, ok
}

// Categories returns all registered categories sorted by code.
func Categories() []Category {
	categoriesMu.RLock()
	defer categoriesMu.RUnlock()

	result := make([]Category, 0, len(categories))
	for _, c := range categories {
		result = append(result, c)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Code < result[j].Code
	})

	return result
}

// CategoryCodes returns the allowed category codes, sorted.
func CategoryCodes() []string {
	cats := Categories()
	codes := make([]string, len(cats))
	for i, c := range cats {
		codes[i] = c.Code
	}
	return codes
}

// CodePrefix returns the item code prefix for a category code.
func CodePrefix(code string) string {
	if c, ok := LookupCategory(code); ok && c.Prefix != "" {
		return c.Prefix
	}
	return DefaultCodePrefix
}
