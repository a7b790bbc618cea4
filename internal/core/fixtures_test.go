package core

import (
	"context"
	"fmt"
	"strings"
)

// fakeLookup is an in-memory Lookup for validator tests.
type fakeLookup struct {
	serials   map[string]bool
	tags      map[string]bool
	itemTypes map[string]*ItemType // key: category + "/" + lowercase name
	locations map[string]*Location
	batches   map[string]*Batch

	err   error
	calls int
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{
		serials: map[string]bool{},
		tags:    map[string]bool{},
		itemTypes: map[string]*ItemType{
			"sistemas/laptop":       {ID: "it-1", Category: "sistemas", Name: "Laptop"},
			"sistemas/monitor":      {ID: "it-2", Category: "sistemas", Name: "Monitor"},
			"operaciones/proyector": {ID: "it-3", Category: "operaciones", Name: "Proyector"},
			"laboratorio/balanza":   {ID: "it-4", Category: "laboratorio", Name: "Balanza"},
		},
		locations: map[string]*Location{
			"LIM-A-101": {ID: "loc-1", Code: "LIM-A-101", Name: "Aula A101"},
		},
		batches: map[string]*Batch{
			"LOT-2026-0001": {ID: "batch-1", Code: "LOT-2026-0001"},
		},
	}
}

func (f *fakeLookup) SerialExists(_ context.Context, serial string) (bool, error) {
	f.calls++
	return f.serials[serial], f.err
}

func (f *fakeLookup) TagExists(_ context.Context, tag string) (bool, error) {
	f.calls++
	return f.tags[tag], f.err
}

func (f *fakeLookup) FindItemType(_ context.Context, category, name string) (*ItemType, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.itemTypes[category+"/"+strings.ToLower(name)], nil
}

func (f *fakeLookup) FindLocation(_ context.Context, code string) (*Location, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.locations[code], nil
}

func (f *fakeLookup) FindBatch(_ context.Context, code string) (*Batch, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.batches[code], nil
}

// systemsUser may import into the systems area only.
var systemsUser = Requester{ID: "u-1", Name: "Ana Torres", Category: "sistemas", MayImport: true}

// adminUser may import into any area.
var adminUser = Requester{ID: "u-9", Name: "Admin", Elevated: true, MayImport: true}

// cleanCells returns the cells of a row that validates without messages.
func cleanCells(n int) map[string]string {
	return map[string]string{
		ColSerial:      fmt.Sprintf("SN%04d", n),
		ColName:        "Laptop Dell Latitude 5420",
		ColCategory:    "sistemas",
		ColItemType:    "Laptop",
		ColPrice:       "3500.00",
		ColAcquiredOn:  "2026-01-15",
		ColTag:         fmt.Sprintf("UTP%06d", n),
		ColLocation:    "LIM-A-101",
		ColWarranty:    "2029-01-15",
		ColDescription: "",
	}
}

// makeRow builds an ImportRow the way the parser does.
func makeRow(line int, cells map[string]string) ImportRow {
	row := ImportRow{
		RowNumber:  line,
		Raw:        make(map[string]string, len(cells)),
		Normalized: make(map[string]string, len(cells)),
	}
	for k, v := range cells {
		row.Raw[k] = v
		row.Normalized[k] = CleanCell(v)
	}
	return row
}

// cleanRows returns n rows with distinct serials and tags, starting at line 2.
func cleanRows(n int) []ImportRow {
	rows := make([]ImportRow, n)
	for i := range rows {
		rows[i] = makeRow(i+2, cleanCells(i+1))
	}
	return rows
}

// with returns a copy of cells with the given overrides applied.
func with(cells map[string]string, kv ...string) map[string]string {
	out := make(map[string]string, len(cells)+len(kv)/2)
	for k, v := range cells {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

func hasMessage(list []ValidationError, field, substr string) bool {
	for _, e := range list {
		if e.Field == field && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
