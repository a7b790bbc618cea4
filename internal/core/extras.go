package core

import (
	"fmt"
	"strconv"
	"strings"
)

// ExtraSchema is the extended attribute schema attached to a category.
// Stage inspects a row and returns the bundle to create alongside the item,
// or nil when the row carries none of the schema's fields. Problems with
// individual fields are reported as warnings and the field is dropped.
type ExtraSchema interface {
	Kind() string
	Columns() []string
	Stage(row ImportRow) (*ExtraAttributes, []ValidationError)
}

// ExtraKindTechnicalSpecs tags hardware spec bundles.
const ExtraKindTechnicalSpecs = "technical_specs"

var (
	ramTypes     = []string{"DDR3", "DDR4", "DDR5"}
	storageTypes = []string{"HDD", "SSD", "NVMe", "eMMC"}
)

// TechnicalSpecs is the hardware spec schema used by the systems area.
type TechnicalSpecs struct{}

func (TechnicalSpecs) Kind() string { return ExtraKindTechnicalSpecs }

func (TechnicalSpecs) Columns() []string {
	return ColumnsInGroup(GroupTechnical)
}

func (t TechnicalSpecs) Stage(row ImportRow) (*ExtraAttributes, []ValidationError) {
	values := make(map[string]string)
	var warnings []ValidationError

	for _, col := range t.Columns() {
		v := row.Value(col)
		if v == "" {
			continue
		}

		switch col {
		case ColRAMTotal, ColStorageSize:
			n, ok := parseWholeNumber(v)
			if !ok {
				warnings = append(warnings, ValidationError{
					Field:   col,
					Value:   v,
					Message: "not a whole number, value ignored",
				})
				continue
			}
			v = strconv.Itoa(n)
		case ColRAMType:
			canon, ok := matchFold(v, ramTypes)
			if !ok {
				warnings = append(warnings, ValidationError{
					Field:   col,
					Value:   v,
					Message: fmt.Sprintf("must be one of: %s, value ignored", strings.Join(ramTypes, ", ")),
				})
				continue
			}
			v = canon
		case ColStorageType:
			canon, ok := matchFold(v, storageTypes)
			if !ok {
				warnings = append(warnings, ValidationError{
					Field:   col,
					Value:   v,
					Message: fmt.Sprintf("must be one of: %s, value ignored", strings.Join(storageTypes, ", ")),
				})
				continue
			}
			v = canon
		}

		values[col] = v
	}

	if len(values) == 0 {
		return nil, warnings
	}
	return &ExtraAttributes{Kind: ExtraKindTechnicalSpecs, Values: values}, warnings
}

// parseWholeNumber accepts "16" and spreadsheet renderings such as "16.0".
func parseWholeNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// matchFold returns the canonical spelling of v from allowed, ignoring case.
func matchFold(v string, allowed []string) (string, bool) {
	for _, a := range allowed {
		if strings.EqualFold(a, v) {
			return a, true
		}
	}
	return "", false
}
