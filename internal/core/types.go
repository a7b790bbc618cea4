// Package core provides the business logic for bulk inventory imports.
// This package has no UI dependencies and can be used by any frontend.
package core

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Requester is the identity on whose behalf an import runs. It is supplied
// by the caller's identity layer; core never derives roles or areas itself.
type Requester struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Category is the requester's assigned area. Empty means all areas,
	// which only makes sense together with Elevated.
	Category string `json:"category,omitempty"`

	// Elevated bypasses the area-match restriction.
	Elevated bool `json:"elevated"`

	// MayImport is the yes/no capability to run imports at all.
	MayImport bool `json:"mayImport"`
}

// CanImportInto reports whether the requester may create items in category.
func (r Requester) CanImportInto(category string) bool {
	if r.Elevated {
		return true
	}
	return r.Category != "" && strings.EqualFold(r.Category, category)
}

// ImportRow is one spreadsheet row under evaluation.
type ImportRow struct {
	// RowNumber is the spreadsheet row (header is row 1).
	RowNumber int `json:"rowNumber"`

	// Raw holds cell values exactly as read, keyed by lowercase column name.
	Raw map[string]string `json:"raw"`

	// Normalized holds the same keys after trimming and type coercion.
	Normalized map[string]string `json:"normalized"`
}

// Value returns the normalized value for col, falling back to the cleaned raw value.
func (r ImportRow) Value(col string) string {
	if v, ok := r.Normalized[col]; ok {
		return v
	}
	return CleanCell(r.Raw[col])
}

// RowStatus classifies a validated row.
type RowStatus string

const (
	StatusValid    RowStatus = "valid"
	StatusWarned   RowStatus = "warned"
	StatusRejected RowStatus = "rejected"
)

// ValidationOutcome is the result of validating one ImportRow.
// A row with any error must never be committed, regardless of warnings.
type ValidationOutcome struct {
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
}

// Status derives the row status from the collected messages.
func (o ValidationOutcome) Status() RowStatus {
	switch {
	case len(o.Errors) > 0:
		return StatusRejected
	case len(o.Warnings) > 0:
		return StatusWarned
	default:
		return StatusValid
	}
}

// RowResult pairs a row with its outcome and, when the row is clean, the
// record it would create.
type RowResult struct {
	Row     ImportRow
	Outcome ValidationOutcome
	Staged  *StagedItem
}

// ItemType is an item type registered for a category.
type ItemType struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Name     string `json:"name"`
}

// Location is an active campus location (room, lab, office).
type Location struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Batch groups items acquired together.
type Batch struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// NewBatch holds the fields for a batch created during commit.
type NewBatch struct {
	Code        string
	Description string
	CreatedBy   string
}

// Leasing describes optional leasing terms for an item.
type Leasing struct {
	Active   bool
	Company  string
	Contract string
	Until    pgtype.Date
}

// StagedItem is a fully validated record waiting to be created.
type StagedItem struct {
	RowNumber     int
	Serial        string
	Tag           string
	Name          string
	Description   string
	Category      string
	ItemTypeID    string
	LocationID    string
	BatchID       string
	Status        string
	Notes         string
	AcquiredOn    pgtype.Date
	Price         pgtype.Numeric
	WarrantyUntil pgtype.Date
	Leasing       Leasing
	Extras        *ExtraAttributes
}

// ExtraAttributes is a bundle of category-specific fields created alongside an item.
type ExtraAttributes struct {
	Kind   string
	Values map[string]string
}

// NewItem is what the commit executor hands to the store for insertion.
type NewItem struct {
	StagedItem
	Code      string
	CreatedBy string
}

// CreatedItem identifies a record created by a commit.
type CreatedItem struct {
	RowNumber int    `json:"rowNumber"`
	ID        string `json:"id"`
	Code      string `json:"code"`
	Serial    string `json:"serial"`
	Tag       string `json:"tag"`
	Name      string `json:"name"`
	Category  string `json:"category"`
}

// CommitResult is the outcome of the transactional commit step.
type CommitResult struct {
	CreatedCount int           `json:"createdCount"`
	Items        []CreatedItem `json:"items"`
	BatchCode    string        `json:"batchCode,omitempty"`
	ReceiptKey   string        `json:"receiptKey,omitempty"`

	// Failure is set when the whole batch was rolled back.
	Failure string `json:"failure,omitempty"`
}

// BatchMode selects how an import associates its items with a batch.
type BatchMode string

const (
	BatchNone     BatchMode = ""
	BatchNew      BatchMode = "new"
	BatchExisting BatchMode = "existing"
)

// BatchChoice is the import-level batch association chosen at preview time.
// A row's own batch code takes precedence over it.
type BatchChoice struct {
	Mode        BatchMode `json:"mode,omitempty"`
	Description string    `json:"description,omitempty"`
	Code        string    `json:"code,omitempty"`
}

// PreviewEntry is what the preview cache holds between preview and confirm.
type PreviewEntry struct {
	Token       string       `json:"token"`
	RequesterID string       `json:"requesterId"`
	FileName    string       `json:"fileName"`
	Rows        []ImportRow  `json:"rows"`
	Choice      BatchChoice  `json:"choice"`
	Report      ImportReport `json:"report"`
	CreatedAt   time.Time    `json:"createdAt"`
	ExpiresAt   time.Time    `json:"expiresAt"`
}

// PreviewResult is returned to the caller after a preview.
type PreviewResult struct {
	Token       string       `json:"token"`
	FileName    string       `json:"fileName"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	Committable bool         `json:"committable"`
	Report      ImportReport `json:"report"`
}
