package core

import (
	"errors"
	"fmt"
)

// File-level errors abort an import before any row is evaluated.
var (
	ErrFileTooLarge   = errors.New("file too large")
	ErrInvalidFormat  = errors.New("invalid file format")
	ErrEmptyFile      = errors.New("empty file")
	ErrMissingHeaders = errors.New("missing required columns")
	ErrTooManyRows    = errors.New("too many rows")
	ErrNoFile         = errors.New("no file provided")
	ErrEncoding       = errors.New("encoding error")
)

var (
	// ErrPermissionDenied is returned when the requester may not import at all.
	ErrPermissionDenied = errors.New("permission denied: requester may not import")

	// ErrPreviewNotFound is returned when a preview token is unknown or expired.
	ErrPreviewNotFound = errors.New("preview not found or expired")

	// ErrDuplicateRecord is returned when the store's uniqueness constraint
	// fires during commit, even though preview reported the row as clean.
	ErrDuplicateRecord = errors.New("record already exists")

	// ErrNotConfirmed is returned by Confirm without an explicit confirmation.
	ErrNotConfirmed = errors.New("import not confirmed")

	// ErrUnknownBatch is returned when the import-level batch choice names
	// a batch that does not exist.
	ErrUnknownBatch = errors.New("batch not found")

	// ErrInvalidBatchChoice is returned for an unknown batch mode or an
	// existing-batch choice without a code.
	ErrInvalidBatchChoice = errors.New("invalid batch choice")
)

// RejectedError is returned when a report contains rejected rows. The
// report travels with the error so callers can render it.
type RejectedError struct {
	Report ImportReport
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("validation rejected: %d of %d rows have errors",
		e.Report.RejectedCount, e.Report.TotalRows)
}

// FileTooLargeError carries the configured ceiling.
type FileTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	if e.Size > 0 {
		return fmt.Sprintf("file too large: %d bytes exceeds the %d byte limit", e.Size, e.Limit)
	}
	return fmt.Sprintf("file too large: exceeds the %d byte limit", e.Limit)
}

func (e *FileTooLargeError) Unwrap() error { return ErrFileTooLarge }

// TooManyRowsError carries the configured row ceiling.
type TooManyRowsError struct {
	Limit int
}

func (e *TooManyRowsError) Error() string {
	return fmt.Sprintf("too many rows: file exceeds the %d data row limit", e.Limit)
}

func (e *TooManyRowsError) Unwrap() error { return ErrTooManyRows }
