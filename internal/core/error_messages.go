package core

// # Error Codes Reference
//
// User-facing messages carry a code that users can quote to support staff.
// Codes are grouped by category:
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: the workbook exceeds the upload size limit
//	FILE002 - Invalid format: not a readable .xlsx or .csv file
//	FILE003 - Encoding error: a CSV that is neither UTF-8 nor Windows-1252
//	FILE004 - No file: no file was selected
//	FILE005 - Empty file: the file has no data rows
//	FILE006 - Missing columns: required template columns are absent
//	FILE007 - Too many rows: the file exceeds the row limit
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Rejected: one or more rows have errors; nothing was created
//	IMP002 - Preview expired: the preview token is unknown or expired
//	IMP003 - System busy: too many imports in progress
//	IMP004 - Not confirmed: confirmation flag missing
//	IMP005 - Batch: the chosen batch is unknown or the choice is incomplete
//
// # Authorization (AUTH001-AUTH003)
//
//	AUTH001 - Permission denied: the requester may not import items
//	AUTH002 - Missing API key (set by the HTTP API key middleware)
//	AUTH003 - Invalid API key (set by the HTTP API key middleware)
//
// # Database Errors (DB001-DB099)
//
// DB002 is retired: unique violations surface as DB001.
//
//	DB001 - Duplicate record: another import created the same serial or tag
//	DB003 - Foreign key: a referenced record does not exist
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//	DB007 - Deadlock
//
// # Request Errors (REQ001-REQ099)
//
//	REQ001 - Request cancelled
//	REQ002 - Request timed out
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the application logs for the
// original technical error.
//
// # Matching
//
// Known error values are matched first with errors.Is / errors.As. Errors
// that only carry text (driver errors, wrapped strings) are then matched
// case-insensitively with strings.Contains; the first matching pattern wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// sentinelMessages maps error values to user messages, checked with errors.Is.
var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{ErrFileTooLarge, UserMessage{"File exceeds the maximum upload size", "Split the file into smaller workbooks", "FILE001"}},
	{ErrInvalidFormat, UserMessage{"File is not a valid .xlsx or .csv workbook", "Save the file from the downloaded template and try again", "FILE002"}},
	{ErrEncoding, UserMessage{"File contains invalid characters", "Save the file as .xlsx or as \"CSV UTF-8\" and try again", "FILE003"}},
	{ErrNoFile, UserMessage{"No file was selected", "Please select a workbook to upload", "FILE004"}},
	{ErrEmptyFile, UserMessage{"The uploaded file has no data rows", "Fill in at least one row below the header", "FILE005"}},
	{ErrMissingHeaders, UserMessage{"Required columns are missing from the file", "Use the template headers exactly as downloaded", "FILE006"}},
	{ErrTooManyRows, UserMessage{"The file has too many rows", "Split the file into smaller workbooks", "FILE007"}},
	{ErrPreviewNotFound, UserMessage{"Preview not found or expired", "Upload the file again to get a new preview", "IMP002"}},
	{ErrTooManyImports, UserMessage{"System is busy processing other imports", "Please wait a moment and try again", "IMP003"}},
	{ErrNotConfirmed, UserMessage{"The import was not confirmed", "Review the preview and confirm to create the items", "IMP004"}},
	{ErrUnknownBatch, UserMessage{"The selected batch does not exist or is inactive", "Check the batch code or create a new batch", "IMP005"}},
	{ErrInvalidBatchChoice, UserMessage{"The batch selection is incomplete", "Choose a new batch or enter an existing batch code", "IMP005"}},
	{ErrPermissionDenied, UserMessage{"You are not allowed to import items", "Ask an administrator for import permission", "AUTH001"}},
	{ErrDuplicateRecord, UserMessage{"A record with this serial or tag already exists; no items were created", "Another import may have just added it. Preview the file again", "DB001"}},
	{context.Canceled, UserMessage{"Request was cancelled", "Please try again", "REQ001"}},
	{context.DeadlineExceeded, UserMessage{"Request timed out", "Try a smaller file or try again later", "REQ002"}},
}

var rejectedMessage = UserMessage{
	Message: "Some rows have errors; no items were created",
	Action:  "Fix the rows marked as rejected and upload the file again",
	Code:    "IMP001",
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error text (case-insensitive) to user messages.
// More specific patterns come before general ones.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Database Errors (DB001, DB003-DB007)
	// =========================================================================
	{
		pattern: "duplicate key",
		msg:     UserMessage{"A record with this serial or tag already exists", "Preview the file again to see which rows collide", "DB001"},
	},
	{
		pattern: "foreign key",
		msg:     UserMessage{"Referenced record does not exist", "Check item types, locations and batches", "DB003"},
	},
	{
		pattern: "connection refused",
		msg:     UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"},
	},
	{
		pattern: "connection reset",
		msg:     UserMessage{"Database connection was interrupted", "Please try again", "DB005"},
	},
	{
		pattern: "timeout",
		msg:     UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"},
	},
	{
		pattern: "deadlock",
		msg:     UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// =========================================================================
	{
		pattern: "rate limit",
		msg:     UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the zero UserMessage for a nil error and the ERR000 fallback
// when nothing matches.
//
// Example:
//
//	msg := MapError(fmt.Errorf("create item: %w", ErrDuplicateRecord))
//	// msg.Code == "DB001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejectedMessage
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// nothingCreated ends every message for a failed commit.
const nothingCreated = "no items were created"

// MapCommitError is MapError for a commit that failed: the message always
// states that no items were created, since the transaction rolled back.
func MapCommitError(err error) UserMessage {
	msg := MapError(err)
	if msg.Message != "" && !strings.Contains(msg.Message, nothingCreated) {
		msg.Message += "; " + nothingCreated
	}
	return msg
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
