package core

import (
	"context"
	"time"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	ActionImportCommit   AuditAction = "import_commit"
	ActionImportRollback AuditAction = "import_rollback"
	ActionImportRejected AuditAction = "import_rejected"
	ActionBatchCreate    AuditAction = "batch_create"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID           string         `json:"id"`
	Action       AuditAction    `json:"action"`
	Severity     AuditSeverity  `json:"severity"`
	UserID       string         `json:"userId,omitempty"`
	UserName     string         `json:"userName,omitempty"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	FileName     string         `json:"fileName,omitempty"`
	PreviewToken string         `json:"previewToken,omitempty"`
	BatchCode    string         `json:"batchCode,omitempty"`
	RowsAffected int            `json:"rowsAffected"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// determineSeverity returns the appropriate severity for an action.
func determineSeverity(action AuditAction) AuditSeverity {
	switch action {
	case ActionImportCommit, ActionImportRollback:
		return SeverityHigh
	case ActionBatchCreate:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// newAuditEntry fills the request-derived fields of an entry: actor,
// IP address and user agent.
func newAuditEntry(ctx context.Context, action AuditAction, req Requester, now time.Time) AuditEntry {
	return AuditEntry{
		Action:    action,
		Severity:  determineSeverity(action),
		UserID:    req.ID,
		UserName:  req.Name,
		IPAddress: GetIPAddressFromContext(ctx),
		UserAgent: GetUserAgentFromContext(ctx),
		CreatedAt: now,
	}
}
