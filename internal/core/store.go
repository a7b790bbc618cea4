package core

import (
	"context"
	"time"
)

// Store is the persisted inventory seen by the pipeline.
type Store interface {
	Lookup

	// InTx runs fn inside one transaction. The transaction commits only if
	// fn returns nil; any error rolls back everything fn did.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the write side of the store, valid only inside InTx.
// Lookups made through a Tx see the transaction's own writes.
type Tx interface {
	Lookup

	// NextSequence increments and returns the counter for scope and year.
	// Values are never reused, even after the records using them are deleted.
	NextSequence(ctx context.Context, scope string, year int) (int, error)

	CreateBatch(ctx context.Context, b NewBatch) (*Batch, error)

	// CreateItem inserts an item. A uniqueness violation is reported as an
	// error wrapping ErrDuplicateRecord.
	CreateItem(ctx context.Context, item NewItem) (string, error)

	CreateExtras(ctx context.Context, itemID string, extras *ExtraAttributes) error

	RecordAudit(ctx context.Context, entry AuditEntry) error
}

// PreviewCache holds preview entries between preview and confirm.
// Entries expire after their TTL; a new entry for a requester replaces
// that requester's previous one.
type PreviewCache interface {
	Put(ctx context.Context, entry PreviewEntry, ttl time.Duration) error

	// Get returns ErrPreviewNotFound for unknown or expired tokens.
	Get(ctx context.Context, token string) (*PreviewEntry, error)

	Delete(ctx context.Context, token string) error
}

// Sweeper is implemented by caches that need explicit expiry.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// ReceiptArchive stores commit receipts.
type ReceiptArchive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}
