// Package store persists the inventory the import pipeline reads and writes.
//
// Postgres is the production store. Memory keeps the same semantics in
// process for tests and the CLI's dry runs.
package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/inventory/internal/config"
	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// Connect opens a pgx pool sized from cfg and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates missing tables and indexes.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres implements core.Store on a pgx pool.
type Postgres struct {
	pgLookup
	pool *pgxpool.Pool
}

var _ core.Store = (*Postgres)(nil)

// NewPostgres wraps pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pgLookup: pgLookup{q: pool}, pool: pool}
}

// InTx runs fn in a transaction that commits only if fn returns nil.
func (p *Postgres) InTx(ctx context.Context, fn func(tx core.Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op once committed

	if err := fn(&pgTx{pgLookup: pgLookup{q: tx}, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return mapWriteErr("commit", err)
	}
	return nil
}

// AddItemType registers an item type for a category and returns its id.
func (p *Postgres) AddItemType(ctx context.Context, category, name string) (string, error) {
	id := uuid.NewString()
	_, err := p.pool.Exec(ctx,
		`INSERT INTO item_types (id, category, name) VALUES ($1, $2, $3)`,
		id, category, name)
	if err != nil {
		return "", mapWriteErr("insert item type", err)
	}
	return id, nil
}

// AddLocation registers an active location and returns its id.
func (p *Postgres) AddLocation(ctx context.Context, code, name string) (string, error) {
	id := uuid.NewString()
	_, err := p.pool.Exec(ctx,
		`INSERT INTO locations (id, code, name) VALUES ($1, $2, $3)`,
		id, code, name)
	if err != nil {
		return "", mapWriteErr("insert location", err)
	}
	return id, nil
}

// =============================================================================
// Lookups
// =============================================================================

type pgLookup struct {
	q querier
}

func (l pgLookup) SerialExists(ctx context.Context, serial string) (bool, error) {
	var exists bool
	err := l.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE serial = $1)`, serial).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check serial: %w", err)
	}
	return exists, nil
}

func (l pgLookup) TagExists(ctx context.Context, tag string) (bool, error) {
	var exists bool
	err := l.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM items WHERE tag = $1)`, tag).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check tag: %w", err)
	}
	return exists, nil
}

func (l pgLookup) FindItemType(ctx context.Context, category, name string) (*core.ItemType, error) {
	var it core.ItemType
	err := l.q.QueryRow(ctx, `
		SELECT id, category, name FROM item_types
		WHERE category = $1 AND lower(name) = lower($2) AND active
	`, category, name).Scan(&it.ID, &it.Category, &it.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select item type: %w", err)
	}
	return &it, nil
}

func (l pgLookup) FindLocation(ctx context.Context, code string) (*core.Location, error) {
	var loc core.Location
	err := l.q.QueryRow(ctx, `
		SELECT id, code, name FROM locations WHERE code = $1 AND active
	`, code).Scan(&loc.ID, &loc.Code, &loc.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select location: %w", err)
	}
	return &loc, nil
}

func (l pgLookup) FindBatch(ctx context.Context, code string) (*core.Batch, error) {
	var b core.Batch
	err := l.q.QueryRow(ctx, `
		SELECT id, code, COALESCE(description, '') FROM batches WHERE code = $1 AND active
	`, code).Scan(&b.ID, &b.Code, &b.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select batch: %w", err)
	}
	return &b, nil
}

// =============================================================================
// Transaction
// =============================================================================

type pgTx struct {
	pgLookup
	tx pgx.Tx
}

func (t *pgTx) NextSequence(ctx context.Context, scope string, year int) (int, error) {
	var value int
	err := t.tx.QueryRow(ctx, `
		INSERT INTO code_sequences (scope, year, value) VALUES ($1, $2, 1)
		ON CONFLICT (scope, year) DO UPDATE SET value = code_sequences.value + 1
		RETURNING value
	`, scope, year).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s/%d: %w", scope, year, err)
	}
	return value, nil
}

func (t *pgTx) CreateBatch(ctx context.Context, b core.NewBatch) (*core.Batch, error) {
	id := uuid.NewString()
	_, err := t.tx.Exec(ctx, `
		INSERT INTO batches (id, code, description, created_by) VALUES ($1, $2, $3, $4)
	`, id, b.Code, core.ToPgText(b.Description), b.CreatedBy)
	if err != nil {
		return nil, mapWriteErr("insert batch", err)
	}
	return &core.Batch{ID: id, Code: b.Code, Description: b.Description}, nil
}

func (t *pgTx) CreateItem(ctx context.Context, item core.NewItem) (string, error) {
	id := uuid.NewString()
	_, err := t.tx.Exec(ctx, `
		INSERT INTO items (
			id, code, serial, tag, name, description, category,
			item_type_id, location_id, batch_id, status, notes,
			acquired_on, price, warranty_until,
			leasing, leasing_company, leasing_contract, leasing_until,
			created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`,
		id, item.Code, item.Serial, item.Tag, item.Name, core.ToPgText(item.Description), item.Category,
		core.ToPgText(item.ItemTypeID), core.ToPgText(item.LocationID), core.ToPgText(item.BatchID), item.Status, core.ToPgText(item.Notes),
		item.AcquiredOn, item.Price, item.WarrantyUntil,
		item.Leasing.Active, core.ToPgText(item.Leasing.Company), core.ToPgText(item.Leasing.Contract), item.Leasing.Until,
		item.CreatedBy,
	)
	if err != nil {
		return "", mapWriteErr("insert item", err)
	}
	return id, nil
}

func (t *pgTx) CreateExtras(ctx context.Context, itemID string, extras *core.ExtraAttributes) error {
	attrs, err := json.Marshal(extras.Values)
	if err != nil {
		return fmt.Errorf("encode %s: %w", extras.Kind, err)
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO item_extras (item_id, kind, attributes) VALUES ($1, $2, $3)
	`, itemID, extras.Kind, attrs)
	if err != nil {
		return mapWriteErr("insert "+extras.Kind, err)
	}
	return nil
}

func (t *pgTx) RecordAudit(ctx context.Context, e core.AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	var details []byte
	if len(e.Details) > 0 {
		var err error
		if details, err = json.Marshal(e.Details); err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO audit_log (
			id, action, severity, user_id, user_name, ip_address, user_agent,
			file_name, preview_token, batch_code, rows_affected, details, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		e.ID, string(e.Action), string(e.Severity), core.ToPgText(e.UserID), core.ToPgText(e.UserName),
		core.ToPgText(e.IPAddress), core.ToPgText(e.UserAgent), core.ToPgText(e.FileName), core.ToPgText(e.PreviewToken),
		core.ToPgText(e.BatchCode), e.RowsAffected, details, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// mapWriteErr wraps err, translating unique violations to core.ErrDuplicateRecord.
func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%s: %w (%s)", op, core.ErrDuplicateRecord, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}
