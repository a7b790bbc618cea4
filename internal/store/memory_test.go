package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JonMunkholm/inventory/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newItem(serial, tag string) core.NewItem {
	return core.NewItem{
		StagedItem: core.StagedItem{
			Serial:     serial,
			Tag:        tag,
			Name:       "Laptop",
			Category:   "sistemas",
			Status:     core.DefaultItemStatus,
			AcquiredOn: core.ToPgDate("2026-01-15"),
			Price:      core.ToPgNumeric("3500"),
		},
		Code:      "SIS-2026-0001",
		CreatedBy: "u-1",
	}
}

func TestMemory_Lookups(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	laptop := m.AddItemType("Sistemas", "Laptop")
	loc := m.AddLocation("LIM-A-101", "Aula A101")
	batch := m.AddBatch("LOT-2026-0001", "Compra enero")

	it, err := m.FindItemType(ctx, "sistemas", "  LAPTOP ")
	require.NoError(t, err)
	require.NotNil(t, it)
	assert.Equal(t, laptop.ID, it.ID)

	it, err = m.FindItemType(ctx, "operaciones", "Laptop")
	require.NoError(t, err)
	assert.Nil(t, it, "item types are scoped to their category")

	gotLoc, err := m.FindLocation(ctx, "LIM-A-101")
	require.NoError(t, err)
	assert.Equal(t, loc, *gotLoc)

	missing, err := m.FindLocation(ctx, "LIM-Z-999")
	require.NoError(t, err)
	assert.Nil(t, missing)

	gotBatch, err := m.FindBatch(ctx, "LOT-2026-0001")
	require.NoError(t, err)
	assert.Equal(t, batch.ID, gotBatch.ID)
}

func TestMemory_InTxCommits(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.InTx(ctx, func(tx core.Tx) error {
		id, err := tx.CreateItem(ctx, newItem("SN1", "UTP1"))
		if err != nil {
			return err
		}
		if err := tx.CreateExtras(ctx, id, &core.ExtraAttributes{
			Kind:   core.ExtraKindTechnicalSpecs,
			Values: map[string]string{core.ColBrand: "Dell"},
		}); err != nil {
			return err
		}

		// The transaction sees its own writes.
		exists, err := tx.SerialExists(ctx, "SN1")
		if err != nil || !exists {
			return errors.New("serial not visible inside the transaction")
		}
		return tx.RecordAudit(ctx, core.AuditEntry{Action: core.ActionImportCommit, RowsAffected: 1})
	})
	require.NoError(t, err)

	items := m.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "SN1", items[0].Serial)
	assert.Equal(t, "Dell", m.Extras(items[0].ID)[0].Values[core.ColBrand])

	exists, err := m.TagExists(ctx, "UTP1")
	require.NoError(t, err)
	assert.True(t, exists)

	audit := m.AuditEntries()
	require.Len(t, audit, 1)
	assert.NotEmpty(t, audit[0].ID)
}

func TestMemory_InTxRollsBack(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	boom := errors.New("boom")

	err := m.InTx(ctx, func(tx core.Tx) error {
		if _, err := tx.CreateItem(ctx, newItem("SN1", "UTP1")); err != nil {
			return err
		}
		if _, err := tx.CreateBatch(ctx, core.NewBatch{Code: "LOT-2026-0001"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Empty(t, m.Items())
	assert.Empty(t, m.Batches())
	exists, err := m.SerialExists(ctx, "SN1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestMemory_Uniqueness(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.InTx(ctx, func(tx core.Tx) error {
		_, err := tx.CreateItem(ctx, newItem("SN1", "UTP1"))
		return err
	}))

	tests := []struct {
		name    string
		item    core.NewItem
		wantErr bool
	}{
		{"same serial", newItem("SN1", "UTP2"), true},
		{"same tag", newItem("SN2", "UTP1"), true},
		{"pending tag", newItem("SN3", core.TagPending), false},
		{"second pending tag", newItem("SN4", core.TagPending), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.InTx(ctx, func(tx core.Tx) error {
				_, err := tx.CreateItem(ctx, tt.item)
				return err
			})
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrDuplicateRecord)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMemory_NextSequence(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var got []int
	require.NoError(t, m.InTx(ctx, func(tx core.Tx) error {
		for _, scope := range []string{"SIS", "SIS", "LAB", "SIS"} {
			n, err := tx.NextSequence(ctx, scope, 2026)
			if err != nil {
				return err
			}
			got = append(got, n)
		}
		n, err := tx.NextSequence(ctx, "SIS", 2027)
		got = append(got, n)
		return err
	}))
	assert.Equal(t, []int{1, 2, 1, 3, 1}, got)

	// Counters persist across transactions.
	require.NoError(t, m.InTx(ctx, func(tx core.Tx) error {
		n, err := tx.NextSequence(ctx, "SIS", 2026)
		assert.Equal(t, 4, n)
		return err
	}))
}

func TestMemory_InTxSerializes(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- m.InTx(ctx, func(tx core.Tx) error {
			close(started)
			<-release
			_, err := tx.CreateItem(ctx, newItem("SN1", "UTP1"))
			return err
		})
	}()
	<-started

	second := make(chan error, 1)
	go func() {
		second <- m.InTx(ctx, func(tx core.Tx) error {
			_, err := tx.CreateItem(ctx, newItem("SN1", "UTP9"))
			return err
		})
	}()

	select {
	case <-second:
		t.Fatal("second transaction ran while the first was open")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-done)
	assert.ErrorIs(t, <-second, core.ErrDuplicateRecord)
}

func TestMemory_InTxCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewMemory().InTx(ctx, func(core.Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
