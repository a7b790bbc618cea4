package core

// commit.go is the commit executor.
//
// Every commit re-validates from the source rows inside the transaction,
// using the transaction's own lookups, so a stale preview is never trusted.
// Either every row becomes an item or the transaction rolls back and
// nothing is created. Codes come from per-scope, per-year sequences that
// advance inside the same transaction.

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/inventory/internal/logging"
	"github.com/JonMunkholm/inventory/internal/metrics"
)

func (s *Service) commit(ctx context.Context, req Requester, src commitSource) (*CommitResult, error) {
	log := logging.WithFields(ctx, "requester", req.ID, "file", src.fileName, "token", src.token)
	timer := metrics.NewTimer(metrics.StageCommit)
	defer timer.Stop()

	var result *CommitResult
	err := s.store.InTx(ctx, func(tx Tx) error {
		var err error
		result, err = s.commitRows(ctx, tx, req, src)
		return err
	})

	if err != nil {
		failed := &CommitResult{Failure: MapCommitError(err).Message}

		var rejected *RejectedError
		switch {
		case errors.As(err, &rejected):
			metrics.RecordCommit("rejected")
			log.Warn("import rejected at commit",
				"rows", rejected.Report.TotalRows,
				"rejected", rejected.Report.RejectedCount,
			)
		case errors.Is(err, ErrDuplicateRecord):
			metrics.RecordCommit("duplicate")
			log.Warn("import rolled back on uniqueness violation", "error", err)
		default:
			metrics.RecordCommit("failed")
			log.Warn("import rolled back", "error", err)
		}
		return failed, err
	}

	metrics.RecordCommit("committed")
	counts := make(map[string]int)
	for _, item := range result.Items {
		counts[item.Category]++
	}
	for category, n := range counts {
		metrics.RecordCreated(category, n)
	}

	log.Info("import committed", "created", result.CreatedCount, "batch", result.BatchCode)
	return result, nil
}

// commitRows does the work of one commit inside tx. Any error aborts the
// transaction.
func (s *Service) commitRows(ctx context.Context, tx Tx, req Requester, src commitSource) (*CommitResult, error) {
	results, err := NewRowValidator(tx, req, s.policy).WithClock(s.now).ValidateAll(ctx, src.rows)
	if err != nil {
		return nil, fmt.Errorf("revalidate rows: %w", err)
	}

	report := Aggregate(results)
	if !report.Committable() {
		return nil, &RejectedError{Report: report}
	}

	year := s.now().Year()

	batch, err := s.resolveBatch(ctx, tx, req, src.choice, year)
	if err != nil {
		return nil, err
	}

	result := &CommitResult{Items: make([]CreatedItem, 0, len(results))}
	if batch != nil {
		result.BatchCode = batch.Code
	}

	for i, item := range Staged(results) {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		// A row's own batch takes precedence over the import-level choice.
		if item.BatchID == "" && batch != nil {
			item.BatchID = batch.ID
		}

		prefix := CodePrefix(item.Category)
		seq, err := tx.NextSequence(ctx, prefix, year)
		if err != nil {
			return nil, fmt.Errorf("next %s sequence: %w", prefix, err)
		}
		code := FormatItemCode(prefix, year, seq)

		id, err := tx.CreateItem(ctx, NewItem{StagedItem: item, Code: code, CreatedBy: req.ID})
		if err != nil {
			return nil, fmt.Errorf("create item for row %d (serial %s): %w", item.RowNumber, item.Serial, err)
		}

		if item.Extras != nil {
			if err := tx.CreateExtras(ctx, id, item.Extras); err != nil {
				return nil, fmt.Errorf("create %s for row %d: %w", item.Extras.Kind, item.RowNumber, err)
			}
		}

		result.Items = append(result.Items, CreatedItem{
			RowNumber: item.RowNumber,
			ID:        id,
			Code:      code,
			Serial:    item.Serial,
			Tag:       item.Tag,
			Name:      item.Name,
			Category:  item.Category,
		})
	}
	result.CreatedCount = len(result.Items)

	entry := newAuditEntry(ctx, ActionImportCommit, req, s.now())
	entry.FileName = src.fileName
	entry.PreviewToken = src.token
	entry.BatchCode = result.BatchCode
	entry.RowsAffected = result.CreatedCount
	entry.Details = map[string]any{
		"valid":  report.ValidCount,
		"warned": report.WarnedCount,
	}
	if err := tx.RecordAudit(ctx, entry); err != nil {
		return nil, fmt.Errorf("record audit: %w", err)
	}

	return result, nil
}

// resolveBatch creates or finds the import-level batch. It returns nil when
// the import has no batch choice.
func (s *Service) resolveBatch(ctx context.Context, tx Tx, req Requester, choice BatchChoice, year int) (*Batch, error) {
	switch choice.Mode {
	case BatchNew:
		seq, err := tx.NextSequence(ctx, BatchCodePrefix, year)
		if err != nil {
			return nil, fmt.Errorf("next batch sequence: %w", err)
		}
		b, err := tx.CreateBatch(ctx, NewBatch{
			Code:        FormatBatchCode(year, seq),
			Description: choice.Description,
			CreatedBy:   req.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("create batch: %w", err)
		}
		return b, nil

	case BatchExisting:
		b, err := tx.FindBatch(ctx, choice.Code)
		if err != nil {
			return nil, fmt.Errorf("find batch %q: %w", choice.Code, err)
		}
		if b == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBatch, choice.Code)
		}
		return b, nil

	default:
		return nil, nil
	}
}
