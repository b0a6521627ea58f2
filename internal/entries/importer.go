package entries

import (
	"context"
	"fmt"
	"strings"

	"github.com/tempora-app/tempora/internal/shared"
)

// ImportStore runs bulk imports atomically.
type ImportStore interface {
	WithImportTx(ctx context.Context, fn func(tx ImportTx) error) error
}

// ImportObserver counts processed import rows by result.
type ImportObserver interface {
	ObserveImportRows(result string, n int)
}

// Importer applies bulk-import requests exactly once per idempotency key.
// Row-level failures are collected rather than aborting the batch; a repeated
// key is rejected outright without re-diffing row content.
type Importer struct {
	store   ImportStore
	tags    TagSource
	metrics ImportObserver
}

// NewImporter builds an Importer.
func NewImporter(store ImportStore, tags TagSource) *Importer {
	return &Importer{store: store, tags: tags}
}

// WithMetrics attaches a row counter.
func (i *Importer) WithMetrics(m ImportObserver) *Importer {
	i.metrics = m
	return i
}

// ImportBatch inserts the rows for the user under the given idempotency key.
// The key lookup, row inserts, and key record all share one transaction.
func (i *Importer) ImportBatch(ctx context.Context, userID int64, key string, rows []ImportRow) (ImportResult, error) {
	if strings.TrimSpace(key) == "" {
		return ImportResult{}, fmt.Errorf("%w: idempotency key required", shared.ErrValidation)
	}
	if len(rows) == 0 {
		return ImportResult{}, fmt.Errorf("%w: no rows to import", shared.ErrValidation)
	}

	activeTags, err := i.tags.ActiveNames(ctx)
	if err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	err = i.store.WithImportTx(ctx, func(tx ImportTx) error {
		exists, err := tx.KeyExists(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: batch %q already imported", shared.ErrConflict, key)
		}

		for n, row := range rows {
			fields := EntryFields{
				Date:  row.Date,
				Hours: row.Hours,
				Task:  row.Task,
				Notes: row.Notes,
				Tag:   row.Tag,
				Rate:  row.Rate,
			}
			workDate, err := fields.Validate(activeTags)
			if err != nil {
				result.Errors = append(result.Errors, RowError{Row: n, Reason: err.Error()})
				continue
			}

			entry := &TimeEntry{
				UserID:       userID,
				WorkDate:     workDate,
				Hours:        row.Hours,
				Task:         strings.TrimSpace(row.Task),
				Notes:        row.Notes,
				Tag:          row.Tag,
				RateOverride: row.Rate,
			}
			dup, err := tx.FindDuplicate(ctx, entry)
			if err != nil {
				return err
			}
			if dup {
				result.Skipped++
				result.Errors = append(result.Errors, RowError{Row: n, Reason: "duplicate"})
				continue
			}
			if err := tx.Insert(ctx, entry); err != nil {
				return err
			}
			result.Created++
		}

		// Record the key even when rows were skipped so a retry of the same
		// batch fails fast instead of being re-diffed.
		return tx.RecordKey(ctx, userID, key)
	})
	if err != nil {
		return ImportResult{}, err
	}
	i.observeRows("created", result.Created)
	i.observeRows("skipped", result.Skipped)
	i.observeRows("failed", len(result.Errors)-result.Skipped)
	return result, nil
}

func (i *Importer) observeRows(result string, n int) {
	if i.metrics == nil || n <= 0 {
		return
	}
	i.metrics.ObserveImportRows(result, n)
}
