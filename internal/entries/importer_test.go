package entries

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tempora-app/tempora/internal/shared"
)

type memoryImportStore struct {
	ledger *memoryLedger
}

func (s *memoryImportStore) WithImportTx(ctx context.Context, fn func(tx ImportTx) error) error {
	snapshotEntries := make(map[int64]*TimeEntry, len(s.ledger.entries))
	for id, e := range s.ledger.entries {
		copied := *e
		snapshotEntries[id] = &copied
	}
	snapshotKeys := make(map[string]int64, len(s.ledger.keys))
	for k, v := range s.ledger.keys {
		snapshotKeys[k] = v
	}
	if err := fn(&memoryImportTx{ledger: s.ledger}); err != nil {
		s.ledger.entries = snapshotEntries
		s.ledger.keys = snapshotKeys
		return err
	}
	return nil
}

type memoryImportTx struct {
	ledger *memoryLedger
}

func (t *memoryImportTx) KeyExists(ctx context.Context, key string) (bool, error) {
	_, ok := t.ledger.keys[key]
	return ok, nil
}

func (t *memoryImportTx) FindDuplicate(ctx context.Context, e *TimeEntry) (bool, error) {
	for _, stored := range t.ledger.entries {
		if stored.UserID == e.UserID && stored.WorkDate.Equal(e.WorkDate) &&
			stored.Hours.Equal(e.Hours) && stored.Task == e.Task && stored.Notes == e.Notes {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryImportTx) Insert(ctx context.Context, e *TimeEntry) error {
	return t.ledger.Insert(ctx, e)
}

func (t *memoryImportTx) RecordKey(ctx context.Context, userID int64, key string) error {
	t.ledger.keys[key] = userID
	return nil
}

func sampleRows() []ImportRow {
	return []ImportRow{
		{Date: "2026-01-05", Hours: decimal.RequireFromString("3"), Task: "API integration", Tag: "development"},
		{Date: "2026-01-06", Hours: decimal.RequireFromString("5"), Task: "API integration", Tag: "development"},
	}
}

func newTestImporter() (*Importer, *memoryLedger) {
	ledger := newMemoryLedger()
	return NewImporter(&memoryImportStore{ledger: ledger}, staticTags{"development"}), ledger
}

type importCounts map[string]int

func (c importCounts) ObserveImportRows(result string, n int) {
	c[result] += n
}

func TestImportBatchCountsRowOutcomes(t *testing.T) {
	importer, _ := newTestImporter()
	counts := importCounts{}
	importer = importer.WithMetrics(counts)

	rows := append(sampleRows(), ImportRow{Date: "not-a-date", Hours: decimal.RequireFromString("2"), Task: "review"})
	_, err := importer.ImportBatch(context.Background(), 2, "batch-counted", rows)
	require.NoError(t, err)
	require.Equal(t, importCounts{"created": 2, "failed": 1}, counts)

	// A fresh key over the same rows skips them as duplicates.
	_, err = importer.ImportBatch(context.Background(), 2, "batch-counted-2", sampleRows())
	require.NoError(t, err)
	require.Equal(t, importCounts{"created": 2, "failed": 1, "skipped": 2}, counts)
}

func TestImportBatchCreatesRows(t *testing.T) {
	importer, ledger := newTestImporter()

	result, err := importer.ImportBatch(context.Background(), 2, "batch-1", sampleRows())
	require.NoError(t, err)
	require.Equal(t, 2, result.Created)
	require.Zero(t, result.Skipped)
	require.Empty(t, result.Errors)
	require.Len(t, ledger.entries, 2)
}

func TestImportBatchRejectsReplayedKey(t *testing.T) {
	importer, ledger := newTestImporter()

	_, err := importer.ImportBatch(context.Background(), 2, "batch-1", sampleRows())
	require.NoError(t, err)

	_, err = importer.ImportBatch(context.Background(), 2, "batch-1", sampleRows())
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Len(t, ledger.entries, 2)
}

func TestImportBatchSkipsDuplicateRows(t *testing.T) {
	importer, ledger := newTestImporter()

	_, err := importer.ImportBatch(context.Background(), 2, "batch-1", sampleRows())
	require.NoError(t, err)

	// Same content under a fresh key: rows are skipped, the key is consumed.
	result, err := importer.ImportBatch(context.Background(), 2, "batch-2", sampleRows())
	require.NoError(t, err)
	require.Zero(t, result.Created)
	require.Equal(t, 2, result.Skipped)
	require.Len(t, result.Errors, 2)
	require.Equal(t, "duplicate", result.Errors[0].Reason)
	require.Len(t, ledger.entries, 2)

	_, err = importer.ImportBatch(context.Background(), 2, "batch-2", sampleRows())
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestImportBatchCollectsRowErrors(t *testing.T) {
	importer, ledger := newTestImporter()

	rows := sampleRows()
	rows = append(rows, ImportRow{Date: "bad", Hours: decimal.RequireFromString("1"), Task: "X"})
	rows = append(rows, ImportRow{Date: "2026-01-07", Hours: decimal.Zero, Task: "X"})

	result, err := importer.ImportBatch(context.Background(), 2, "batch-1", rows)
	require.NoError(t, err)
	require.Equal(t, 2, result.Created)
	require.Len(t, result.Errors, 2)
	require.Equal(t, 2, result.Errors[0].Row)
	require.Equal(t, 3, result.Errors[1].Row)
	require.Len(t, ledger.entries, 2)
}

func TestImportBatchValidatesRequest(t *testing.T) {
	importer, _ := newTestImporter()

	_, err := importer.ImportBatch(context.Background(), 2, "  ", sampleRows())
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = importer.ImportBatch(context.Background(), 2, "batch-1", nil)
	require.ErrorIs(t, err, shared.ErrValidation)
}
