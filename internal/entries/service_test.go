package entries

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/tempora-app/tempora/internal/shared"
)

type memoryLedger struct {
	entries map[int64]*TimeEntry
	keys    map[string]int64
	nextID  int64
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		entries: make(map[int64]*TimeEntry),
		keys:    make(map[string]int64),
	}
}

func (m *memoryLedger) Insert(ctx context.Context, e *TimeEntry) error {
	m.nextID++
	e.ID = m.nextID
	copied := *e
	m.entries[e.ID] = &copied
	return nil
}

func (m *memoryLedger) Get(ctx context.Context, id int64) (*TimeEntry, error) {
	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: entry %d", shared.ErrNotFound, id)
	}
	copied := *e
	return &copied, nil
}

func (m *memoryLedger) Update(ctx context.Context, e *TimeEntry) error {
	stored, ok := m.entries[e.ID]
	if !ok {
		return fmt.Errorf("%w: entry %d", shared.ErrNotFound, e.ID)
	}
	if !stored.Open() {
		return fmt.Errorf("%w: entry %d is attached to an invoice", shared.ErrConflict, e.ID)
	}
	copied := *e
	m.entries[e.ID] = &copied
	return nil
}

func (m *memoryLedger) Delete(ctx context.Context, id int64) error {
	stored, ok := m.entries[id]
	if !ok {
		return fmt.Errorf("%w: entry %d", shared.ErrNotFound, id)
	}
	if !stored.Open() {
		return fmt.Errorf("%w: entry %d is attached to an invoice", shared.ErrConflict, id)
	}
	delete(m.entries, id)
	return nil
}

func (m *memoryLedger) ListOpen(ctx context.Context, userID int64, from, to time.Time) ([]TimeEntry, error) {
	var out []TimeEntry
	for _, e := range m.entries {
		if e.UserID == userID && e.Open() && !e.WorkDate.Before(from) && !e.WorkDate.After(to) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memoryLedger) List(ctx context.Context, f ListFilter) ([]TimeEntry, int, error) {
	var out []TimeEntry
	for _, e := range m.entries {
		if e.UserID == f.UserID {
			out = append(out, *e)
		}
	}
	return out, len(out), nil
}

type staticTags []string

func (t staticTags) ActiveNames(ctx context.Context) ([]string, error) {
	return t, nil
}

func validFields() EntryFields {
	return EntryFields{
		Date:  "2026-01-05",
		Hours: decimal.RequireFromString("3.5"),
		Task:  "API integration",
		Tag:   "development",
	}
}

func TestCreateValidEntry(t *testing.T) {
	repo := newMemoryLedger()
	svc := NewService(repo, staticTags{"development", "meeting"})

	e, err := svc.Create(context.Background(), 2, validFields())
	require.NoError(t, err)
	require.NotZero(t, e.ID)
	require.Equal(t, time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC), e.WorkDate)
	require.True(t, e.Open())
}

func TestCreateValidationFailures(t *testing.T) {
	repo := newMemoryLedger()
	svc := NewService(repo, staticTags{"development"})

	cases := []struct {
		name   string
		mutate func(*EntryFields)
	}{
		{"bad date", func(f *EntryFields) { f.Date = "05/01/2026" }},
		{"zero hours", func(f *EntryFields) { f.Hours = decimal.Zero }},
		{"too many hours", func(f *EntryFields) { f.Hours = decimal.RequireFromString("24.5") }},
		{"blank task", func(f *EntryFields) { f.Task = "   " }},
		{"unknown tag", func(f *EntryFields) { f.Tag = "Development" }},
		{"negative rate", func(f *EntryFields) { f.Rate = decPtr("-10") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fields := validFields()
			tc.mutate(&fields)
			_, err := svc.Create(context.Background(), 2, fields)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
	require.Empty(t, repo.entries)
}

func TestBoundaryHoursAccepted(t *testing.T) {
	repo := newMemoryLedger()
	svc := NewService(repo, staticTags{"development"})

	fields := validFields()
	fields.Hours = decimal.RequireFromString("24")
	_, err := svc.Create(context.Background(), 2, fields)
	require.NoError(t, err)

	fields.Hours = decimal.RequireFromString("0.25")
	_, err = svc.Create(context.Background(), 2, fields)
	require.NoError(t, err)
}

func TestUpdateInvoicedEntryConflicts(t *testing.T) {
	repo := newMemoryLedger()
	svc := NewService(repo, staticTags{"development"})

	e, err := svc.Create(context.Background(), 2, validFields())
	require.NoError(t, err)

	invoiceID := int64(9)
	repo.entries[e.ID].InvoiceID = &invoiceID

	_, err = svc.Update(context.Background(), 2, e.ID, validFields())
	require.ErrorIs(t, err, shared.ErrConflict)

	err = svc.Delete(context.Background(), 2, e.ID)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestEntryOwnershipHidesForeignRows(t *testing.T) {
	repo := newMemoryLedger()
	svc := NewService(repo, staticTags{"development"})

	e, err := svc.Create(context.Background(), 2, validFields())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), 3, e.ID, validFields())
	require.ErrorIs(t, err, shared.ErrNotFound)

	err = svc.Delete(context.Background(), 3, e.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestListRequiresUser(t *testing.T) {
	svc := NewService(newMemoryLedger(), staticTags{})

	_, _, err := svc.List(context.Background(), ListFilter{})
	require.Error(t, err)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
