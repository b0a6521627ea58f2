package entries

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tempora-app/tempora/internal/shared"
)

// DateLayout is the calendar-date wire format for work dates.
const DateLayout = "2006-01-02"

// DateOf returns t's calendar date in t's own zone, in DateLayout form.
// Period bounds carry the billing zone, so the day never shifts to the
// database session's zone when the value reaches a date comparison.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

var maxHours = decimal.NewFromInt(24)

// TimeEntry is a unit of logged work. Entries are mutable only while open;
// once InvoiceID is set the row is frozen until the invoice is reverted.
type TimeEntry struct {
	ID           int64            `json:"id"`
	UserID       int64            `json:"user_id"`
	WorkDate     time.Time        `json:"work_date"`
	Hours        decimal.Decimal  `json:"hours"`
	Task         string           `json:"task"`
	Notes        string           `json:"notes"`
	Tag          string           `json:"tag,omitempty"`
	RateOverride *decimal.Decimal `json:"rate_override,omitempty"`
	InvoiceID    *int64           `json:"invoice_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// Open reports whether the entry is not yet attached to an invoice.
func (e TimeEntry) Open() bool {
	return e.InvoiceID == nil
}

// EntryFields carries the user-editable portion of an entry. Date is the
// calendar date in YYYY-MM-DD form; Hours must land in (0, 24].
type EntryFields struct {
	Date  string
	Hours decimal.Decimal
	Task  string
	Notes string
	Tag   string
	Rate  *decimal.Decimal
}

// Validate checks the fields against the ledger rules and resolves the work
// date. The active tag set is matched case sensitively.
func (f EntryFields) Validate(activeTags []string) (time.Time, error) {
	workDate, err := time.Parse(DateLayout, f.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", shared.ErrValidation, f.Date)
	}
	if f.Hours.Sign() <= 0 || f.Hours.Cmp(maxHours) > 0 {
		return time.Time{}, fmt.Errorf("%w: hours must be greater than 0 and at most 24, got %s", shared.ErrValidation, f.Hours)
	}
	if strings.TrimSpace(f.Task) == "" {
		return time.Time{}, fmt.Errorf("%w: task is required", shared.ErrValidation)
	}
	if f.Rate != nil && f.Rate.Sign() <= 0 {
		return time.Time{}, fmt.Errorf("%w: rate override must be positive", shared.ErrValidation)
	}
	if f.Tag != "" {
		found := false
		for _, t := range activeTags {
			if t == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return time.Time{}, fmt.Errorf("%w: unknown tag %q, allowed: %s", shared.ErrValidation, f.Tag, strings.Join(activeTags, ", "))
		}
	}
	return workDate, nil
}

// ListFilter narrows entry listings.
type ListFilter struct {
	UserID  int64
	From    time.Time
	To      time.Time
	Open    *bool
	Page    int
	PerPage int
}

// ImportRow is one row of a bulk import request.
type ImportRow struct {
	Date  string           `json:"date"`
	Hours decimal.Decimal  `json:"hours"`
	Task  string           `json:"task"`
	Notes string           `json:"notes"`
	Tag   string           `json:"tag,omitempty"`
	Rate  *decimal.Decimal `json:"rate,omitempty"`
}

// RowError reports why a single import row was rejected or skipped.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportResult summarises a bulk import.
type ImportResult struct {
	Created int        `json:"created"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors"`
}
