package invoices

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tempora-app/tempora/internal/entries"
)

// Status enumerates persisted invoice statuses. There is no persisted draft:
// entries before invoicing are simply open, and reverting an invoice returns
// its entries to that state while the row itself becomes cancelled.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Invoice bills one user's open entries for one work week. At most one
// non-cancelled invoice may exist per (user, period start, period end); rows
// are never deleted so the audit trail stays intact.
type Invoice struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	PeriodStart time.Time       `json:"period_start"`
	PeriodEnd   time.Time       `json:"period_end"`
	Total       decimal.Decimal `json:"total"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	ApprovedAt  *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy  *int64          `json:"approved_by,omitempty"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	PaidBy      *int64          `json:"paid_by,omitempty"`
}

// Active reports whether the invoice still occupies its period slot.
func (i Invoice) Active() bool {
	return i.Status != StatusCancelled
}

// InvoiceWithEntries bundles an invoice with its attached entries.
type InvoiceWithEntries struct {
	Invoice
	Entries []entries.TimeEntry `json:"entries"`
}

// StatusChange describes a compare-and-swap on the invoice status. The swap
// only applies when the persisted status is one of From, which is what keeps
// concurrent conflicting transitions from corrupting state.
type StatusChange struct {
	From       []Status
	To         Status
	ApprovedBy *int64
	ApprovedAt *time.Time
	PaidBy     *int64
	PaidAt     *time.Time
}

// ListFilter narrows invoice listings.
type ListFilter struct {
	UserID int64
	Status Status
	Limit  int
	Offset int
}
