package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tempora-app/tempora/internal/entries"
	"github.com/tempora-app/tempora/internal/period"
	"github.com/tempora-app/tempora/internal/shared"
	"github.com/tempora-app/tempora/internal/users"
)

// UserDirectory resolves account details needed for rates and notifications.
type UserDirectory interface {
	Get(ctx context.Context, id int64) (*users.User, error)
	ListActive(ctx context.Context) ([]users.User, error)
}

// SubmittedNotice is handed to the notifier after a submit commits.
type SubmittedNotice struct {
	InvoiceID   int64
	UserID      int64
	UserName    string
	Total       decimal.Decimal
	PeriodStart time.Time
	PeriodEnd   time.Time
	AdminEmails []string
}

// PaidNotice is handed to the notifier after a payment commits.
type PaidNotice struct {
	InvoiceID  int64
	OwnerEmail string
	OwnerName  string
	Total      decimal.Decimal
	PaidAt     time.Time
}

// Notifier hands committed transitions off to an asynchronous queue. Errors
// from the handoff are logged by the caller and never surfaced; delivery
// itself happens in the worker.
type Notifier interface {
	InvoiceSubmitted(ctx context.Context, n SubmittedNotice) error
	InvoicePaid(ctx context.Context, n PaidNotice) error
}

// Service is the invoice lifecycle manager. It owns status transitions and
// their transactional guarantees: every state change runs reads-then-writes
// inside one repeatable-read transaction with its audit record.
type Service struct {
	store    Store
	users    UserDirectory
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(store Store, users UserDirectory, notifier Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		users:    users,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Submit bundles the user's open entries for the current period into a new
// submitted invoice. Exactly one non-cancelled invoice may exist per period;
// a second submit in the same week fails with a conflict and changes nothing.
func (s *Service) Submit(ctx context.Context, userID int64, settings period.Settings) (*Invoice, error) {
	loc, err := settings.Location()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	p := period.Current(s.now(), loc)

	owner, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	var inv *Invoice
	err = s.store.WithTx(ctx, func(tx TxStore) error {
		existing, err := tx.ActiveForPeriod(ctx, userID, p.Start, p.End)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: invoice %d already covers this period", shared.ErrConflict, existing.ID)
		}

		open, err := tx.OpenEntries(ctx, userID, p.Start, p.End)
		if err != nil {
			return err
		}
		if len(open) == 0 {
			return fmt.Errorf("%w: no open entries in the current period", shared.ErrValidation)
		}

		total, err := invoiceTotal(open, owner.HourlyRate)
		if err != nil {
			return err
		}

		inv = &Invoice{
			UserID:      userID,
			PeriodStart: p.Start,
			PeriodEnd:   p.End,
			Total:       total,
			Status:      StatusSubmitted,
		}
		if err := tx.Insert(ctx, inv); err != nil {
			return err
		}

		ids := make([]int64, len(open))
		for i, e := range open {
			ids[i] = e.ID
		}
		if err := tx.AttachEntries(ctx, ids, inv.ID); err != nil {
			return err
		}

		return tx.Audit(ctx, shared.AuditLog{
			ActorID:  userID,
			Action:   "invoice.submit",
			Entity:   "invoice",
			EntityID: fmt.Sprint(inv.ID),
			Meta: map[string]any{
				"total":        inv.Total.String(),
				"entries":      len(ids),
				"period_start": p.Start,
				"period_end":   p.End,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifySubmitted(ctx, inv, owner)
	return inv, nil
}

// invoiceTotal computes per-entry amounts rounded to cents first and then the
// rounded sum. The per-entry-then-sum order is a behavioral contract: audit
// totals are built the same way, and changing it shifts totals by fractions
// of a cent.
func invoiceTotal(open []entries.TimeEntry, userRate *decimal.Decimal) (decimal.Decimal, error) {
	var total decimal.Decimal
	for _, e := range open {
		rate := userRate
		if e.RateOverride != nil {
			rate = e.RateOverride
		}
		if rate == nil || rate.Sign() <= 0 {
			return decimal.Decimal{}, fmt.Errorf("%w: no billable rate for entry %d", shared.ErrValidation, e.ID)
		}
		if e.Hours.Sign() <= 0 {
			return decimal.Decimal{}, fmt.Errorf("%w: entry %d has non-positive hours", shared.ErrValidation, e.ID)
		}
		total = total.Add(e.Hours.Mul(*rate).Round(2))
	}
	return total.Round(2), nil
}

// Approve moves a submitted invoice to approved. The swap is idempotent: if
// another admin already advanced the status the call succeeds and returns the
// invoice as persisted.
func (s *Service) Approve(ctx context.Context, invoiceID, adminID int64) (*Invoice, error) {
	var inv *Invoice
	err := s.store.WithTx(ctx, func(tx TxStore) error {
		current, err := tx.Get(ctx, invoiceID)
		if err != nil {
			return err
		}
		if current.Status != StatusSubmitted {
			inv = current
			return nil
		}

		at := s.now()
		swapped, err := tx.CompareAndSwapStatus(ctx, invoiceID, StatusChange{
			From:       []Status{StatusSubmitted},
			To:         StatusApproved,
			ApprovedBy: &adminID,
			ApprovedAt: &at,
		})
		if err != nil {
			return err
		}
		if !swapped {
			inv = current
			return nil
		}

		current.Status = StatusApproved
		current.ApprovedAt = &at
		current.ApprovedBy = &adminID
		inv = current
		return tx.Audit(ctx, shared.AuditLog{
			ActorID:  adminID,
			Action:   "invoice.approve",
			Entity:   "invoice",
			EntityID: fmt.Sprint(invoiceID),
		})
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// MarkPaid settles a submitted or approved invoice. Explicit approval may be
// skipped, so both source states are accepted; paying twice conflicts.
func (s *Service) MarkPaid(ctx context.Context, invoiceID, adminID int64) (*Invoice, error) {
	var inv *Invoice
	err := s.store.WithTx(ctx, func(tx TxStore) error {
		current, err := tx.Get(ctx, invoiceID)
		if err != nil {
			return err
		}
		switch current.Status {
		case StatusPaid:
			return fmt.Errorf("%w: invoice %d already paid", shared.ErrConflict, invoiceID)
		case StatusCancelled:
			return fmt.Errorf("%w: invoice %d is cancelled", shared.ErrConflict, invoiceID)
		}

		at := s.now()
		swapped, err := tx.CompareAndSwapStatus(ctx, invoiceID, StatusChange{
			From:   []Status{StatusSubmitted, StatusApproved},
			To:     StatusPaid,
			PaidBy: &adminID,
			PaidAt: &at,
		})
		if err != nil {
			return err
		}
		if !swapped {
			return fmt.Errorf("%w: invoice %d changed concurrently", shared.ErrConflict, invoiceID)
		}

		current.Status = StatusPaid
		current.PaidAt = &at
		current.PaidBy = &adminID
		inv = current
		return tx.Audit(ctx, shared.AuditLog{
			ActorID:  adminID,
			Action:   "invoice.pay",
			Entity:   "invoice",
			EntityID: fmt.Sprint(invoiceID),
			Meta:     map[string]any{"total": current.Total.String()},
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyPaid(ctx, inv)
	return inv, nil
}

// RevertToDraft detaches all entries from a non-paid invoice, reopening them
// for editing, and cancels the invoice row. The row stays behind for the
// audit trail; re-submitting the period creates a fresh invoice.
func (s *Service) RevertToDraft(ctx context.Context, invoiceID, adminID int64) (*Invoice, error) {
	return s.release(ctx, invoiceID, adminID, "invoice.revert")
}

// Cancel is the same transition as RevertToDraft under a different audit
// action: entries reopen and the invoice is marked cancelled.
func (s *Service) Cancel(ctx context.Context, invoiceID, adminID int64) (*Invoice, error) {
	return s.release(ctx, invoiceID, adminID, "invoice.cancel")
}

func (s *Service) release(ctx context.Context, invoiceID, adminID int64, action string) (*Invoice, error) {
	var inv *Invoice
	err := s.store.WithTx(ctx, func(tx TxStore) error {
		current, err := tx.Get(ctx, invoiceID)
		if err != nil {
			return err
		}
		if current.Status == StatusPaid {
			return fmt.Errorf("%w: invoice %d already paid", shared.ErrConflict, invoiceID)
		}

		detached, err := tx.DetachEntries(ctx, invoiceID)
		if err != nil {
			return err
		}

		if current.Status != StatusCancelled {
			swapped, err := tx.CompareAndSwapStatus(ctx, invoiceID, StatusChange{
				From: []Status{StatusSubmitted, StatusApproved},
				To:   StatusCancelled,
			})
			if err != nil {
				return err
			}
			if !swapped {
				return fmt.Errorf("%w: invoice %d changed concurrently", shared.ErrConflict, invoiceID)
			}
			current.Status = StatusCancelled
		}

		inv = current
		return tx.Audit(ctx, shared.AuditLog{
			ActorID:  adminID,
			Action:   action,
			Entity:   "invoice",
			EntityID: fmt.Sprint(invoiceID),
			Meta:     map[string]any{"entries_detached": detached},
		})
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// Get returns an invoice with its entries, scoped to the owner unless the
// caller is an admin.
func (s *Service) Get(ctx context.Context, invoiceID int64, actor shared.Actor) (*InvoiceWithEntries, error) {
	inv, err := s.store.GetWithEntries(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && inv.UserID != actor.UserID {
		return nil, fmt.Errorf("%w: invoice %d", shared.ErrNotFound, invoiceID)
	}
	return inv, nil
}

// List returns invoices for the filter. Non-admin callers are pinned to their
// own invoices.
func (s *Service) List(ctx context.Context, f ListFilter, actor shared.Actor) ([]Invoice, error) {
	if !actor.IsAdmin() {
		f.UserID = actor.UserID
	}
	return s.store.List(ctx, f)
}

// --- Post-commit notification handoff ---

// notifySubmitted hands the committed submit to the queue. The surrounding
// request may already be cancelled, which must not retract the handoff, so
// the enqueue runs on a detached context. Failures are logged and dropped.
func (s *Service) notifySubmitted(ctx context.Context, inv *Invoice, owner *users.User) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	active, err := s.users.ListActive(ctx)
	if err != nil {
		s.logger.Error("resolve admins for submit notification", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
		return
	}
	var adminEmails []string
	for _, u := range active {
		if u.Role == users.RoleAdmin {
			adminEmails = append(adminEmails, u.Email)
		}
	}

	err = s.notifier.InvoiceSubmitted(ctx, SubmittedNotice{
		InvoiceID:   inv.ID,
		UserID:      inv.UserID,
		UserName:    owner.Name,
		Total:       inv.Total,
		PeriodStart: inv.PeriodStart,
		PeriodEnd:   inv.PeriodEnd,
		AdminEmails: adminEmails,
	})
	if err != nil {
		s.logger.Error("enqueue submit notification", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
	}
}

// notifyPaid hands the committed payment to the queue. A failed handoff is
// recorded as an audit entry for operational follow-up, never surfaced to the
// caller and never retried here.
func (s *Service) notifyPaid(ctx context.Context, inv *Invoice) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	owner, err := s.users.Get(ctx, inv.UserID)
	if err != nil {
		s.logger.Error("resolve owner for paid notification", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
		return
	}

	err = s.notifier.InvoicePaid(ctx, PaidNotice{
		InvoiceID:  inv.ID,
		OwnerEmail: owner.Email,
		OwnerName:  owner.Name,
		Total:      inv.Total,
		PaidAt:     *inv.PaidAt,
	})
	if err != nil {
		s.logger.Error("enqueue paid notification", slog.Int64("invoice_id", inv.ID), slog.Any("error", err))
		if auditErr := s.store.Audit(ctx, shared.AuditLog{
			ActorID:  inv.UserID,
			Action:   "invoice.notify_failed",
			Entity:   "invoice",
			EntityID: fmt.Sprint(inv.ID),
			Meta:     map[string]any{"error": err.Error()},
		}); auditErr != nil {
			s.logger.Error("record notification failure", slog.Int64("invoice_id", inv.ID), slog.Any("error", auditErr))
		}
	}
}
