package invoices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tempora-app/tempora/internal/entries"
	"github.com/tempora-app/tempora/internal/platform/db"
	"github.com/tempora-app/tempora/internal/shared"
)

// Store is the persistence port the lifecycle service drives.
type Store interface {
	WithTx(ctx context.Context, fn func(tx TxStore) error) error
	Get(ctx context.Context, id int64) (*Invoice, error)
	GetWithEntries(ctx context.Context, id int64) (*InvoiceWithEntries, error)
	List(ctx context.Context, f ListFilter) ([]Invoice, error)
	HasActiveForPeriod(ctx context.Context, userID int64, start, end time.Time) (bool, error)
	Audit(ctx context.Context, log shared.AuditLog) error
}

// TxStore exposes the operations a lifecycle transition performs atomically.
// Every state-changing operation runs its reads-then-writes through one of
// these inside a single repeatable-read transaction.
type TxStore interface {
	ActiveForPeriod(ctx context.Context, userID int64, start, end time.Time) (*Invoice, error)
	OpenEntries(ctx context.Context, userID int64, from, to time.Time) ([]entries.TimeEntry, error)
	Insert(ctx context.Context, inv *Invoice) error
	AttachEntries(ctx context.Context, entryIDs []int64, invoiceID int64) error
	DetachEntries(ctx context.Context, invoiceID int64) (int, error)
	Get(ctx context.Context, id int64) (*Invoice, error)
	CompareAndSwapStatus(ctx context.Context, id int64, change StatusChange) (bool, error)
	Audit(ctx context.Context, log shared.AuditLog) error
}

// Repository provides PostgreSQL backed persistence for invoices.
type Repository struct {
	pool  *pgxpool.Pool
	audit *shared.AuditLogger
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, audit: shared.NewAuditLogger()}
}

const invoiceColumns = `id, user_id, period_start, period_end, total, status, created_at, approved_at, approved_by, paid_at, paid_by`

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&txStore{tx: tx, audit: r.audit})
	})
}

// Get retrieves an invoice by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	return scanInvoice(row)
}

// GetWithEntries retrieves an invoice along with its attached entries.
func (r *Repository) GetWithEntries(ctx context.Context, id int64) (*InvoiceWithEntries, error) {
	inv, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, work_date, hours, task, notes, tag, rate_override, invoice_id, created_at, updated_at
		FROM time_entries WHERE invoice_id = $1 ORDER BY work_date, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attached []entries.TimeEntry
	for rows.Next() {
		e, err := scanAttachedEntry(rows)
		if err != nil {
			return nil, err
		}
		attached = append(attached, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &InvoiceWithEntries{Invoice: *inv, Entries: attached}, nil
}

// List returns invoices matching the filter, newest first.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	args := []any{}
	argNum := 1

	if f.UserID > 0 {
		query += fmt.Sprintf(" AND user_id = $%d", argNum)
		args = append(args, f.UserID)
		argNum++
	}
	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(f.Status))
		argNum++
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, f.Limit)
		argNum++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, f.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

// HasActiveForPeriod reports whether a non-cancelled invoice occupies the
// period slot. Read-only variant used by the deadline report.
func (r *Repository) HasActiveForPeriod(ctx context.Context, userID int64, start, end time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM invoices
			WHERE user_id = $1 AND period_start = $2 AND period_end = $3 AND status <> 'cancelled'
		)`, userID, start, end).Scan(&exists)
	return exists, err
}

// Audit records an audit entry outside a lifecycle transaction, used for
// post-commit notification failures.
func (r *Repository) Audit(ctx context.Context, log shared.AuditLog) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return r.audit.Record(ctx, tx, log)
	})
}

// --- Transaction-scoped store ---

type txStore struct {
	tx    pgx.Tx
	audit *shared.AuditLogger
}

func (t *txStore) ActiveForPeriod(ctx context.Context, userID int64, start, end time.Time) (*Invoice, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE user_id = $1 AND period_start = $2 AND period_end = $3 AND status <> 'cancelled'
		FOR UPDATE`, userID, start, end)
	inv, err := scanInvoice(row)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return inv, err
}

func (t *txStore) OpenEntries(ctx context.Context, userID int64, from, to time.Time) ([]entries.TimeEntry, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, user_id, work_date, hours, task, notes, tag, rate_override, invoice_id, created_at, updated_at
		FROM time_entries
		WHERE user_id = $1 AND invoice_id IS NULL AND work_date >= $2::date AND work_date <= $3::date
		ORDER BY work_date, id
		FOR UPDATE`, userID, entries.DateOf(from), entries.DateOf(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entries.TimeEntry
	for rows.Next() {
		e, err := scanAttachedEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (t *txStore) Insert(ctx context.Context, inv *Invoice) error {
	var total pgtype.Numeric
	if err := total.Scan(inv.Total.String()); err != nil {
		return err
	}
	return t.tx.QueryRow(ctx, `
		INSERT INTO invoices (user_id, period_start, period_end, total, status, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at`,
		inv.UserID, inv.PeriodStart, inv.PeriodEnd, total, string(inv.Status),
	).Scan(&inv.ID, &inv.CreatedAt)
}

func (t *txStore) AttachEntries(ctx context.Context, entryIDs []int64, invoiceID int64) error {
	res, err := t.tx.Exec(ctx, `
		UPDATE time_entries SET invoice_id = $1, updated_at = NOW()
		WHERE id = ANY($2) AND invoice_id IS NULL`, invoiceID, entryIDs)
	if err != nil {
		return err
	}
	if int(res.RowsAffected()) != len(entryIDs) {
		return fmt.Errorf("%w: %d of %d entries no longer open", shared.ErrConflict, len(entryIDs)-int(res.RowsAffected()), len(entryIDs))
	}
	return nil
}

func (t *txStore) DetachEntries(ctx context.Context, invoiceID int64) (int, error) {
	res, err := t.tx.Exec(ctx, `
		UPDATE time_entries SET invoice_id = NULL, updated_at = NOW()
		WHERE invoice_id = $1`, invoiceID)
	if err != nil {
		return 0, err
	}
	return int(res.RowsAffected()), nil
}

func (t *txStore) Get(ctx context.Context, id int64) (*Invoice, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
	return scanInvoice(row)
}

func (t *txStore) CompareAndSwapStatus(ctx context.Context, id int64, change StatusChange) (bool, error) {
	from := make([]string, len(change.From))
	for i, s := range change.From {
		from[i] = string(s)
	}
	res, err := t.tx.Exec(ctx, `
		UPDATE invoices
		SET status = $2,
		    approved_at = COALESCE($3, approved_at),
		    approved_by = COALESCE($4, approved_by),
		    paid_at = COALESCE($5, paid_at),
		    paid_by = COALESCE($6, paid_by)
		WHERE id = $1 AND status = ANY($7)`,
		id, string(change.To),
		nullTime(change.ApprovedAt), nullInt(change.ApprovedBy),
		nullTime(change.PaidAt), nullInt(change.PaidBy),
		from)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() == 1, nil
}

func (t *txStore) Audit(ctx context.Context, log shared.AuditLog) error {
	return t.audit.Record(ctx, t.tx, log)
}

// --- Scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*Invoice, error) {
	var inv Invoice
	var total pgtype.Numeric
	var status string
	var approvedAt, paidAt pgtype.Timestamptz
	var approvedBy, paidBy pgtype.Int8

	err := row.Scan(&inv.ID, &inv.UserID, &inv.PeriodStart, &inv.PeriodEnd, &total, &status,
		&inv.CreatedAt, &approvedAt, &approvedBy, &paidAt, &paidBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: invoice", shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	inv.Status = Status(status)
	if inv.Total, err = decimalOf(total); err != nil {
		return nil, err
	}
	if approvedAt.Valid {
		inv.ApprovedAt = &approvedAt.Time
	}
	if approvedBy.Valid {
		inv.ApprovedBy = &approvedBy.Int64
	}
	if paidAt.Valid {
		inv.PaidAt = &paidAt.Time
	}
	if paidBy.Valid {
		inv.PaidBy = &paidBy.Int64
	}
	return &inv, nil
}

func scanAttachedEntry(row rowScanner) (*entries.TimeEntry, error) {
	var e entries.TimeEntry
	var hours, rate pgtype.Numeric
	var tag pgtype.Text
	var invoiceID pgtype.Int8
	err := row.Scan(&e.ID, &e.UserID, &e.WorkDate, &hours, &e.Task, &e.Notes, &tag, &rate, &invoiceID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if e.Hours, err = decimalOf(hours); err != nil {
		return nil, err
	}
	if tag.Valid {
		e.Tag = tag.String
	}
	if rate.Valid {
		d, err := decimalOf(rate)
		if err != nil {
			return nil, err
		}
		e.RateOverride = &d
	}
	if invoiceID.Valid {
		e.InvoiceID = &invoiceID.Int64
	}
	return &e, nil
}

func decimalOf(n pgtype.Numeric) (decimal.Decimal, error) {
	v, err := n.Value()
	if err != nil {
		return decimal.Decimal{}, err
	}
	s, ok := v.(string)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("invoices: unexpected numeric driver value %T", v)
	}
	return decimal.NewFromString(s)
}

func nullTime(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func nullInt(i *int64) pgtype.Int8 {
	if i == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *i, Valid: true}
}
