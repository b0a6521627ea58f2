package entries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tempora-app/tempora/internal/platform/db"
	"github.com/tempora-app/tempora/internal/shared"
)

// Repository provides PostgreSQL backed persistence for time entries.
type Repository struct {
	pool        *pgxpool.Pool
	idempotency *shared.IdempotencyStore
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, idempotency: shared.NewIdempotencyStore(pool)}
}

const entryColumns = `id, user_id, work_date, hours, task, notes, tag, rate_override, invoice_id, created_at, updated_at`

// Insert creates an entry row.
func (r *Repository) Insert(ctx context.Context, e *TimeEntry) error {
	return insertEntry(ctx, r.pool, e)
}

// Get retrieves an entry by id.
func (r *Repository) Get(ctx context.Context, id int64) (*TimeEntry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM time_entries WHERE id = $1`, id)
	return scanEntry(row)
}

// Update rewrites the editable fields of an open entry. The invoice_id guard
// in the WHERE clause is what makes invoiced entries immutable: a matched-zero
// update on an existing row means the entry is already attached.
func (r *Repository) Update(ctx context.Context, e *TimeEntry) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE time_entries
		SET work_date = $2, hours = $3, task = $4, notes = $5, tag = $6, rate_override = $7, updated_at = NOW()
		WHERE id = $1 AND invoice_id IS NULL`,
		e.ID, e.WorkDate, numericOf(e.Hours), e.Task, e.Notes, nullString(e.Tag), numericPtr(e.RateOverride))
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return r.openGuardFailure(ctx, e.ID)
	}
	return nil
}

// Delete removes an open entry, with the same guard as Update.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM time_entries WHERE id = $1 AND invoice_id IS NULL`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return r.openGuardFailure(ctx, id)
	}
	return nil
}

func (r *Repository) openGuardFailure(ctx context.Context, id int64) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM time_entries WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: entry %d", shared.ErrNotFound, id)
	}
	return fmt.Errorf("%w: entry %d is attached to an invoice", shared.ErrConflict, id)
}

// ListOpen returns uninvoiced entries for a user whose work date falls within
// [from, to], both ends inclusive on the calendar date.
func (r *Repository) ListOpen(ctx context.Context, userID int64, from, to time.Time) ([]TimeEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM time_entries
		WHERE user_id = $1 AND invoice_id IS NULL AND work_date >= $2::date AND work_date <= $3::date
		ORDER BY work_date, id`,
		userID, DateOf(from), DateOf(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// List returns entries matching the filter with a total count for pagination.
func (r *Repository) List(ctx context.Context, f ListFilter) ([]TimeEntry, int, error) {
	where := ` WHERE user_id = $1`
	args := []any{f.UserID}
	argNum := 2

	if !f.From.IsZero() {
		where += fmt.Sprintf(" AND work_date >= $%d::date", argNum)
		args = append(args, DateOf(f.From))
		argNum++
	}
	if !f.To.IsZero() {
		where += fmt.Sprintf(" AND work_date <= $%d::date", argNum)
		args = append(args, DateOf(f.To))
		argNum++
	}
	if f.Open != nil {
		if *f.Open {
			where += " AND invoice_id IS NULL"
		} else {
			where += " AND invoice_id IS NOT NULL"
		}
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM time_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + entryColumns + ` FROM time_entries` + where + ` ORDER BY work_date DESC, id DESC`
	if f.PerPage > 0 {
		page := f.Page
		if page <= 0 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argNum, argNum+1)
		args = append(args, f.PerPage, (page-1)*f.PerPage)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out, err := collectEntries(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// --- Bulk import ---

// ImportTx exposes the operations a bulk import performs atomically.
type ImportTx interface {
	KeyExists(ctx context.Context, key string) (bool, error)
	FindDuplicate(ctx context.Context, e *TimeEntry) (bool, error)
	Insert(ctx context.Context, e *TimeEntry) error
	RecordKey(ctx context.Context, userID int64, key string) error
}

// WithImportTx runs fn inside a single repeatable-read transaction so a batch
// import's key check, inserts, and key record cannot interleave with a retry.
func (r *Repository) WithImportTx(ctx context.Context, fn func(tx ImportTx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&importTx{tx: tx, idempotency: r.idempotency})
	})
}

type importTx struct {
	tx          pgx.Tx
	idempotency *shared.IdempotencyStore
}

func (t *importTx) KeyExists(ctx context.Context, key string) (bool, error) {
	return t.idempotency.Exists(ctx, t.tx, key)
}

func (t *importTx) RecordKey(ctx context.Context, userID int64, key string) error {
	return t.idempotency.Record(ctx, t.tx, userID, key)
}

func (t *importTx) Insert(ctx context.Context, e *TimeEntry) error {
	return insertEntry(ctx, t.tx, e)
}

func (t *importTx) FindDuplicate(ctx context.Context, e *TimeEntry) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM time_entries
			WHERE user_id = $1 AND work_date = $2::date AND hours = $3 AND task = $4 AND notes = $5
		)`,
		e.UserID, e.WorkDate, numericOf(e.Hours), e.Task, e.Notes).Scan(&exists)
	return exists, err
}

// --- Helpers ---

func insertEntry(ctx context.Context, q querier, e *TimeEntry) error {
	return q.QueryRow(ctx, `
		INSERT INTO time_entries (user_id, work_date, hours, task, notes, tag, rate_override, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		e.UserID, e.WorkDate, numericOf(e.Hours), e.Task, e.Notes, nullString(e.Tag), numericPtr(e.RateOverride),
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func collectEntries(rows pgx.Rows) ([]TimeEntry, error) {
	var out []TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*TimeEntry, error) {
	var e TimeEntry
	var hours pgtype.Numeric
	var tag pgtype.Text
	var rate pgtype.Numeric
	var invoiceID pgtype.Int8
	err := row.Scan(&e.ID, &e.UserID, &e.WorkDate, &hours, &e.Task, &e.Notes, &tag, &rate, &invoiceID, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: entry", shared.ErrNotFound)
	}
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
		return decimal.Decimal{}, fmt.Errorf("entries: unexpected numeric driver value %T", v)
	}
	return decimal.NewFromString(s)
}

func numericOf(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}

func numericPtr(d *decimal.Decimal) pgtype.Numeric {
	if d == nil {
		return pgtype.Numeric{}
	}
	return numericOf(*d)
}

func nullString(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
