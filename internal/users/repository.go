package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tempora-app/tempora/internal/shared"
)

// Repository provides PostgreSQL backed persistence for users.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, email, name, role, hourly_rate, is_active, password_hash, created_at, updated_at`

// Get retrieves a user by id.
func (r *Repository) Get(ctx context.Context, id int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByEmail retrieves a user by email.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// ListActive returns all active users ordered by name.
func (r *Repository) ListActive(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE is_active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Insert creates a user row.
func (r *Repository) Insert(ctx context.Context, u *User) error {
	var rate pgtype.Numeric
	if u.HourlyRate != nil {
		if err := rate.Scan(u.HourlyRate.String()); err != nil {
			return err
		}
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (email, name, role, hourly_rate, is_active, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		u.Email, u.Name, string(u.Role), rate, u.PasswordHash,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: email %s already registered", shared.ErrConflict, u.Email)
		}
		return err
	}
	u.IsActive = true
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var role string
	var rate pgtype.Numeric
	err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &rate, &u.IsActive, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: user", shared.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	u.Role = Role(role)
	if rate.Valid {
		d, err := numericToDecimal(rate)
		if err != nil {
			return nil, err
		}
		u.HourlyRate = &d
	}
	return &u, nil
}

func numericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	v, err := n.Value()
	if err != nil {
		return decimal.Decimal{}, err
	}
	s, ok := v.(string)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("users: unexpected numeric driver value %T", v)
	}
	return decimal.NewFromString(s)
}
