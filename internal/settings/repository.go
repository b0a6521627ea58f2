// Package settings persists the billing window configuration. The engine
// never reads it ambiently: callers resolve period.Settings once per request
// and pass them in explicitly.
package settings

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotSet indicates no stored value for a key.
var ErrNotSet = errors.New("settings: not set")

const billingKey = "billing_window"

// Repository provides PostgreSQL backed persistence for settings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetRaw loads the JSON value stored under key.
func (r *Repository) GetRaw(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.pool.QueryRow(ctx, `SELECT value FROM settings WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotSet
	}
	return value, err
}

// PutRaw upserts the JSON value stored under key.
func (r *Repository) PutRaw(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, data)
	return err
}
