package shared

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore persists processed batch-import keys. Records are never
// updated and never read except for existence checks.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// Exists reports whether the key has already been recorded.
func (s *IdempotencyStore) Exists(ctx context.Context, tx pgx.Tx, key string) (bool, error) {
	if s == nil {
		return false, errors.New("idempotency store not initialised")
	}
	if key == "" {
		return false, errors.New("idempotency key required")
	}
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM import_batches WHERE idempotency_key = $1)`, key).Scan(&exists)
	return exists, err
}

// Record stores the key for a user. A unique index on idempotency_key turns
// concurrent duplicate imports into ErrIdempotencyConflict.
func (s *IdempotencyStore) Record(ctx context.Context, tx pgx.Tx, userID int64, key string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := tx.Exec(ctx, `INSERT INTO import_batches (user_id, idempotency_key, created_at) VALUES ($1, $2, $3)`, userID, key, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil || s.pool == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := s.pool.Exec(ctx, `DELETE FROM import_batches WHERE created_at < $1`, cutoff)
	return err
}
