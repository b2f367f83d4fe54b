package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyStore persists processed keys per module. Dojo uses it to
// record completed dashboard recommendations.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// CheckAndInsert ensures key uniqueness per module.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	_, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)`, key, module, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrIdempotencyConflict
		}
		return fmt.Errorf("idempotency: insert %s: %w", module, err)
	}
	return nil
}

// Keys lists the keys recorded for module, oldest first.
func (s *IdempotencyStore) Keys(ctx context.Context, module string) ([]string, error) {
	if s == nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT key FROM idempotency_keys WHERE module=$1 ORDER BY created_at`, module)
	if err != nil {
		return nil, fmt.Errorf("idempotency: list %s: %w", module, err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// Cleanup removes module entries recorded before cutoff and reports how
// many rows it deleted.
func (s *IdempotencyStore) Cleanup(ctx context.Context, module string, cutoff time.Time) (int64, error) {
	if s == nil {
		return 0, nil
	}
	if module == "" {
		return 0, errors.New("idempotency module required")
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE module=$1 AND created_at < $2`, module, cutoff)
	if err != nil {
		return 0, fmt.Errorf("idempotency: cleanup %s: %w", module, err)
	}
	return tag.RowsAffected(), nil
}
