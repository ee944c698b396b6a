package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository defines persistence operations for API keys.
type Repository interface {
	GetKey(ctx context.Context, id int64) (APIKey, error)
	InsertKey(ctx context.Context, name, secretHash string) (APIKey, error)
	RevokeKey(ctx context.Context, id int64) error
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) GetKey(ctx context.Context, id int64) (APIKey, error) {
	var key APIKey
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, secret_hash, revoked_at, created_at FROM api_keys WHERE id = $1`, id,
	).Scan(&key.ID, &key.Name, &key.SecretHash, &key.RevokedAt, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return APIKey{}, shared.ErrInvalidCredentials
		}
		return APIKey{}, fmt.Errorf("get api key: %w", err)
	}
	return key, nil
}

func (r *PGRepository) InsertKey(ctx context.Context, name, secretHash string) (APIKey, error) {
	key := APIKey{Name: name, SecretHash: secretHash, CreatedAt: time.Now().UTC()}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO api_keys (name, secret_hash, created_at) VALUES ($1, $2, $3) RETURNING id`,
		key.Name, key.SecretHash, key.CreatedAt,
	).Scan(&key.ID)
	if err != nil {
		return APIKey{}, fmt.Errorf("insert api key: %w", err)
	}
	return key, nil
}

func (r *PGRepository) RevokeKey(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE api_keys SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: key %d", shared.ErrInvalidCredentials, id)
	}
	return nil
}

var _ Repository = (*PGRepository)(nil)
