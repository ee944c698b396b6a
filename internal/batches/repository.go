package batches

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

const batchColumns = `id, product_id, batch_number, production_date, expiration_date, purchase_line_id, cost_price, status, remark, created_at`

// TxStore implements Store against an open transaction so batch creation
// shares the purchase intake transaction.
type TxStore struct {
	tx pgx.Tx
}

// NewTxStore wraps an open transaction.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

func (s *TxStore) CountByNumberPrefix(ctx context.Context, prefix string) (int64, error) {
	var count int64
	err := s.tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM batches WHERE batch_number LIKE $1`,
		prefix+"%",
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count batches: %w", err)
	}
	return count, nil
}

func (s *TxStore) InsertBatch(ctx context.Context, b Batch) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx,
		`INSERT INTO batches (product_id, batch_number, production_date, expiration_date, purchase_line_id, cost_price, status, remark, created_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         RETURNING id`,
		b.ProductID, b.BatchNumber, b.ProductionDate, b.ExpirationDate, b.PurchaseLineID, b.CostPrice, b.Status, b.Remark, b.CreatedAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, fmt.Errorf("%w: batch number %s already taken", shared.ErrInvalidState, b.BatchNumber)
		}
		return 0, fmt.Errorf("insert batch: %w", err)
	}
	return id, nil
}

// Repository is the pgx implementation of RepositoryPort.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, id int64) (Batch, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = $1`, id)
	b, err := scanBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Batch{}, shared.ErrBatchNotFound
	}
	return b, err
}

func (r *Repository) SetStatus(ctx context.Context, id int64, enabled bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE batches SET status = $2 WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("set batch status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrBatchNotFound
	}
	return nil
}

func (r *Repository) UpdateRemark(ctx context.Context, id int64, remark string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE batches SET remark = $2 WHERE id = $1`, id, remark)
	if err != nil {
		return fmt.Errorf("update batch remark: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrBatchNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE 1=1`
	args := []any{}
	if filter.ProductID != 0 {
		args = append(args, filter.ProductID)
		query += ` AND product_id = $` + strconv.Itoa(len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()
	return collectBatches(rows)
}

func (r *Repository) FindValid(ctx context.Context, productID int64, today time.Time) ([]Batch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+batchColumns+` FROM batches
         WHERE product_id = $1 AND status = TRUE AND expiration_date >= $2
         ORDER BY production_date ASC, id ASC`,
		productID, today)
	if err != nil {
		return nil, fmt.Errorf("find valid batches: %w", err)
	}
	defer rows.Close()
	return collectBatches(rows)
}

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.ProductID, &b.BatchNumber, &b.ProductionDate, &b.ExpirationDate,
		&b.PurchaseLineID, &b.CostPrice, &b.Status, &b.Remark, &b.CreatedAt)
	return b, err
}

func collectBatches(rows pgx.Rows) ([]Batch, error) {
	out := []Batch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
