package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
)

// Repository persists inventory records in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxStore implements Store against one open pgx transaction. Other modules
// embed it into their own TxRepository wrappers so a document write and its
// stock movements share the transaction.
type TxStore struct {
	tx pgx.Tx
}

// NewTxStore wraps an open transaction.
func NewTxStore(tx pgx.Tx) *TxStore {
	return &TxStore{tx: tx}
}

// GetRecordForUpdate locks and returns the row for the (product, batch) key.
func (s *TxStore) GetRecordForUpdate(ctx context.Context, productID int64, batchID *int64) (Record, error) {
	var rec Record
	err := s.tx.QueryRow(ctx, `SELECT id, product_id, batch_id, quantity, updated_at
FROM inventory_records
WHERE product_id = $1 AND batch_id IS NOT DISTINCT FROM $2
FOR UPDATE`, productID, batchID).Scan(&rec.ID, &rec.ProductID, &rec.BatchID, &rec.Quantity, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// InsertRecord creates a zero-quantity record for a new key.
func (s *TxStore) InsertRecord(ctx context.Context, rec Record) (int64, error) {
	var id int64
	err := s.tx.QueryRow(ctx, `INSERT INTO inventory_records (product_id, batch_id, quantity, updated_at)
VALUES ($1, $2, $3, $4) RETURNING id`, rec.ProductID, rec.BatchID, rec.Quantity, time.Now().UTC()).Scan(&id)
	return id, err
}

// UpdateRecordQuantity stores the new quantity for a locked record.
func (s *TxStore) UpdateRecordQuantity(ctx context.Context, recordID, quantity int64) error {
	_, err := s.tx.Exec(ctx, `UPDATE inventory_records SET quantity = $2, updated_at = $3 WHERE id = $1`, recordID, quantity, time.Now().UTC())
	return err
}

// ListAvailable returns allocatable rows in FIFO order. Disabled batches are
// excluded; expired ones are not, expiry filtering belongs to the batch
// registry's FindValid.
func (s *TxStore) ListAvailable(ctx context.Context, productID int64) ([]BatchAvailability, error) {
	rows, err := s.tx.Query(ctx, `SELECT r.id, b.id, b.batch_number, b.production_date, r.quantity
FROM inventory_records r
JOIN batches b ON b.id = r.batch_id
WHERE r.product_id = $1 AND r.quantity > 0 AND b.status = TRUE
ORDER BY b.production_date ASC, b.id ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var available []BatchAvailability
	for rows.Next() {
		var row BatchAvailability
		if err := rows.Scan(&row.RecordID, &row.Batch.ID, &row.Batch.Number, &row.ProductionDate, &row.Quantity); err != nil {
			return nil, err
		}
		available = append(available, row)
	}
	return available, rows.Err()
}

// WithTx runs fn against a Store bound to a fresh transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewTxStore(tx))
	})
}

// GetProductStock aggregates total quantity across all keys of a product
// plus the per-batch breakdown.
func (r *Repository) GetProductStock(ctx context.Context, productID int64) (ProductStockSummary, error) {
	rows, err := r.pool.Query(ctx, `SELECT r.quantity, b.id, b.batch_number, b.production_date, b.expiration_date
FROM inventory_records r
LEFT JOIN batches b ON b.id = r.batch_id
WHERE r.product_id = $1
ORDER BY b.production_date ASC NULLS FIRST, r.id ASC`, productID)
	if err != nil {
		return ProductStockSummary{}, err
	}
	defer rows.Close()

	summary := ProductStockSummary{ProductID: productID}
	for rows.Next() {
		var qty int64
		var batchID *int64
		var number *string
		var production, expiration *time.Time
		if err := rows.Scan(&qty, &batchID, &number, &production, &expiration); err != nil {
			return ProductStockSummary{}, err
		}
		summary.TotalQuantity += qty
		if batchID != nil {
			stock := BatchStock{BatchID: *batchID, Quantity: qty}
			if number != nil {
				stock.BatchNumber = *number
			}
			if production != nil {
				stock.ProductionDate = *production
			}
			if expiration != nil {
				stock.ExpirationDate = *expiration
			}
			summary.Batches = append(summary.Batches, stock)
		}
	}
	return summary, rows.Err()
}
