package purchasing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/batches"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxRepository is the transaction-scoped surface purchase flows run against.
// It embeds the inventory and batch stores so batch creation, stock-in and
// the document write commit together.
type TxRepository interface {
	inventory.Store
	batches.Store

	InsertPurchase(ctx context.Context, p Purchase) (int64, error)
	InsertDetail(ctx context.Context, d PurchaseDetail) (int64, error)
	SetDetailBatch(ctx context.Context, detailID, batchID int64) error
	GetPurchaseForUpdate(ctx context.Context, id int64) (Purchase, error)
	MarkStockedIn(ctx context.Context, id int64, inTime time.Time) error
	DeletePurchase(ctx context.Context, id int64) error
}

// Repository persists purchases in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside one repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{
			TxStore:      inventory.NewTxStore(tx),
			batchTxStore: batches.NewTxStore(tx),
			tx:           tx,
		})
	})
}

type batchTxStore = batches.TxStore

type txRepository struct {
	*inventory.TxStore
	*batchTxStore
	tx pgx.Tx
}

func (r *txRepository) InsertPurchase(ctx context.Context, p Purchase) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO purchases (state, total_amount, created_at, in_time)
         VALUES ($1,$2,$3,$4) RETURNING id`,
		p.State, p.TotalAmount, p.CreatedAt, p.InTime,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert purchase: %w", err)
	}
	return id, nil
}

func (r *txRepository) InsertDetail(ctx context.Context, d PurchaseDetail) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO purchase_details (purchase_id, product_id, product_name, quantity, total_amount, production_date, expiration_date, batch_id)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
		d.PurchaseID, d.ProductID, d.ProductName, d.Quantity, d.TotalAmount, d.ProductionDate, d.ExpirationDate, d.BatchID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert purchase detail: %w", err)
	}
	return id, nil
}

func (r *txRepository) SetDetailBatch(ctx context.Context, detailID, batchID int64) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE purchase_details SET batch_id = $2 WHERE id = $1`, detailID, batchID)
	if err != nil {
		return fmt.Errorf("link detail batch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPurchaseNotFound
	}
	return nil
}

func (r *txRepository) GetPurchaseForUpdate(ctx context.Context, id int64) (Purchase, error) {
	var p Purchase
	err := r.tx.QueryRow(ctx,
		`SELECT id, state, total_amount, created_at, in_time
         FROM purchases WHERE id = $1 FOR UPDATE`, id,
	).Scan(&p.ID, &p.State, &p.TotalAmount, &p.CreatedAt, &p.InTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return Purchase{}, shared.ErrPurchaseNotFound
	}
	if err != nil {
		return Purchase{}, fmt.Errorf("get purchase: %w", err)
	}
	details, err := loadDetails(ctx, r.tx, p.ID)
	if err != nil {
		return Purchase{}, err
	}
	p.Details = details
	return p, nil
}

func (r *txRepository) MarkStockedIn(ctx context.Context, id int64, inTime time.Time) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE purchases SET state = $2, in_time = $3 WHERE id = $1`,
		id, StateStockedIn, inTime)
	if err != nil {
		return fmt.Errorf("mark purchase stocked in: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPurchaseNotFound
	}
	return nil
}

func (r *txRepository) DeletePurchase(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx,
		`DELETE FROM purchase_details WHERE purchase_id = $1`, id); err != nil {
		return fmt.Errorf("delete purchase details: %w", err)
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM purchases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete purchase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPurchaseNotFound
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadDetails(ctx context.Context, q queryer, purchaseID int64) ([]PurchaseDetail, error) {
	rows, err := q.Query(ctx,
		`SELECT d.id, d.purchase_id, d.product_id, d.product_name, d.quantity, d.total_amount,
                d.production_date, d.expiration_date, d.batch_id, COALESCE(b.batch_number, '')
         FROM purchase_details d
         LEFT JOIN batches b ON b.id = d.batch_id
         WHERE d.purchase_id = $1 ORDER BY d.id ASC`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("load purchase details: %w", err)
	}
	defer rows.Close()

	details := []PurchaseDetail{}
	for rows.Next() {
		var d PurchaseDetail
		if err := rows.Scan(&d.ID, &d.PurchaseID, &d.ProductID, &d.ProductName, &d.Quantity,
			&d.TotalAmount, &d.ProductionDate, &d.ExpirationDate, &d.BatchID, &d.BatchNumber); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// GetPurchase loads the full purchase aggregate outside a transaction.
func (r *Repository) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	var p Purchase
	err := r.pool.QueryRow(ctx,
		`SELECT id, state, total_amount, created_at, in_time FROM purchases WHERE id = $1`, id,
	).Scan(&p.ID, &p.State, &p.TotalAmount, &p.CreatedAt, &p.InTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return Purchase{}, shared.ErrPurchaseNotFound
	}
	if err != nil {
		return Purchase{}, fmt.Errorf("get purchase: %w", err)
	}
	details, err := loadDetails(ctx, r.pool, p.ID)
	if err != nil {
		return Purchase{}, err
	}
	p.Details = details
	return p, nil
}

// ListPurchases returns purchase headers matching the filter, newest first.
func (r *Repository) ListPurchases(ctx context.Context, filter ListFilter) ([]Purchase, error) {
	query := `SELECT id, state, total_amount, created_at, in_time FROM purchases WHERE 1=1`
	args := []any{}
	if filter.State != "" {
		args = append(args, filter.State)
		query += ` AND state = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	out := []Purchase{}
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.State, &p.TotalAmount, &p.CreatedAt, &p.InTime); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
