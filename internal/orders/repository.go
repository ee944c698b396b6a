package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// TxRepository is the transaction-scoped surface order flows run against.
// It embeds the inventory store so document writes and stock movements
// commit together.
type TxRepository interface {
	inventory.Store

	InsertOrder(ctx context.Context, o Order) (int64, error)
	InsertDetail(ctx context.Context, d OrderDetail) (int64, error)
	InsertBatchDetail(ctx context.Context, sd SaleBatchDetail) (int64, error)
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	DeleteOrder(ctx context.Context, id int64) error
}

// Repository persists orders in PostgreSQL.
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
		return fn(ctx, &txRepository{TxStore: inventory.NewTxStore(tx), tx: tx})
	})
}

type txRepository struct {
	*inventory.TxStore
	tx pgx.Tx
}

func (r *txRepository) InsertOrder(ctx context.Context, o Order) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO orders (shop_id, total_sales_amount, total_profit, created_at)
         VALUES ($1,$2,$3,$4) RETURNING id`,
		o.ShopID, o.TotalSalesAmount, o.TotalProfit, o.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

func (r *txRepository) InsertDetail(ctx context.Context, d OrderDetail) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO order_details (order_id, product_id, product_name, quantity, cost_price, sale_price, is_default_price, total_sales_amount, total_profit)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		d.OrderID, d.ProductID, d.ProductName, d.Quantity, d.CostPrice, d.SalePrice, d.DefaultPrice, d.TotalSalesAmount, d.TotalProfit,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order detail: %w", err)
	}
	return id, nil
}

func (r *txRepository) InsertBatchDetail(ctx context.Context, sd SaleBatchDetail) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx,
		`INSERT INTO sale_batch_details (order_detail_id, batch_id, quantity, unit_price)
         VALUES ($1,$2,$3,$4) RETURNING id`,
		sd.OrderDetailID, sd.BatchID, sd.Quantity, sd.UnitPrice,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert sale batch detail: %w", err)
	}
	return id, nil
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	var o Order
	err := r.tx.QueryRow(ctx,
		`SELECT id, shop_id, total_sales_amount, total_profit, created_at
         FROM orders WHERE id = $1 FOR UPDATE`, id,
	).Scan(&o.ID, &o.ShopID, &o.TotalSalesAmount, &o.TotalProfit, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, shared.ErrOrderNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	details, err := loadDetails(ctx, r.tx, o.ID)
	if err != nil {
		return Order{}, err
	}
	o.Details = details
	return o, nil
}

func (r *txRepository) DeleteOrder(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx,
		`DELETE FROM sale_batch_details
         WHERE order_detail_id IN (SELECT id FROM order_details WHERE order_id = $1)`, id); err != nil {
		return fmt.Errorf("delete sale batch details: %w", err)
	}
	if _, err := r.tx.Exec(ctx,
		`DELETE FROM order_details WHERE order_id = $1`, id); err != nil {
		return fmt.Errorf("delete order details: %w", err)
	}
	tag, err := r.tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrOrderNotFound
	}
	return nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadDetails(ctx context.Context, q queryer, orderID int64) ([]OrderDetail, error) {
	rows, err := q.Query(ctx,
		`SELECT id, order_id, product_id, product_name, quantity, cost_price, sale_price, is_default_price, total_sales_amount, total_profit
         FROM order_details WHERE order_id = $1 ORDER BY id ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order details: %w", err)
	}
	defer rows.Close()

	details := []OrderDetail{}
	for rows.Next() {
		var d OrderDetail
		if err := rows.Scan(&d.ID, &d.OrderID, &d.ProductID, &d.ProductName, &d.Quantity,
			&d.CostPrice, &d.SalePrice, &d.DefaultPrice, &d.TotalSalesAmount, &d.TotalProfit); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range details {
		bds, err := loadBatchDetails(ctx, q, details[i].ID)
		if err != nil {
			return nil, err
		}
		details[i].BatchDetails = bds
	}
	return details, nil
}

func loadBatchDetails(ctx context.Context, q queryer, detailID int64) ([]SaleBatchDetail, error) {
	rows, err := q.Query(ctx,
		`SELECT sd.id, sd.order_detail_id, sd.batch_id, b.batch_number, sd.quantity, sd.unit_price
         FROM sale_batch_details sd
         JOIN batches b ON b.id = sd.batch_id
         WHERE sd.order_detail_id = $1 ORDER BY sd.id ASC`, detailID)
	if err != nil {
		return nil, fmt.Errorf("load sale batch details: %w", err)
	}
	defer rows.Close()

	out := []SaleBatchDetail{}
	for rows.Next() {
		var sd SaleBatchDetail
		if err := rows.Scan(&sd.ID, &sd.OrderDetailID, &sd.BatchID, &sd.BatchNumber, &sd.Quantity, &sd.UnitPrice); err != nil {
			return nil, err
		}
		out = append(out, sd)
	}
	return out, rows.Err()
}

// GetOrder loads the full order aggregate outside a transaction.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	var o Order
	err := r.pool.QueryRow(ctx,
		`SELECT id, shop_id, total_sales_amount, total_profit, created_at
         FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.ShopID, &o.TotalSalesAmount, &o.TotalProfit, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, shared.ErrOrderNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	details, err := loadDetails(ctx, r.pool, o.ID)
	if err != nil {
		return Order{}, err
	}
	o.Details = details
	return o, nil
}

// ListOrders returns order headers matching the filter, newest first.
func (r *Repository) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	query := `SELECT id, shop_id, total_sales_amount, total_profit, created_at FROM orders WHERE 1=1`
	args := []any{}
	if filter.ShopID != 0 {
		args = append(args, filter.ShopID)
		query += ` AND shop_id = $` + strconv.Itoa(len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += ` AND created_at < $` + strconv.Itoa(len(args))
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
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	out := []Order{}
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.ShopID, &o.TotalSalesAmount, &o.TotalProfit, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
