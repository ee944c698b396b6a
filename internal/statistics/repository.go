package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads sales rollups straight from the order tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DailyOrderTotals returns per-day order counts and money totals for days
// that had orders, oldest first.
func (r *Repository) DailyOrderTotals(ctx context.Context, from, to time.Time) ([]DayTotals, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT date_trunc('day', created_at) AS day,
                COUNT(*),
                COALESCE(SUM(total_sales_amount), 0),
                COALESCE(SUM(total_profit), 0)
         FROM orders
         WHERE created_at >= $1 AND created_at < $2
         GROUP BY day
         ORDER BY day ASC`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("daily order totals: %w", err)
	}
	defer rows.Close()

	out := []DayTotals{}
	for rows.Next() {
		var d DayTotals
		if err := rows.Scan(&d.Day, &d.OrderCount, &d.SalesAmount, &d.Profit); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DailyProductSales returns per-day per-product quantities and money totals,
// oldest first.
func (r *Repository) DailyProductSales(ctx context.Context, from, to time.Time) ([]ProductDaySales, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT date_trunc('day', o.created_at) AS day,
                d.product_id,
                d.product_name,
                COALESCE(SUM(d.quantity), 0),
                COALESCE(SUM(d.total_sales_amount), 0),
                COALESCE(SUM(d.total_profit), 0)
         FROM orders o
         JOIN order_details d ON d.order_id = o.id
         WHERE o.created_at >= $1 AND o.created_at < $2
         GROUP BY day, d.product_id, d.product_name
         ORDER BY day ASC, d.product_id ASC`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("daily product sales: %w", err)
	}
	defer rows.Close()

	out := []ProductDaySales{}
	for rows.Next() {
		var p ProductDaySales
		if err := rows.Scan(&p.Day, &p.ProductID, &p.ProductName, &p.Quantity, &p.SalesAmount, &p.Profit); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
