package catalog

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository persists products and categories.
type Repository interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	SoftDeleteProduct(ctx context.Context, id int64) error

	GetCategory(ctx context.Context, id int64) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, c Category) error
	DeleteCategory(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const productColumns = `id, name, cost_price, default_sale_price, is_deleted, sort, category_id, is_batch_managed, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.CostPrice, &p.DefaultSalePrice, &p.Deleted, &p.Sort, &p.CategoryID, &p.BatchManaged, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.ErrProductNotFound
	}
	return p, err
}

func (r *repository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM products WHERE 1=1`
	args := []interface{}{}
	argCount := 0

	cond := ""
	if !filter.IncludeDeleted {
		cond += ` AND is_deleted = FALSE`
	}
	if filter.CategoryID != nil {
		argCount++
		cond += ` AND category_id = $` + strconv.Itoa(argCount)
		args = append(args, *filter.CategoryID)
	}
	if filter.Search != "" {
		argCount++
		cond += ` AND name ILIKE $` + strconv.Itoa(argCount)
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.BatchManaged != nil {
		argCount++
		cond += ` AND is_batch_managed = $` + strconv.Itoa(argCount)
		args = append(args, *filter.BatchManaged)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += cond + ` ORDER BY sort ASC, id ASC`
	if filter.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filter.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) CreateProduct(ctx context.Context, p Product) (Product, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `INSERT INTO products (name, cost_price, default_sale_price, is_deleted, sort, category_id, is_batch_managed, created_at, updated_at)
VALUES ($1, $2, $3, FALSE, $4, $5, $6, $7, $7) RETURNING id`,
		p.Name, p.CostPrice, p.DefaultSalePrice, p.Sort, p.CategoryID, p.BatchManaged, now).Scan(&p.ID)
	if err != nil {
		return Product{}, err
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

func (r *repository) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET name = $1, cost_price = $2, default_sale_price = $3, sort = $4, category_id = $5, is_batch_managed = $6, updated_at = $7 WHERE id = $8`,
		p.Name, p.CostPrice, p.DefaultSalePrice, p.Sort, p.CategoryID, p.BatchManaged, time.Now().UTC(), p.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrProductNotFound
	}
	return nil
}

func (r *repository) SoftDeleteProduct(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET is_deleted = TRUE, updated_at = $1 WHERE id = $2`, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrProductNotFound
	}
	return nil
}

func (r *repository) GetCategory(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, sort FROM categories WHERE id = $1`, id).Scan(&c.ID, &c.Name, &c.Sort)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, shared.ErrCategoryNotFound
	}
	return c, err
}

func (r *repository) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, sort FROM categories ORDER BY sort ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Sort); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *repository) CreateCategory(ctx context.Context, c Category) (Category, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO categories (name, sort) VALUES ($1, $2) RETURNING id`, c.Name, c.Sort).Scan(&c.ID)
	if err != nil {
		return Category{}, err
	}
	return c, nil
}

func (r *repository) UpdateCategory(ctx context.Context, c Category) error {
	tag, err := r.pool.Exec(ctx, `UPDATE categories SET name = $1, sort = $2 WHERE id = $3`, c.Name, c.Sort, c.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCategoryNotFound
	}
	return nil
}

func (r *repository) DeleteCategory(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrCategoryNotFound
	}
	return nil
}
