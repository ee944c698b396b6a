package shops

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

const shopColumns = `id, name, location, pinyin, price_rule_id, arrears, longitude, latitude, slow, is_deleted, created_at`

// Repository persists shops and price rules.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetShop(ctx context.Context, id int64) (Shop, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+shopColumns+` FROM shops WHERE id = $1`, id)
	s, err := scanShop(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Shop{}, shared.ErrShopNotFound
	}
	return s, err
}

func (r *Repository) InsertShop(ctx context.Context, s Shop) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO shops (name, location, pinyin, price_rule_id, arrears, longitude, latitude, slow, is_deleted, created_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
         RETURNING id`,
		s.Name, s.Location, s.Pinyin, s.PriceRuleID, s.Arrears, s.Longitude, s.Latitude, s.Slow, s.Deleted, s.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert shop: %w", err)
	}
	return id, nil
}

func (r *Repository) UpdateShop(ctx context.Context, s Shop) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE shops
         SET name = $2, location = $3, price_rule_id = $4, longitude = $5, latitude = $6, slow = $7
         WHERE id = $1 AND is_deleted = FALSE`,
		s.ID, s.Name, s.Location, s.PriceRuleID, s.Longitude, s.Latitude, s.Slow)
	if err != nil {
		return fmt.Errorf("update shop: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrShopNotFound
	}
	return nil
}

func (r *Repository) SoftDeleteShop(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE shops SET is_deleted = TRUE WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return fmt.Errorf("delete shop: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrShopNotFound
	}
	return nil
}

func (r *Repository) ListShops(ctx context.Context, filter ShopFilter) ([]Shop, error) {
	query := `SELECT ` + shopColumns + ` FROM shops WHERE 1=1`
	args := []any{}
	if !filter.IncludeDeleted {
		query += ` AND is_deleted = FALSE`
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := strconv.Itoa(len(args))
		query += ` AND (name ILIKE $` + n + ` OR pinyin ILIKE $` + n + `)`
	}
	if filter.Slow != nil {
		args = append(args, *filter.Slow)
		query += ` AND slow = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY pinyin ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list shops: %w", err)
	}
	defer rows.Close()

	out := []Shop{}
	for rows.Next() {
		s, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AdjustArrears applies a signed delta to the shop's arrears balance with a
// conditional update so the balance never drops below zero.
func (r *Repository) AdjustArrears(ctx context.Context, id int64, delta decimal.Decimal) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE shops SET arrears = arrears + $2
         WHERE id = $1 AND is_deleted = FALSE AND arrears + $2 >= 0`,
		id, delta)
	if err != nil {
		return fmt.Errorf("adjust arrears: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, gerr := r.GetShop(ctx, id); gerr != nil {
			return gerr
		}
		return fmt.Errorf("%w: arrears balance would go negative", shared.ErrInvalidState)
	}
	return nil
}

func (r *Repository) GetRule(ctx context.Context, id int64) (PriceRule, error) {
	var pr PriceRule
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, color, is_deleted FROM price_rules WHERE id = $1`, id,
	).Scan(&pr.ID, &pr.Name, &pr.Color, &pr.Deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return PriceRule{}, shared.ErrPriceRuleNotFound
	}
	return pr, err
}

func (r *Repository) InsertRule(ctx context.Context, pr PriceRule) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO price_rules (name, color, is_deleted) VALUES ($1,$2,$3) RETURNING id`,
		pr.Name, pr.Color, pr.Deleted,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert price rule: %w", err)
	}
	return id, nil
}

func (r *Repository) UpdateRule(ctx context.Context, pr PriceRule) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE price_rules SET name = $2, color = $3 WHERE id = $1 AND is_deleted = FALSE`,
		pr.ID, pr.Name, pr.Color)
	if err != nil {
		return fmt.Errorf("update price rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPriceRuleNotFound
	}
	return nil
}

func (r *Repository) SoftDeleteRule(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE price_rules SET is_deleted = TRUE WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return fmt.Errorf("delete price rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrPriceRuleNotFound
	}
	return nil
}

func (r *Repository) ListRules(ctx context.Context) ([]PriceRule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, color, is_deleted FROM price_rules WHERE is_deleted = FALSE ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list price rules: %w", err)
	}
	defer rows.Close()

	out := []PriceRule{}
	for rows.Next() {
		var pr PriceRule
		if err := rows.Scan(&pr.ID, &pr.Name, &pr.Color, &pr.Deleted); err != nil {
			return nil, err
		}
		out = append(out, pr)
	}
	return out, rows.Err()
}

func (r *Repository) ListRuleItems(ctx context.Context, ruleID int64) ([]PriceRuleItem, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT d.id, d.rule_id, d.product_id, d.price, d.is_default_price
         FROM price_rule_details d
         JOIN products p ON p.id = d.product_id
         WHERE d.rule_id = $1 AND p.is_deleted = FALSE
         ORDER BY d.product_id ASC`,
		ruleID)
	if err != nil {
		return nil, fmt.Errorf("list price rule items: %w", err)
	}
	defer rows.Close()

	out := []PriceRuleItem{}
	for rows.Next() {
		var it PriceRuleItem
		if err := rows.Scan(&it.ID, &it.RuleID, &it.ProductID, &it.Price, &it.DefaultPrice); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repository) UpsertRuleItem(ctx context.Context, it PriceRuleItem) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO price_rule_details (rule_id, product_id, price, is_default_price)
         VALUES ($1,$2,$3,$4)
         ON CONFLICT (rule_id, product_id)
         DO UPDATE SET price = EXCLUDED.price, is_default_price = EXCLUDED.is_default_price`,
		it.RuleID, it.ProductID, it.Price, it.DefaultPrice)
	if err != nil {
		return fmt.Errorf("upsert price rule item: %w", err)
	}
	return nil
}

// FindShopPrice resolves the price a shop pays for a product through its
// assigned rule. The second return reports whether a rule item exists.
func (r *Repository) FindShopPrice(ctx context.Context, shopID, productID int64) (decimal.Decimal, bool, error) {
	var price decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT d.price
         FROM shops s
         JOIN price_rule_details d ON d.rule_id = s.price_rule_id
         WHERE s.id = $1 AND d.product_id = $2`,
		shopID, productID,
	).Scan(&price)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("find shop price: %w", err)
	}
	return price, true, nil
}

func scanShop(row pgx.Row) (Shop, error) {
	var s Shop
	err := row.Scan(&s.ID, &s.Name, &s.Location, &s.Pinyin, &s.PriceRuleID, &s.Arrears,
		&s.Longitude, &s.Latitude, &s.Slow, &s.Deleted, &s.CreatedAt)
	return s, err
}
