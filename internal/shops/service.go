package shops

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts shop and price rule persistence.
type RepositoryPort interface {
	GetShop(ctx context.Context, id int64) (Shop, error)
	InsertShop(ctx context.Context, s Shop) (int64, error)
	UpdateShop(ctx context.Context, s Shop) error
	SoftDeleteShop(ctx context.Context, id int64) error
	ListShops(ctx context.Context, filter ShopFilter) ([]Shop, error)
	AdjustArrears(ctx context.Context, id int64, delta decimal.Decimal) error

	GetRule(ctx context.Context, id int64) (PriceRule, error)
	InsertRule(ctx context.Context, pr PriceRule) (int64, error)
	UpdateRule(ctx context.Context, pr PriceRule) error
	SoftDeleteRule(ctx context.Context, id int64) error
	ListRules(ctx context.Context) ([]PriceRule, error)
	ListRuleItems(ctx context.Context, ruleID int64) ([]PriceRuleItem, error)
	UpsertRuleItem(ctx context.Context, it PriceRuleItem) error
	FindShopPrice(ctx context.Context, shopID, productID int64) (decimal.Decimal, bool, error)
}

// Service owns shop and price rule management.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) GetShop(ctx context.Context, id int64) (Shop, error) {
	return s.repo.GetShop(ctx, id)
}

func (s *Service) ListShops(ctx context.Context, filter ShopFilter) ([]Shop, error) {
	return s.repo.ListShops(ctx, filter)
}

func (s *Service) CreateShop(ctx context.Context, input CreateShopInput) (Shop, error) {
	if _, err := s.repo.GetRule(ctx, input.PriceRuleID); err != nil {
		return Shop{}, err
	}
	shop := Shop{
		Name:        input.Name,
		Location:    input.Location,
		Pinyin:      input.Pinyin,
		PriceRuleID: input.PriceRuleID,
		Arrears:     decimal.Zero,
		Longitude:   input.Longitude,
		Latitude:    input.Latitude,
		CreatedAt:   time.Now().UTC(),
	}
	id, err := s.repo.InsertShop(ctx, shop)
	if err != nil {
		return Shop{}, err
	}
	shop.ID = id
	return shop, nil
}

func (s *Service) UpdateShop(ctx context.Context, id int64, input UpdateShopInput) (Shop, error) {
	shop, err := s.repo.GetShop(ctx, id)
	if err != nil {
		return Shop{}, err
	}
	if shop.Deleted {
		return Shop{}, shared.ErrShopNotFound
	}
	if input.Name != nil {
		shop.Name = *input.Name
	}
	if input.Location != nil {
		shop.Location = *input.Location
	}
	if input.PriceRuleID != nil {
		if _, err := s.repo.GetRule(ctx, *input.PriceRuleID); err != nil {
			return Shop{}, err
		}
		shop.PriceRuleID = *input.PriceRuleID
	}
	if input.Longitude != nil {
		shop.Longitude = input.Longitude
	}
	if input.Latitude != nil {
		shop.Latitude = input.Latitude
	}
	if input.Slow != nil {
		shop.Slow = *input.Slow
	}
	if err := s.repo.UpdateShop(ctx, shop); err != nil {
		return Shop{}, err
	}
	return shop, nil
}

func (s *Service) DeleteShop(ctx context.Context, id int64) error {
	return s.repo.SoftDeleteShop(ctx, id)
}

// AddArrears books an unpaid order amount onto the shop.
func (s *Service) AddArrears(ctx context.Context, shopID int64, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: arrears amount must be positive", shared.ErrValidation)
	}
	return s.repo.AdjustArrears(ctx, shopID, amount)
}

// SettleArrears records a repayment against the shop's balance.
func (s *Service) SettleArrears(ctx context.Context, shopID int64, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: settlement amount must be positive", shared.ErrValidation)
	}
	return s.repo.AdjustArrears(ctx, shopID, amount.Neg())
}

func (s *Service) GetRule(ctx context.Context, id int64) (PriceRule, error) {
	return s.repo.GetRule(ctx, id)
}

func (s *Service) ListRules(ctx context.Context) ([]PriceRule, error) {
	return s.repo.ListRules(ctx)
}

func (s *Service) ListRuleItems(ctx context.Context, ruleID int64) ([]PriceRuleItem, error) {
	if _, err := s.repo.GetRule(ctx, ruleID); err != nil {
		return nil, err
	}
	return s.repo.ListRuleItems(ctx, ruleID)
}

func (s *Service) CreateRule(ctx context.Context, name, color string) (PriceRule, error) {
	pr := PriceRule{Name: name, Color: color}
	id, err := s.repo.InsertRule(ctx, pr)
	if err != nil {
		return PriceRule{}, err
	}
	pr.ID = id
	return pr, nil
}

func (s *Service) UpdateRule(ctx context.Context, pr PriceRule) error {
	return s.repo.UpdateRule(ctx, pr)
}

func (s *Service) DeleteRule(ctx context.Context, id int64) error {
	return s.repo.SoftDeleteRule(ctx, id)
}

// SetItemPrice pins a product's price under a rule. A negative price is
// rejected; zero is allowed for giveaway lines.
func (s *Service) SetItemPrice(ctx context.Context, ruleID, productID int64, price decimal.Decimal, defaultPrice bool) error {
	if price.Sign() < 0 {
		return fmt.Errorf("%w: price cannot be negative", shared.ErrValidation)
	}
	if _, err := s.repo.GetRule(ctx, ruleID); err != nil {
		return err
	}
	return s.repo.UpsertRuleItem(ctx, PriceRuleItem{
		RuleID:       ruleID,
		ProductID:    productID,
		Price:        price,
		DefaultPrice: defaultPrice,
	})
}

// PriceFor resolves the unit price a shop pays for a product. The boolean
// reports whether the shop's rule pins the price; callers fall back to the
// product's default sale price when it does not.
func (s *Service) PriceFor(ctx context.Context, shopID, productID int64) (decimal.Decimal, bool, error) {
	return s.repo.FindShopPrice(ctx, shopID, productID)
}
