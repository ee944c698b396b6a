package shops

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	shops      map[int64]*Shop
	rules      map[int64]*PriceRule
	items      map[int64][]PriceRuleItem
	nextShopID int64
	nextRuleID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		shops: map[int64]*Shop{},
		rules: map[int64]*PriceRule{},
		items: map[int64][]PriceRuleItem{},
	}
}

func (m *memoryRepo) GetShop(_ context.Context, id int64) (Shop, error) {
	s, ok := m.shops[id]
	if !ok {
		return Shop{}, shared.ErrShopNotFound
	}
	return *s, nil
}

func (m *memoryRepo) InsertShop(_ context.Context, s Shop) (int64, error) {
	m.nextShopID++
	s.ID = m.nextShopID
	m.shops[s.ID] = &s
	return s.ID, nil
}

func (m *memoryRepo) UpdateShop(_ context.Context, s Shop) error {
	cur, ok := m.shops[s.ID]
	if !ok || cur.Deleted {
		return shared.ErrShopNotFound
	}
	s.Arrears = cur.Arrears
	m.shops[s.ID] = &s
	return nil
}

func (m *memoryRepo) SoftDeleteShop(_ context.Context, id int64) error {
	s, ok := m.shops[id]
	if !ok || s.Deleted {
		return shared.ErrShopNotFound
	}
	s.Deleted = true
	return nil
}

func (m *memoryRepo) ListShops(_ context.Context, filter ShopFilter) ([]Shop, error) {
	out := []Shop{}
	for _, s := range m.shops {
		if s.Deleted && !filter.IncludeDeleted {
			continue
		}
		if filter.Search != "" && !strings.Contains(s.Name, filter.Search) {
			continue
		}
		if filter.Slow != nil && s.Slow != *filter.Slow {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (m *memoryRepo) AdjustArrears(_ context.Context, id int64, delta decimal.Decimal) error {
	s, ok := m.shops[id]
	if !ok || s.Deleted {
		return shared.ErrShopNotFound
	}
	next := s.Arrears.Add(delta)
	if next.Sign() < 0 {
		return shared.ErrInvalidState
	}
	s.Arrears = next
	return nil
}

func (m *memoryRepo) GetRule(_ context.Context, id int64) (PriceRule, error) {
	pr, ok := m.rules[id]
	if !ok || pr.Deleted {
		return PriceRule{}, shared.ErrPriceRuleNotFound
	}
	return *pr, nil
}

func (m *memoryRepo) InsertRule(_ context.Context, pr PriceRule) (int64, error) {
	m.nextRuleID++
	pr.ID = m.nextRuleID
	m.rules[pr.ID] = &pr
	return pr.ID, nil
}

func (m *memoryRepo) UpdateRule(_ context.Context, pr PriceRule) error {
	cur, ok := m.rules[pr.ID]
	if !ok || cur.Deleted {
		return shared.ErrPriceRuleNotFound
	}
	m.rules[pr.ID] = &pr
	return nil
}

func (m *memoryRepo) SoftDeleteRule(_ context.Context, id int64) error {
	pr, ok := m.rules[id]
	if !ok || pr.Deleted {
		return shared.ErrPriceRuleNotFound
	}
	pr.Deleted = true
	return nil
}

func (m *memoryRepo) ListRules(_ context.Context) ([]PriceRule, error) {
	out := []PriceRule{}
	for _, pr := range m.rules {
		if !pr.Deleted {
			out = append(out, *pr)
		}
	}
	return out, nil
}

func (m *memoryRepo) ListRuleItems(_ context.Context, ruleID int64) ([]PriceRuleItem, error) {
	return m.items[ruleID], nil
}

func (m *memoryRepo) UpsertRuleItem(_ context.Context, it PriceRuleItem) error {
	for i, cur := range m.items[it.RuleID] {
		if cur.ProductID == it.ProductID {
			m.items[it.RuleID][i] = it
			return nil
		}
	}
	m.items[it.RuleID] = append(m.items[it.RuleID], it)
	return nil
}

func (m *memoryRepo) FindShopPrice(_ context.Context, shopID, productID int64) (decimal.Decimal, bool, error) {
	s, ok := m.shops[shopID]
	if !ok {
		return decimal.Zero, false, nil
	}
	for _, it := range m.items[s.PriceRuleID] {
		if it.ProductID == productID {
			return it.Price, true, nil
		}
	}
	return decimal.Zero, false, nil
}

func testService(repo RepositoryPort) *Service {
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreateShopRequiresExistingRule(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)

	_, err := svc.CreateShop(context.Background(), CreateShopInput{
		Name: "North Market", Location: "Block 4", Pinyin: "N", PriceRuleID: 9,
	})
	require.ErrorIs(t, err, shared.ErrPriceRuleNotFound)

	rule, err := svc.CreateRule(context.Background(), "wholesale", "blue")
	require.NoError(t, err)

	shop, err := svc.CreateShop(context.Background(), CreateShopInput{
		Name: "North Market", Location: "Block 4", Pinyin: "N", PriceRuleID: rule.ID,
	})
	require.NoError(t, err)
	require.True(t, shop.Arrears.IsZero())
}

func TestArrearsNeverGoNegative(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	repo.rules[1] = &PriceRule{ID: 1, Name: "wholesale"}
	repo.shops[5] = &Shop{ID: 5, Name: "North Market", PriceRuleID: 1, Arrears: decimal.NewFromInt(30)}

	require.NoError(t, svc.AddArrears(context.Background(), 5, decimal.NewFromInt(20)))
	require.True(t, repo.shops[5].Arrears.Equal(decimal.NewFromInt(50)))

	require.NoError(t, svc.SettleArrears(context.Background(), 5, decimal.NewFromInt(50)))
	require.True(t, repo.shops[5].Arrears.IsZero())

	err := svc.SettleArrears(context.Background(), 5, decimal.NewFromInt(1))
	require.ErrorIs(t, err, shared.ErrInvalidState)

	err = svc.AddArrears(context.Background(), 5, decimal.Zero)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPriceForFallsThroughWhenUnpinned(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	repo.rules[1] = &PriceRule{ID: 1, Name: "wholesale"}
	repo.shops[5] = &Shop{ID: 5, Name: "North Market", PriceRuleID: 1}

	require.NoError(t, svc.SetItemPrice(context.Background(), 1, 7, decimal.RequireFromString("12.50"), false))

	price, pinned, err := svc.PriceFor(context.Background(), 5, 7)
	require.NoError(t, err)
	require.True(t, pinned)
	require.True(t, price.Equal(decimal.RequireFromString("12.50")))

	_, pinned, err = svc.PriceFor(context.Background(), 5, 8)
	require.NoError(t, err)
	require.False(t, pinned)
}

func TestSetItemPriceRejectsNegative(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	repo.rules[1] = &PriceRule{ID: 1, Name: "wholesale"}

	err := svc.SetItemPrice(context.Background(), 1, 7, decimal.NewFromInt(-1), false)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateShopSwitchesRule(t *testing.T) {
	repo := newMemoryRepo()
	svc := testService(repo)
	repo.rules[1] = &PriceRule{ID: 1, Name: "wholesale"}
	repo.rules[2] = &PriceRule{ID: 2, Name: "retail"}
	repo.shops[5] = &Shop{ID: 5, Name: "North Market", PriceRuleID: 1}

	target := int64(2)
	shop, err := svc.UpdateShop(context.Background(), 5, UpdateShopInput{PriceRuleID: &target})
	require.NoError(t, err)
	require.Equal(t, int64(2), shop.PriceRuleID)

	missing := int64(99)
	_, err = svc.UpdateShop(context.Background(), 5, UpdateShopInput{PriceRuleID: &missing})
	require.ErrorIs(t, err, shared.ErrPriceRuleNotFound)
}
