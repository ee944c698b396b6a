package orders

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/batches"
	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/shops"
)

type batchMeta struct {
	id             int64
	productID      int64
	number         string
	productionDate time.Time
	enabled        bool
}

type memState struct {
	records []inventory.Record
	orders  map[int64]Order
	nextID  int64
}

func (s *memState) clone() *memState {
	out := &memState{orders: map[int64]Order{}, nextID: s.nextID}
	out.records = append(out.records, s.records...)
	for id, o := range s.orders {
		cp := o
		cp.Details = append([]OrderDetail(nil), o.Details...)
		for i := range cp.Details {
			cp.Details[i].BatchDetails = append([]SaleBatchDetail(nil), cp.Details[i].BatchDetails...)
		}
		out.orders[id] = cp
	}
	return out
}

// memoryRepo implements RepositoryPort with commit/rollback semantics: WithTx
// runs against a copy and publishes it only on success.
type memoryRepo struct {
	state   *memState
	batches map[int64]batchMeta
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		state:   &memState{orders: map[int64]Order{}},
		batches: map[int64]batchMeta{},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	work := m.state.clone()
	if err := fn(ctx, &memoryTx{state: work, batches: m.batches}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *memoryRepo) GetOrder(_ context.Context, id int64) (Order, error) {
	o, ok := m.state.orders[id]
	if !ok {
		return Order{}, shared.ErrOrderNotFound
	}
	return o, nil
}

func (m *memoryRepo) ListOrders(_ context.Context, filter ListFilter) ([]Order, error) {
	out := []Order{}
	for _, o := range m.state.orders {
		if filter.ShopID != 0 && o.ShopID != filter.ShopID {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *memoryRepo) seedStock(productID int64, batchID *int64, qty int64) {
	m.state.nextID++
	m.state.records = append(m.state.records, inventory.Record{
		ID: m.state.nextID, ProductID: productID, BatchID: batchID, Quantity: qty,
	})
}

func (m *memoryRepo) stock(productID int64, batchID *int64) int64 {
	for _, rec := range m.state.records {
		if rec.ProductID == productID && sameBatch(rec.BatchID, batchID) {
			return rec.Quantity
		}
	}
	return 0
}

func sameBatch(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type memoryTx struct {
	state   *memState
	batches map[int64]batchMeta
}

func (t *memoryTx) GetRecordForUpdate(_ context.Context, productID int64, batchID *int64) (inventory.Record, error) {
	for _, rec := range t.state.records {
		if rec.ProductID == productID && sameBatch(rec.BatchID, batchID) {
			return rec, nil
		}
	}
	return inventory.Record{}, inventory.ErrRecordNotFound
}

func (t *memoryTx) InsertRecord(_ context.Context, rec inventory.Record) (int64, error) {
	t.state.nextID++
	rec.ID = t.state.nextID
	t.state.records = append(t.state.records, rec)
	return rec.ID, nil
}

func (t *memoryTx) UpdateRecordQuantity(_ context.Context, recordID, quantity int64) error {
	for i := range t.state.records {
		if t.state.records[i].ID == recordID {
			t.state.records[i].Quantity = quantity
			return nil
		}
	}
	return inventory.ErrRecordNotFound
}

func (t *memoryTx) ListAvailable(_ context.Context, productID int64) ([]inventory.BatchAvailability, error) {
	out := []inventory.BatchAvailability{}
	for _, rec := range t.state.records {
		if rec.ProductID != productID || rec.BatchID == nil || rec.Quantity <= 0 {
			continue
		}
		meta, ok := t.batches[*rec.BatchID]
		if !ok || !meta.enabled {
			continue
		}
		out = append(out, inventory.BatchAvailability{
			RecordID:       rec.ID,
			Batch:          inventory.BatchRef{ID: meta.id, Number: meta.number},
			ProductionDate: meta.productionDate,
			Quantity:       rec.Quantity,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ProductionDate.Equal(out[j].ProductionDate) {
			return out[i].ProductionDate.Before(out[j].ProductionDate)
		}
		return out[i].Batch.ID < out[j].Batch.ID
	})
	return out, nil
}

func (t *memoryTx) InsertOrder(_ context.Context, o Order) (int64, error) {
	t.state.nextID++
	o.ID = t.state.nextID
	o.Details = nil
	t.state.orders[o.ID] = o
	return o.ID, nil
}

func (t *memoryTx) InsertDetail(_ context.Context, d OrderDetail) (int64, error) {
	o, ok := t.state.orders[d.OrderID]
	if !ok {
		return 0, shared.ErrOrderNotFound
	}
	t.state.nextID++
	d.ID = t.state.nextID
	d.BatchDetails = nil
	o.Details = append(o.Details, d)
	t.state.orders[d.OrderID] = o
	return d.ID, nil
}

func (t *memoryTx) InsertBatchDetail(_ context.Context, sd SaleBatchDetail) (int64, error) {
	for orderID, o := range t.state.orders {
		for i := range o.Details {
			if o.Details[i].ID == sd.OrderDetailID {
				t.state.nextID++
				sd.ID = t.state.nextID
				o.Details[i].BatchDetails = append(o.Details[i].BatchDetails, sd)
				t.state.orders[orderID] = o
				return sd.ID, nil
			}
		}
	}
	return 0, shared.ErrOrderNotFound
}

func (t *memoryTx) GetOrderForUpdate(_ context.Context, id int64) (Order, error) {
	o, ok := t.state.orders[id]
	if !ok {
		return Order{}, shared.ErrOrderNotFound
	}
	return o, nil
}

func (t *memoryTx) DeleteOrder(_ context.Context, id int64) error {
	if _, ok := t.state.orders[id]; !ok {
		return shared.ErrOrderNotFound
	}
	delete(t.state.orders, id)
	return nil
}

type productPort map[int64]catalog.Product

func (p productPort) GetProduct(_ context.Context, id int64) (catalog.Product, error) {
	prod, ok := p[id]
	if !ok {
		return catalog.Product{}, shared.ErrProductNotFound
	}
	return prod, nil
}

type shopPort struct {
	shops  map[int64]shops.Shop
	prices map[[2]int64]decimal.Decimal
}

func (p *shopPort) GetShop(_ context.Context, id int64) (shops.Shop, error) {
	s, ok := p.shops[id]
	if !ok {
		return shops.Shop{}, shared.ErrShopNotFound
	}
	return s, nil
}

func (p *shopPort) PriceFor(_ context.Context, shopID, productID int64) (decimal.Decimal, bool, error) {
	price, ok := p.prices[[2]int64{shopID, productID}]
	return price, ok, nil
}

type batchPort map[int64]batches.Batch

func (p batchPort) Get(_ context.Context, id int64) (batches.Batch, error) {
	b, ok := p[id]
	if !ok {
		return batches.Batch{}, shared.ErrBatchNotFound
	}
	return b, nil
}

type auditRecorder struct {
	logs []shared.AuditLog
}

func (a *auditRecorder) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type memoryIdempotency map[string]bool

func (m memoryIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	if m[key] {
		return shared.ErrIdempotencyConflict
	}
	m[key] = true
	return nil
}

func (m memoryIdempotency) Delete(_ context.Context, key string) error {
	delete(m, key)
	return nil
}

type fixture struct {
	repo     *memoryRepo
	products productPort
	shops    *shopPort
	batches  batchPort
	audit    *auditRecorder
	keys     memoryIdempotency
	service  *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMemoryRepo(),
		products: productPort{},
		shops:    &shopPort{shops: map[int64]shops.Shop{}, prices: map[[2]int64]decimal.Decimal{}},
		batches:  batchPort{},
		audit:    &auditRecorder{},
		keys:     memoryIdempotency{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.service = NewService(f.repo, f.products, f.shops, f.batches,
		inventory.NewLedger(), inventory.NewAllocator(), f.audit, f.keys, nil, logger)
	return f
}

func (f *fixture) addShop(id int64) {
	f.shops.shops[id] = shops.Shop{ID: id, Name: "North Market", PriceRuleID: 1}
}

func (f *fixture) addProduct(id int64, name string, cost, sale string, batchManaged bool) {
	f.products[id] = catalog.Product{
		ID:               id,
		Name:             name,
		CostPrice:        decimal.RequireFromString(cost),
		DefaultSalePrice: decimal.RequireFromString(sale),
		BatchManaged:     batchManaged,
	}
}

func (f *fixture) addBatch(id, productID int64, number string, day int, qty int64) {
	prodDate := time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC)
	f.repo.batches[id] = batchMeta{id: id, productID: productID, number: number, productionDate: prodDate, enabled: true}
	f.batches[id] = batches.Batch{
		ID: id, ProductID: productID, BatchNumber: number,
		ProductionDate: prodDate, ExpirationDate: prodDate.AddDate(1, 0, 0), Status: true,
	}
	batchID := id
	f.repo.seedStock(productID, &batchID, qty)
}

func TestCreateOrderFIFOSpansBatches(t *testing.T) {
	f := newFixture()
	f.addShop(1)
	f.addProduct(1, "Oolong Tea 250g", "8.00", "12.00", true)
	f.addBatch(101, 1, "PRD20240301001", 1, 5)
	f.addBatch(102, 1, "PRD20240305001", 5, 2)

	order, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		ShopID: 1,
		Items:  []OrderItemInput{{ProductID: 1, Quantity: 7}},
	})
	require.NoError(t, err)
	require.Len(t, order.Details, 1)
	bds := order.Details[0].BatchDetails
	require.Len(t, bds, 2)
	require.Equal(t, "PRD20240301001", bds[0].BatchNumber)
	require.Equal(t, int64(5), bds[0].Quantity)
	require.Equal(t, "PRD20240305001", bds[1].BatchNumber)
	require.Equal(t, int64(2), bds[1].Quantity)

	b1, b2 := int64(101), int64(102)
	require.Equal(t, int64(0), f.repo.stock(1, &b1))
	require.Equal(t, int64(0), f.repo.stock(1, &b2))
}

func TestCreateThenCancelRestoresStock(t *testing.T) {
	f := newFixture()
	f.addShop(1)
	f.addProduct(1, "Oolong Tea 250g", "8.00", "12.00", true)
	f.addBatch(101, 1, "PRD20240301001", 1, 10)

	order, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		ShopID: 1,
		Items:  []OrderItemInput{{ProductID: 1, Quantity: 4}},
	})
	require.NoError(t, err)

	b1 := int64(101)
	require.Equal(t, int64(6), f.repo.stock(1, &b1))

	require.NoError(t, f.service.CancelOrder(context.Background(), order.ID, 0))
	require.Equal(t, int64(10), f.repo.stock(1, &b1))

	_, err = f.repo.GetOrder(context.Background(), order.ID)
	require.ErrorIs(t, err, shared.ErrOrderNotFound)
}

func TestCreateOrderInsufficientStockLeavesNothingBehind(t *testing.T) {
	f := newFixture()
	f.addShop(1)
	f.addProduct(1, "Oolong Tea 250g", "8.00", "12.00", true)
	f.addBatch(101, 1, "PRD20240301001", 1, 5)
	f.addBatch(102, 1, "PRD20240305001", 5, 2)

	_, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		ShopID: 1,
		Items:  []OrderItemInput{{ProductID: 1, Quantity: 8}},
	})
	var insufficient *inventory.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(8), insufficient.Requested)
	require.Equal(t, int64(7), insufficient.Available)

	b1, b2 := int64(101), int64(102)
	require.Equal(t, int64(5), f.repo.stock(1, &b1))
	require.Equal(t, int64(2), f.repo.stock(1, &b2))
	orders, err := f.repo.ListOrders(context.Background(), ListFilter{})
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestCreateOrderMultiItemFailureRollsBackEarlierItems(t *testing.T) {
	f := newFixture()
	f.addShop(1)
	f.addProduct(1, "Oolong Tea 250g", "8.00", "12.00", true)
	f.addProduct(2, "Black Tea 500g", "15.00", "22.00", true)
	f.addBatch(101, 1, "PRD20240301001", 1, 5)

	_, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		ShopID: 1,
		Items: []OrderItemInput{
			{ProductID: 1, Quantity: 3},
			{ProductID: 2, Quantity: 1},
		},
	})
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	b1 := int64(101)
	require.Equal(t, int64(5), f.repo.stock(1, &b1))
}

func TestCreateOrderBatchQuantityMismatch(t *testing.T) {
	f := newFixture()
	f.addShop(1)
	f.addProduct(1, "Oolong Tea 250g", "8.00", "12.00", true)
	f.addBatch(101, 1, "PRD20240301001", 1, 10)

	_, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		ShopID: 1,
		Items: []OrderItemInput{{
			ProductID: 1, Quantity: 5,
			BatchDetails: []BatchSaleInput{{BatchID: 101, Quantity: 3}},
		}},
	})
	require.ErrorIs(t, err, shared.ErrInvariantViolation)
}

func TestCreateOrderHonorsExplicitBatchSelection(t *testing.T) {
	f := newFixture()
	f.addShop(1)
	f.addProduct(1, "Oolong Tea 250g", "8.00", "12.00", true)
	f.addBatch(101, 1, "PRD20240301001", 1, 5)
	f.addBatch(102, 1, "PRD20240305001", 5, 5)

	order, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		ShopID: 1,
		Items: []OrderItemInput{{
			ProductID: 1, Quantity: 2,
			BatchDetails: []BatchSaleInput{{BatchID: 102, Quantity: 2}},
		}},
	})
	require.NoError(t, err)
	require.Len(t, order.Details[0].BatchDetails, 1)
	require.Equal(t, int64(102), order.Details[0].BatchDetails[0].BatchID)

	// FIFO order would have picked batch 101; the explicit pick skips it.
	b1, b2 := int64(101), int64(102)
	require.Equal(t, int64(5), f.repo.stock(1, &b1))
	require.Equal(t, int64(3), f.repo.stock(1, &b2))
}

func TestCreateOrderRejectsBatchDetailsOnPlainProduct(t *testing.T) {
	f := newFixture()
	f.addShop(1)
	f.addProduct(3, "Gift Bag", "1.00", "2.00", false)
	f.repo.seedStock(3, nil, 20)

	_, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		ShopID: 1,
		Items: []OrderItemInput{{
			ProductID: 3, Quantity: 2,
			BatchDetails: []BatchSaleInput{{BatchID: 101, Quantity: 2}},
		}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateOrderPlainProductDecrementsUnbatchedRecord(t *testing.T) {
	f := newFixture()
	f.addShop(1)
	f.addProduct(3, "Gift Bag", "1.00", "2.00", false)
	f.repo.seedStock(3, nil, 20)

	order, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		ShopID: 1,
		Items:  []OrderItemInput{{ProductID: 3, Quantity: 6}},
	})
	require.NoError(t, err)
	require.Empty(t, order.Details[0].BatchDetails)
	require.Equal(t, int64(14), f.repo.stock(3, nil))
}

func TestCreateOrderPriceResolution(t *testing.T) {
	f := newFixture()
	f.addShop(1)
	f.addProduct(3, "Gift Bag", "1.00", "2.00", false)
	f.repo.seedStock(3, nil, 20)
	f.shops.prices[[2]int64{1, 3}] = decimal.RequireFromString("1.50")

	// Rule-pinned price wins when the request gives none.
	order, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		ShopID: 1,
		Items:  []OrderItemInput{{ProductID: 3, Quantity: 2}},
	})
	require.NoError(t, err)
	d := order.Details[0]
	require.True(t, d.SalePrice.Equal(decimal.RequireFromString("1.50")))
	require.False(t, d.DefaultPrice)
	require.True(t, d.TotalSalesAmount.Equal(decimal.RequireFromString("3.00")))
	require.True(t, d.TotalProfit.Equal(decimal.RequireFromString("1.00")))

	// Explicit price overrides the rule and marks default when it matches.
	explicit := decimal.RequireFromString("2.00")
	order, err = f.service.CreateOrder(context.Background(), CreateOrderInput{
		ShopID: 1,
		Items:  []OrderItemInput{{ProductID: 3, Quantity: 1, Price: &explicit}},
	})
	require.NoError(t, err)
	require.True(t, order.Details[0].DefaultPrice)
}

func TestCreateOrderIdempotencyKeyConflicts(t *testing.T) {
	f := newFixture()
	f.addShop(1)
	f.addProduct(3, "Gift Bag", "1.00", "2.00", false)
	f.repo.seedStock(3, nil, 20)

	input := CreateOrderInput{
		ShopID:         1,
		Items:          []OrderItemInput{{ProductID: 3, Quantity: 1}},
		IdempotencyKey: "order-abc",
	}
	_, err := f.service.CreateOrder(context.Background(), input)
	require.NoError(t, err)

	_, err = f.service.CreateOrder(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Equal(t, int64(19), f.repo.stock(3, nil))
}

func TestCreateOrderReleasesKeyOnFailure(t *testing.T) {
	f := newFixture()
	f.addShop(1)
	f.addProduct(1, "Oolong Tea 250g", "8.00", "12.00", true)

	input := CreateOrderInput{
		ShopID:         1,
		Items:          []OrderItemInput{{ProductID: 1, Quantity: 1}},
		IdempotencyKey: "order-retry",
	}
	_, err := f.service.CreateOrder(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	// The key is free again, so a retry after restocking succeeds.
	f.addBatch(101, 1, "PRD20240301001", 1, 5)
	_, err = f.service.CreateOrder(context.Background(), input)
	require.NoError(t, err)
}

func TestCancelUnknownOrder(t *testing.T) {
	f := newFixture()
	err := f.service.CancelOrder(context.Background(), 404, 0)
	require.ErrorIs(t, err, shared.ErrOrderNotFound)
}

func TestCreateOrderTotalsSumDetailLines(t *testing.T) {
	f := newFixture()
	f.addShop(1)
	f.addProduct(3, "Gift Bag", "1.00", "2.00", false)
	f.addProduct(4, "Tea Tin", "5.00", "9.00", false)
	f.repo.seedStock(3, nil, 10)
	f.repo.seedStock(4, nil, 10)

	order, err := f.service.CreateOrder(context.Background(), CreateOrderInput{
		ShopID: 1,
		Items: []OrderItemInput{
			{ProductID: 3, Quantity: 2},
			{ProductID: 4, Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.True(t, order.TotalSalesAmount.Equal(decimal.RequireFromString("13.00")))
	require.True(t, order.TotalProfit.Equal(decimal.RequireFromString("6.00")))
	require.Len(t, f.audit.logs, 1)
	require.Equal(t, "orders:create", f.audit.logs[0].Action)
}
