package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/batches"
	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/shops"
)

// RepositoryPort abstracts order persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, error)
}

// ProductPort resolves products for order lines.
type ProductPort interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// ShopPort resolves shops and their rule prices.
type ShopPort interface {
	GetShop(ctx context.Context, id int64) (shops.Shop, error)
	PriceFor(ctx context.Context, shopID, productID int64) (price decimal.Decimal, pinned bool, err error)
}

// BatchPort resolves explicitly selected batches.
type BatchPort interface {
	Get(ctx context.Context, id int64) (batches.Batch, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort deduplicates order submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// StatsPort schedules statistics cache invalidation after sales churn.
type StatsPort interface {
	InvalidateStatistics(ctx context.Context) error
}

// Service owns order fulfillment: creation with per-batch stock decrement and
// cancellation with full reversal, each inside one transaction.
type Service struct {
	repo        RepositoryPort
	products    ProductPort
	shops       ShopPort
	batches     BatchPort
	ledger      *inventory.Ledger
	allocator   *inventory.Allocator
	audit       AuditPort
	idempotency IdempotencyPort
	stats       StatsPort
	logger      *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, products ProductPort, shopPort ShopPort, batchPort BatchPort, ledger *inventory.Ledger, allocator *inventory.Allocator, audit AuditPort, idempotency IdempotencyPort, stats StatsPort, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		products:    products,
		shops:       shopPort,
		batches:     batchPort,
		ledger:      ledger,
		allocator:   allocator,
		audit:       audit,
		idempotency: idempotency,
		stats:       stats,
		logger:      logger,
	}
}

func (s *Service) GetOrder(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	return s.repo.ListOrders(ctx, filter)
}

// CreateOrder books a sale. Every stock decrement runs in the same
// transaction as the document insert: any insufficient batch rejects the
// whole order and nothing is written.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (Order, error) {
	if len(input.Items) == 0 {
		return Order{}, fmt.Errorf("%w: order needs at least one item", shared.ErrValidation)
	}
	shop, err := s.shops.GetShop(ctx, input.ShopID)
	if err != nil {
		return Order{}, err
	}
	if shop.Deleted {
		return Order{}, shared.ErrShopNotFound
	}

	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "orders"); err != nil {
			return Order{}, err
		}
	}

	order := Order{ShopID: shop.ID, CreatedAt: time.Now().UTC()}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		for _, item := range input.Items {
			detail, err := s.buildDetail(ctx, tx, shop, item)
			if err != nil {
				return err
			}
			order.Details = append(order.Details, detail)
		}
		order.computeTotals()

		orderID, err := tx.InsertOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID
		for i := range order.Details {
			order.Details[i].OrderID = orderID
			detailID, err := tx.InsertDetail(ctx, order.Details[i])
			if err != nil {
				return err
			}
			order.Details[i].ID = detailID
			for j := range order.Details[i].BatchDetails {
				order.Details[i].BatchDetails[j].OrderDetailID = detailID
				sdID, err := tx.InsertBatchDetail(ctx, order.Details[i].BatchDetails[j])
				if err != nil {
					return err
				}
				order.Details[i].BatchDetails[j].ID = sdID
			}
		}
		return nil
	})
	if err != nil {
		if input.IdempotencyKey != "" && s.idempotency != nil {
			if derr := s.idempotency.Delete(ctx, input.IdempotencyKey); derr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", input.IdempotencyKey), slog.Any("error", derr))
			}
		}
		return Order{}, err
	}

	s.recordAudit(ctx, input.ActorID, "orders:create", order.ID, map[string]any{
		"shop_id": order.ShopID,
		"total":   order.TotalSalesAmount.String(),
	})
	s.invalidateStats(ctx)
	return order, nil
}

// buildDetail resolves pricing, moves stock and assembles one detail line.
func (s *Service) buildDetail(ctx context.Context, tx TxRepository, shop shops.Shop, item OrderItemInput) (OrderDetail, error) {
	product, err := s.products.GetProduct(ctx, item.ProductID)
	if err != nil {
		return OrderDetail{}, err
	}
	if product.Deleted {
		return OrderDetail{}, fmt.Errorf("%w: id %d", shared.ErrProductNotFound, item.ProductID)
	}

	price, err := s.resolvePrice(ctx, shop, product, item)
	if err != nil {
		return OrderDetail{}, err
	}

	detail := OrderDetail{
		ProductID:    product.ID,
		ProductName:  product.Name,
		Quantity:     item.Quantity,
		CostPrice:    product.CostPrice,
		SalePrice:    price,
		DefaultPrice: price.Equal(product.DefaultSalePrice),
	}
	detail.computeTotals()

	ref := inventory.ProductRef{ID: product.ID, Name: product.Name}
	switch {
	case !product.BatchManaged:
		if len(item.BatchDetails) > 0 {
			return OrderDetail{}, fmt.Errorf("%w: %s does not track batches", shared.ErrValidation, product.Name)
		}
		if _, err := s.ledger.StockOut(ctx, tx, inventory.Movement{Product: ref, Quantity: item.Quantity}); err != nil {
			return OrderDetail{}, err
		}

	case len(item.BatchDetails) == 0:
		allocations, err := s.allocator.Allocate(ctx, tx, ref, item.Quantity)
		if err != nil {
			return OrderDetail{}, err
		}
		for _, alloc := range allocations {
			batch := alloc.Batch
			if _, err := s.ledger.StockOut(ctx, tx, inventory.Movement{Product: ref, Batch: &batch, Quantity: alloc.Quantity}); err != nil {
				return OrderDetail{}, err
			}
			detail.BatchDetails = append(detail.BatchDetails, SaleBatchDetail{
				BatchID:     batch.ID,
				BatchNumber: batch.Number,
				Quantity:    alloc.Quantity,
				UnitPrice:   price,
			})
		}

	default:
		var batchTotal int64
		for _, bd := range item.BatchDetails {
			batchTotal += bd.Quantity
		}
		if batchTotal != item.Quantity {
			return OrderDetail{}, fmt.Errorf("%w: batch quantities sum to %d, item quantity is %d for %s",
				shared.ErrInvariantViolation, batchTotal, item.Quantity, product.Name)
		}
		for _, bd := range item.BatchDetails {
			batch, err := s.batches.Get(ctx, bd.BatchID)
			if err != nil {
				return OrderDetail{}, err
			}
			if batch.ProductID != product.ID {
				return OrderDetail{}, fmt.Errorf("%w: batch %s does not belong to %s", shared.ErrValidation, batch.BatchNumber, product.Name)
			}
			ref2 := inventory.BatchRef{ID: batch.ID, Number: batch.BatchNumber}
			if _, err := s.ledger.StockOut(ctx, tx, inventory.Movement{Product: ref, Batch: &ref2, Quantity: bd.Quantity}); err != nil {
				return OrderDetail{}, err
			}
			detail.BatchDetails = append(detail.BatchDetails, SaleBatchDetail{
				BatchID:     batch.ID,
				BatchNumber: batch.BatchNumber,
				Quantity:    bd.Quantity,
				UnitPrice:   price,
			})
		}
	}
	return detail, nil
}

func (s *Service) resolvePrice(ctx context.Context, shop shops.Shop, product catalog.Product, item OrderItemInput) (decimal.Decimal, error) {
	if item.Price != nil {
		if item.Price.Sign() <= 0 {
			return decimal.Decimal{}, fmt.Errorf("%w: sale price must be positive for %s", shared.ErrValidation, product.Name)
		}
		return *item.Price, nil
	}
	price, pinned, err := s.shops.PriceFor(ctx, shop.ID, product.ID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if pinned {
		return price, nil
	}
	return product.DefaultSalePrice, nil
}

// CancelOrder reverses every movement the order made, batch by batch, then
// deletes the document. Reversal and deletion share one transaction.
func (s *Service) CancelOrder(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		for _, detail := range order.Details {
			ref := inventory.ProductRef{ID: detail.ProductID, Name: detail.ProductName}
			if len(detail.BatchDetails) == 0 {
				if _, err := s.ledger.StockIn(ctx, tx, inventory.Movement{Product: ref, Quantity: detail.Quantity}); err != nil {
					return err
				}
				continue
			}
			for _, bd := range detail.BatchDetails {
				batch := inventory.BatchRef{ID: bd.BatchID, Number: bd.BatchNumber}
				if _, err := s.ledger.StockIn(ctx, tx, inventory.Movement{Product: ref, Batch: &batch, Quantity: bd.Quantity}); err != nil {
					return err
				}
			}
		}
		return tx.DeleteOrder(ctx, id)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actorID, "orders:cancel", id, nil)
	s.invalidateStats(ctx)
	return nil
}

// invalidateStats is best effort: a failed enqueue only means the dashboards
// serve slightly stale numbers until the next scheduled invalidation.
func (s *Service) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if err := s.stats.InvalidateStatistics(ctx); err != nil {
		s.logger.Warn("schedule stats invalidation", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "order",
		EntityID: strconv.FormatInt(orderID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
