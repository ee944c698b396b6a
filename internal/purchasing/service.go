package purchasing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/batches"
	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts purchase persistence.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPurchase(ctx context.Context, id int64) (Purchase, error)
	ListPurchases(ctx context.Context, filter ListFilter) ([]Purchase, error)
}

// ProductPort resolves products for purchase lines.
type ProductPort interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort deduplicates purchase submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// StatsPort schedules statistics cache invalidation after stock churn.
type StatsPort interface {
	InvalidateStatistics(ctx context.Context) error
}

// Service owns purchase intake: placing orders, receiving stock with batch
// creation, and cancellation with reversal.
type Service struct {
	repo        RepositoryPort
	products    ProductPort
	registry    *batches.Registry
	ledger      *inventory.Ledger
	audit       AuditPort
	idempotency IdempotencyPort
	stats       StatsPort
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, products ProductPort, registry *batches.Registry, ledger *inventory.Ledger, audit AuditPort, idempotency IdempotencyPort, stats StatsPort, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		products:    products,
		registry:    registry,
		ledger:      ledger,
		audit:       audit,
		idempotency: idempotency,
		stats:       stats,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) GetPurchase(ctx context.Context, id int64) (Purchase, error) {
	return s.repo.GetPurchase(ctx, id)
}

func (s *Service) ListPurchases(ctx context.Context, filter ListFilter) ([]Purchase, error) {
	return s.repo.ListPurchases(ctx, filter)
}

// CreatePurchaseOrder places a supplier order. Batch-managed lines must carry
// production and expiration dates up front so a later receive cannot fail on
// missing data. With ReceiveNow the stock-in runs in the same transaction.
func (s *Service) CreatePurchaseOrder(ctx context.Context, input CreatePurchaseInput) (Purchase, error) {
	if len(input.Details) == 0 {
		return Purchase{}, fmt.Errorf("%w: purchase needs at least one line", shared.ErrValidation)
	}

	products := make(map[int64]catalog.Product, len(input.Details))
	purchase := Purchase{State: StateOrdered, CreatedAt: s.now()}
	for _, line := range input.Details {
		product, err := s.products.GetProduct(ctx, line.ProductID)
		if err != nil {
			return Purchase{}, err
		}
		if product.Deleted {
			return Purchase{}, fmt.Errorf("%w: id %d", shared.ErrProductNotFound, line.ProductID)
		}
		if line.TotalAmount.Sign() < 0 {
			return Purchase{}, fmt.Errorf("%w: line amount cannot be negative for %s", shared.ErrValidation, product.Name)
		}
		if product.BatchManaged && (line.ProductionDate == nil || line.ExpirationDate == nil) {
			return Purchase{}, fmt.Errorf("%w: %s", shared.ErrMissingBatchDates, product.Name)
		}
		products[product.ID] = product
		purchase.Details = append(purchase.Details, PurchaseDetail{
			ProductID:      product.ID,
			ProductName:    product.Name,
			Quantity:       line.Quantity,
			TotalAmount:    line.TotalAmount,
			ProductionDate: line.ProductionDate,
			ExpirationDate: line.ExpirationDate,
		})
		purchase.TotalAmount = purchase.TotalAmount.Add(line.TotalAmount)
	}

	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "purchasing"); err != nil {
			return Purchase{}, err
		}
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		purchaseID, err := tx.InsertPurchase(ctx, purchase)
		if err != nil {
			return err
		}
		purchase.ID = purchaseID
		for i := range purchase.Details {
			purchase.Details[i].PurchaseID = purchaseID
			detailID, err := tx.InsertDetail(ctx, purchase.Details[i])
			if err != nil {
				return err
			}
			purchase.Details[i].ID = detailID
		}
		if input.ReceiveNow {
			return s.receiveInTx(ctx, tx, &purchase, products)
		}
		return nil
	})
	if err != nil {
		if input.IdempotencyKey != "" && s.idempotency != nil {
			if derr := s.idempotency.Delete(ctx, input.IdempotencyKey); derr != nil {
				s.logger.Warn("release idempotency key", slog.String("key", input.IdempotencyKey), slog.Any("error", derr))
			}
		}
		return Purchase{}, err
	}

	s.recordAudit(ctx, input.ActorID, "purchasing:create", purchase.ID, map[string]any{
		"state": string(purchase.State),
		"total": purchase.TotalAmount.String(),
	})
	return purchase, nil
}

// ReceivePurchaseOrder books the goods of an ORDERED purchase: one new batch
// per batch-managed line, stock-in for every line, state flip to STOCKED_IN.
func (s *Service) ReceivePurchaseOrder(ctx context.Context, id, actorID int64) (Purchase, error) {
	var purchase Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPurchaseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.State != StateOrdered {
			return fmt.Errorf("%w: purchase %d is %s", shared.ErrInvalidState, id, p.State)
		}
		products := make(map[int64]catalog.Product, len(p.Details))
		for _, d := range p.Details {
			if _, ok := products[d.ProductID]; ok {
				continue
			}
			product, err := s.products.GetProduct(ctx, d.ProductID)
			if err != nil {
				return err
			}
			products[d.ProductID] = product
		}
		if err := s.receiveInTx(ctx, tx, &p, products); err != nil {
			return err
		}
		purchase = p
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}

	s.recordAudit(ctx, actorID, "purchasing:receive", id, nil)
	s.invalidateStats(ctx)
	return purchase, nil
}

func (s *Service) receiveInTx(ctx context.Context, tx TxRepository, p *Purchase, products map[int64]catalog.Product) error {
	for i := range p.Details {
		detail := &p.Details[i]
		product := products[detail.ProductID]
		ref := inventory.ProductRef{ID: product.ID, Name: product.Name}

		if !product.BatchManaged {
			if _, err := s.ledger.StockIn(ctx, tx, inventory.Movement{Product: ref, Quantity: detail.Quantity}); err != nil {
				return err
			}
			continue
		}
		if detail.ProductionDate == nil || detail.ExpirationDate == nil {
			return fmt.Errorf("%w: %s", shared.ErrMissingBatchDates, product.Name)
		}
		batch, err := s.registry.CreateBatch(ctx, tx, product, batches.PurchaseLine{
			ID:          detail.ID,
			Quantity:    detail.Quantity,
			TotalAmount: detail.TotalAmount,
		}, *detail.ProductionDate, *detail.ExpirationDate)
		if err != nil {
			return err
		}
		if err := tx.SetDetailBatch(ctx, detail.ID, batch.ID); err != nil {
			return err
		}
		detail.BatchID = &batch.ID
		detail.BatchNumber = batch.BatchNumber

		batchRef := inventory.BatchRef{ID: batch.ID, Number: batch.BatchNumber}
		if _, err := s.ledger.StockIn(ctx, tx, inventory.Movement{Product: ref, Batch: &batchRef, Quantity: detail.Quantity}); err != nil {
			return err
		}
	}

	inTime := s.now()
	if err := tx.MarkStockedIn(ctx, p.ID, inTime); err != nil {
		return err
	}
	p.State = StateStockedIn
	p.InTime = &inTime
	return nil
}

// CancelPurchaseOrder deletes the document. An ORDERED purchase just
// disappears; a STOCKED_IN purchase first reverses every stock-in, so
// cancellation is rejected when part of the received goods was already sold.
func (s *Service) CancelPurchaseOrder(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPurchaseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.State == StateStockedIn {
			for _, detail := range p.Details {
				product, err := s.products.GetProduct(ctx, detail.ProductID)
				if err != nil {
					return err
				}
				ref := inventory.ProductRef{ID: product.ID, Name: product.Name}
				mv := inventory.Movement{Product: ref, Quantity: detail.Quantity}
				if detail.BatchID != nil {
					mv.Batch = &inventory.BatchRef{ID: *detail.BatchID, Number: detail.BatchNumber}
				}
				if _, err := s.ledger.StockOut(ctx, tx, mv); err != nil {
					return err
				}
			}
		}
		return tx.DeletePurchase(ctx, id)
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, actorID, "purchasing:cancel", id, nil)
	s.invalidateStats(ctx)
	return nil
}

// invalidateStats is best effort: a failed enqueue only means suggestion
// numbers lag until the next scheduled invalidation.
func (s *Service) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if err := s.stats.InvalidateStatistics(ctx); err != nil {
		s.logger.Warn("schedule stats invalidation", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, purchaseID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase",
		EntityID: strconv.FormatInt(purchaseID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
