package inventory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridian-erp/meridian-erp/internal/batches"
	"github.com/meridian-erp/meridian-erp/internal/catalog"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error
	GetProductStock(ctx context.Context, productID int64) (ProductStockSummary, error)
}

// ProductPort resolves products for movement validation.
type ProductPort interface {
	GetProduct(ctx context.Context, id int64) (catalog.Product, error)
}

// BatchPort resolves batches for movement validation.
type BatchPort interface {
	Get(ctx context.Context, id int64) (batches.Batch, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates standalone inventory operations: stock summaries,
// manual adjustments and read-only FIFO previews. Order and purchase flows
// use the Ledger directly inside their own transactions.
type Service struct {
	repo      RepositoryPort
	products  ProductPort
	batches   BatchPort
	ledger    *Ledger
	allocator *Allocator
	audit     AuditPort
	logger    *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, products ProductPort, batchPort BatchPort, ledger *Ledger, allocator *Allocator, audit AuditPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, products: products, batches: batchPort, ledger: ledger, allocator: allocator, audit: audit, logger: logger}
}

// GetProductStock returns the aggregate and per-batch stock for a product.
func (s *Service) GetProductStock(ctx context.Context, productID int64) (ProductStockSummary, error) {
	if _, err := s.products.GetProduct(ctx, productID); err != nil {
		return ProductStockSummary{}, err
	}
	return s.repo.GetProductStock(ctx, productID)
}

// GetProductStocks resolves summaries for several products.
func (s *Service) GetProductStocks(ctx context.Context, productIDs []int64) ([]ProductStockSummary, error) {
	summaries := make([]ProductStockSummary, 0, len(productIDs))
	for _, id := range productIDs {
		summary, err := s.GetProductStock(ctx, id)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// AllocateFIFO previews the batch allocation for a requirement without
// touching stock.
func (s *Service) AllocateFIFO(ctx context.Context, productID, required int64) ([]Allocation, error) {
	if required <= 0 {
		return nil, fmt.Errorf("%w: required quantity must be positive", shared.ErrValidation)
	}
	product, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.BatchManaged {
		return nil, fmt.Errorf("%w: %s", shared.ErrProductNotBatchManaged, product.Name)
	}
	ref := ProductRef{ID: product.ID, Name: product.Name}
	var allocations []Allocation
	err = s.repo.WithTx(ctx, func(ctx context.Context, store Store) error {
		var err error
		allocations, err = s.allocator.Allocate(ctx, store, ref, required)
		return err
	})
	if err != nil {
		return nil, err
	}
	return allocations, nil
}

// AdjustmentInput describes a manual stock correction. Positive quantities
// stock in, negative quantities stock out.
type AdjustmentInput struct {
	ProductID int64
	BatchID   *int64
	Quantity  int64
	Note      string
	ActorID   int64
}

// Adjust posts a manual stock movement outside the order/purchase flows.
func (s *Service) Adjust(ctx context.Context, input AdjustmentInput) (Record, error) {
	if input.Quantity == 0 {
		return Record{}, fmt.Errorf("%w: adjustment quantity must be non-zero", shared.ErrValidation)
	}
	product, err := s.products.GetProduct(ctx, input.ProductID)
	if err != nil {
		return Record{}, err
	}
	ref := ProductRef{ID: product.ID, Name: product.Name}

	var batchRef *BatchRef
	if input.BatchID != nil {
		b, err := s.batches.Get(ctx, *input.BatchID)
		if err != nil {
			return Record{}, err
		}
		if b.ProductID != product.ID {
			return Record{}, fmt.Errorf("%w: batch %s does not belong to product %s", shared.ErrValidation, b.BatchNumber, product.Name)
		}
		batchRef = &BatchRef{ID: b.ID, Number: b.BatchNumber}
	}
	if product.BatchManaged && batchRef == nil {
		return Record{}, fmt.Errorf("%w: %s requires a batch on every movement", shared.ErrProductNotBatchManaged, product.Name)
	}

	mv := Movement{Product: ref, Batch: batchRef, Quantity: input.Quantity}
	var rec Record
	err = s.repo.WithTx(ctx, func(ctx context.Context, store Store) error {
		var err error
		if input.Quantity > 0 {
			rec, err = s.ledger.StockIn(ctx, store, mv)
		} else {
			mv.Quantity = -input.Quantity
			rec, err = s.ledger.StockOut(ctx, store, mv)
		}
		return err
	})
	if err != nil {
		return Record{}, err
	}

	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "inventory:adjust",
			Entity:   "inventory_record",
			EntityID: fmt.Sprintf("%d", rec.ID),
			Meta: map[string]any{
				"product_id": input.ProductID,
				"batch_id":   input.BatchID,
				"quantity":   input.Quantity,
				"note":       input.Note,
			},
		}); err != nil && s.logger != nil {
			s.logger.Warn("audit adjustment", slog.Any("error", err))
		}
	}
	return rec, nil
}
