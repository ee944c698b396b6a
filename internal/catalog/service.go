package catalog

import (
	"context"
	"fmt"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Service exposes product and category management.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetProduct resolves a product by id.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts lists products matching the filter.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int, error) {
	return s.repo.ListProducts(ctx, filter)
}

// CreateProduct registers a new product under an existing category.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput) (Product, error) {
	if input.CostPrice.IsNegative() || input.DefaultSalePrice.IsNegative() {
		return Product{}, fmt.Errorf("%w: prices must not be negative", shared.ErrValidation)
	}
	if _, err := s.repo.GetCategory(ctx, input.CategoryID); err != nil {
		return Product{}, err
	}
	return s.repo.CreateProduct(ctx, Product{
		Name:             input.Name,
		CostPrice:        input.CostPrice,
		DefaultSalePrice: input.DefaultSalePrice,
		Sort:             input.Sort,
		CategoryID:       input.CategoryID,
		BatchManaged:     input.BatchManaged,
	})
}

// UpdateProduct applies a partial update. Batch management is a one-way
// switch: a product that is already batch managed stays batch managed.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input UpdateProductInput) (Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if input.Name != nil {
		p.Name = *input.Name
	}
	if input.CostPrice != nil {
		if input.CostPrice.IsNegative() {
			return Product{}, fmt.Errorf("%w: cost price must not be negative", shared.ErrValidation)
		}
		p.CostPrice = *input.CostPrice
	}
	if input.DefaultSalePrice != nil {
		if input.DefaultSalePrice.IsNegative() {
			return Product{}, fmt.Errorf("%w: sale price must not be negative", shared.ErrValidation)
		}
		p.DefaultSalePrice = *input.DefaultSalePrice
	}
	if input.Sort != nil {
		p.Sort = *input.Sort
	}
	if input.CategoryID != nil {
		if _, err := s.repo.GetCategory(ctx, *input.CategoryID); err != nil {
			return Product{}, err
		}
		p.CategoryID = *input.CategoryID
	}
	if input.BatchManaged != nil {
		if p.BatchManaged && !*input.BatchManaged {
			return Product{}, fmt.Errorf("%w: batch management cannot be disabled once enabled", shared.ErrValidation)
		}
		p.BatchManaged = *input.BatchManaged
	}
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return Product{}, err
	}
	return p, nil
}

// DeleteProduct marks the product deleted without touching stock history.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.repo.SoftDeleteProduct(ctx, id)
}

// GetCategory resolves a category by id.
func (s *Service) GetCategory(ctx context.Context, id int64) (Category, error) {
	return s.repo.GetCategory(ctx, id)
}

// ListCategories returns all categories in sort order.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.repo.ListCategories(ctx)
}

// CreateCategory registers a category.
func (s *Service) CreateCategory(ctx context.Context, name string, sort int) (Category, error) {
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name required", shared.ErrValidation)
	}
	return s.repo.CreateCategory(ctx, Category{Name: name, Sort: sort})
}

// UpdateCategory renames or reorders a category.
func (s *Service) UpdateCategory(ctx context.Context, c Category) error {
	if c.Name == "" {
		return fmt.Errorf("%w: category name required", shared.ErrValidation)
	}
	return s.repo.UpdateCategory(ctx, c)
}

// DeleteCategory removes an empty category.
func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	return s.repo.DeleteCategory(ctx, id)
}
