package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vaidashi/storefront-api/internal/metrics"
	"github.com/vaidashi/storefront-api/internal/models"
	"github.com/vaidashi/storefront-api/internal/repository"
	apperrors "github.com/vaidashi/storefront-api/pkg/errors"
	"github.com/vaidashi/storefront-api/pkg/logger"
)

// DefaultProductsPageSize is the catalogue page size when none is requested
const DefaultProductsPageSize = 8

// ProductService manages the catalogue and manual inventory corrections
type ProductService struct {
	store   repository.Store
	metrics *metrics.Metrics
	logger  logger.Logger
	now     func() time.Time
}

// NewProductService creates a new ProductService
func NewProductService(store repository.Store, m *metrics.Metrics, logger logger.Logger) *ProductService {
	return &ProductService{
		store:   store,
		metrics: m,
		logger:  logger,
		now:     models.GetCurrentTime,
	}
}

// CreateProduct validates and stores a new product. A SKU is generated when
// none is given.
func (s *ProductService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	product := models.NewProduct(strings.TrimSpace(in.Name), in.Price, in.Stock)
	applyProductInput(product, in)
	if in.SKU != "" {
		product.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	}

	if err := s.store.Products().Create(ctx, product); err != nil {
		s.logger.Error("Failed to create product", "name", product.Name, "error", err)
		return nil, storeError(err, "product")
	}

	s.logger.Info("Product created", "productID", product.ID, "sku", product.SKU, "stock", product.Stock)
	return product, nil
}

// GetProduct returns one product
func (s *ProductService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.store.Products().GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "product")
	}
	return product, nil
}

// GetActiveProduct returns a product visible in the public catalogue.
// Inactive products are reported as not found.
func (s *ProductService) GetActiveProduct(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, apperrors.NewNotFoundError("product not found")
	}
	return product, nil
}

// GetProductBySKU returns the product carrying sku
func (s *ProductService) GetProductBySKU(ctx context.Context, sku string) (*models.Product, error) {
	product, err := s.store.Products().GetBySKU(ctx, strings.ToUpper(strings.TrimSpace(sku)))
	if err != nil {
		return nil, storeError(err, "product")
	}
	return product, nil
}

// ListProducts pages through the catalogue, newest first unless filter.Sort
// asks for a price order
func (s *ProductService) ListProducts(ctx context.Context, filter models.ProductFilter, page, pageSize int) (*models.ProductPage, error) {
	if filter.MinPrice != nil && filter.MaxPrice != nil && filter.MaxPrice.LessThan(*filter.MinPrice) {
		return nil, apperrors.NewValidationError("maximum price must not be below minimum price")
	}

	p := models.NewPagination(page, pageSize, DefaultProductsPageSize)
	repo := s.store.Products()

	products, err := repo.List(ctx, filter, p.PageSize, p.Offset())
	if err != nil {
		return nil, storeError(err, "product")
	}

	total, err := repo.Count(ctx, filter)
	if err != nil {
		return nil, storeError(err, "product")
	}

	return &models.ProductPage{
		Products:      products,
		Count:         len(products),
		TotalProducts: total,
		CurrentPage:   p.Page,
		TotalPages:    p.TotalPages(total),
		PageSize:      p.PageSize,
	}, nil
}

// UpdateProduct replaces the editable fields of a product. Stock is left
// untouched.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, in ProductInput) (*models.Product, error) {
	in.Stock = 0
	if err := in.Validate(); err != nil {
		return nil, err
	}

	repo := s.store.Products()

	product, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "product")
	}

	product.Name = strings.TrimSpace(in.Name)
	product.Price = in.Price
	applyProductInput(product, in)
	if in.SKU != "" {
		product.SKU = strings.ToUpper(strings.TrimSpace(in.SKU))
	}
	product.UpdatedAt = s.now()

	if err := repo.Update(ctx, product); err != nil {
		s.logger.Error("Failed to update product", "productID", id, "error", err)
		return nil, storeError(err, "product")
	}

	// re-read so the returned stock reflects concurrent adjustments
	updated, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, "product")
	}

	s.logger.Info("Product updated", "productID", id)
	return updated, nil
}

// DeleteProduct removes a product. Orders keep their item snapshots.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.store.Products().Delete(ctx, id); err != nil {
		return storeError(err, "product")
	}

	s.logger.Info("Product deleted", "productID", id)
	return nil
}

// AdjustStock applies a manual inventory correction. A change that would
// leave stock below zero fails with a stock conflict instead of clamping.
func (s *ProductService) AdjustStock(ctx context.Context, productID string, delta int, actorID, reason string) (*models.Product, error) {
	if delta == 0 {
		return nil, apperrors.NewValidationError("delta must not be zero")
	}
	if len(reason) > maxNotesLength {
		return nil, apperrors.NewValidationError(fmt.Sprintf("reason cannot exceed %d characters", maxNotesLength))
	}

	var product *models.Product

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		updated, err := tx.AdjustStock(ctx, productID, delta)
		if errors.Is(err, repository.ErrInsufficientStock) {
			current, getErr := tx.GetProduct(ctx, productID)
			if getErr != nil {
				return fmt.Errorf("load product %s: %w", productID, getErr)
			}
			return apperrors.NewStockConflictError(
				fmt.Sprintf("cannot apply %d to stock of %d", delta, current.Stock)).
				WithContext("productId", productID).
				WithContext("available", current.Stock)
		}
		if err != nil {
			return fmt.Errorf("adjust stock of %s: %w", productID, err)
		}

		msg, err := models.NewStockAdjustedEvent(updated, delta, reason, actorID)
		if err != nil {
			return apperrors.NewInternalErrorWithCause("failed to create outbox message", err)
		}
		if err := tx.CreateOutboxMessage(ctx, msg); err != nil {
			return fmt.Errorf("insert outbox message: %w", err)
		}

		product = updated
		return nil
	})
	if err != nil {
		mapped := storeError(err, "product")
		if errors.Is(mapped, apperrors.ErrStockConflict) {
			s.metrics.StockRejected("conflict")
		}
		s.logger.Warn("Stock adjustment rejected", "productID", productID, "delta", delta, "error", err)
		return nil, mapped
	}

	s.metrics.StockAdjusted("manual")
	s.logger.Info("Stock adjusted",
		"productID", productID,
		"delta", delta,
		"stock", product.Stock,
		"actorID", actorID)

	return product, nil
}

func applyProductInput(p *models.Product, in ProductInput) {
	p.Description = in.Description
	p.DiscountPrice = in.DiscountPrice
	p.Category = strings.TrimSpace(in.Category)
	p.Brand = strings.TrimSpace(in.Brand)
	p.Images = models.StringList(in.Images)
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
}
